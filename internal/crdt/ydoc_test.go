package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeString(t *testing.T, doc *YDoc, s string) {
	t.Helper()
	after := zeroID
	for _, r := range s {
		after = doc.Insert(after, r)
	}
}

func TestYDoc_LocalInsertProducesText(t *testing.T) {
	doc := NewYDoc(1)
	typeString(t, doc, "hello")
	assert.Equal(t, "hello", doc.Text())
}

func TestYDoc_DeleteTombstonesWithoutPhysicalRemoval(t *testing.T) {
	doc := NewYDoc(1)
	var ids []ID
	after := zeroID
	for _, r := range "abc" {
		after = doc.Insert(after, r)
		ids = append(ids, after)
	}
	doc.Delete(ids[1]) // delete 'b'
	assert.Equal(t, "ac", doc.Text())
}

// TestUpdate_RoundTripsThroughEncodeDecode exercises the
// EncodeStateAsUpdate / ApplyUpdate wire path a sync reply takes.
func TestUpdate_RoundTripsThroughEncodeDecode(t *testing.T) {
	src := NewYDoc(1)
	typeString(t, src, "hi")

	dst := NewYDoc(2)
	update, err := EncodeStateAsUpdate(src, dst.StateVector())
	require.NoError(t, err)
	require.NoError(t, ApplyUpdate(dst, update))

	assert.Equal(t, src.Text(), dst.Text())
}

// TestApplyUpdate_IsIdempotent is the commutativity/convergence property:
// replaying the same update twice must not duplicate content.
func TestApplyUpdate_IsIdempotent(t *testing.T) {
	src := NewYDoc(1)
	typeString(t, src, "idempotent")

	dst := NewYDoc(2)
	update, err := EncodeStateAsUpdate(src, nil)
	require.NoError(t, err)

	require.NoError(t, ApplyUpdate(dst, update))
	require.NoError(t, ApplyUpdate(dst, update))

	assert.Equal(t, "idempotent", dst.Text())
}

// TestConcurrentInserts_ConvergeRegardlessOfApplyOrder is the two-editor
// merge scenario: editor A inserts "hello" at the start, editor B
// concurrently inserts "world" at the start (both originating from the
// empty document). Applying both updates to a third replica in either
// order must converge to the same string, and that string must be decided
// purely by client id, not arrival order.
func TestConcurrentInserts_ConvergeRegardlessOfApplyOrder(t *testing.T) {
	a := NewYDoc(1)
	typeString(t, a, "hello")
	updateA, err := EncodeStateAsUpdate(a, nil)
	require.NoError(t, err)

	b := NewYDoc(2)
	typeString(t, b, "world")
	updateB, err := EncodeStateAsUpdate(b, nil)
	require.NoError(t, err)

	replicaAB := NewYDoc(99)
	require.NoError(t, ApplyUpdate(replicaAB, updateA))
	require.NoError(t, ApplyUpdate(replicaAB, updateB))

	replicaBA := NewYDoc(100)
	require.NoError(t, ApplyUpdate(replicaBA, updateB))
	require.NoError(t, ApplyUpdate(replicaBA, updateA))

	assert.Equal(t, replicaAB.Text(), replicaBA.Text(), "apply order must not affect the converged result")
	assert.Contains(t, []string{"helloworld", "worldhello"}, replicaAB.Text())

	// Both original editors must converge too once they see each other's update.
	require.NoError(t, ApplyUpdate(a, updateB))
	require.NoError(t, ApplyUpdate(b, updateA))
	assert.Equal(t, a.Text(), b.Text())
	assert.Equal(t, replicaAB.Text(), a.Text())
}

func TestStateVector_TracksHighestClockPerClient(t *testing.T) {
	doc := NewYDoc(5)
	typeString(t, doc, "xyz")
	sv := doc.StateVector()
	assert.Equal(t, uint64(3), sv[5])
}

func TestDecodeFrame_RejectsEmptyAndUnknownType(t *testing.T) {
	_, err := DecodeFrame(nil)
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = DecodeFrame([]byte{200})
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestEncodeDecodeFrame_RoundTrip(t *testing.T) {
	f := Frame{Type: Update, Payload: []byte{1, 2, 3}}
	got, err := DecodeFrame(EncodeFrame(f))
	require.NoError(t, err)
	assert.Equal(t, f, got)
}
