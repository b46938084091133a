// Package crdt is the CRDT Document Store: it keeps one live, mergeable
// text document per ticket article or documentation page, mediates a
// Yjs-shaped binary sync protocol over WebSocket, and persists debounced
// snapshots and periodic revisions.
//
// ydoc.go holds the CRDT algebra itself. No third-party library in reach
// speaks the real Yjs binary format, so this is a small RGA (replicated
// growable array) built from scratch: every character gets a globally
// unique (client, clock) id, insertions carry the id of the character they
// were typed after, and conflicting concurrent inserts at the same
// position are ordered deterministically by client id. Deletions are
// tombstones, never physical removals, so they can be replayed in any
// order. The three entry points — EncodeStateAsUpdate, EncodeStateVector,
// ApplyUpdate — are named to match the Yjs JS API so the rest of the
// system can be read the same way regardless of which side implements it.
package crdt

import (
	"bytes"
	"encoding/gob"
	"sort"
	"sync"
)

// ID identifies one inserted character: the client that created it and
// that client's local Lamport clock at the time.
type ID struct {
	Client uint64
	Clock  uint64
}

var zeroID = ID{}

// Op is one CRDT operation: either an insertion (OriginLeft + Ch set,
// Delete false) or a tombstone marker for an existing ID (Delete true).
type Op struct {
	ID         ID
	OriginLeft ID // zeroID means "insert at the very beginning"
	Ch         rune
	Delete     bool
}

type node struct {
	id         ID
	originLeft ID
	ch         rune
	deleted    bool
}

// YDoc is one client or server replica of a document's CRDT state. All
// methods are safe for concurrent use; callers needing to combine several
// calls into one atomic step (e.g. apply-then-snapshot) should still hold
// their own lock around the sequence, since internal locking only protects
// individual calls.
type YDoc struct {
	mu       sync.Mutex
	clientID uint64

	clock uint64          // this replica's next local clock value
	sv    map[uint64]uint64 // per-client highest clock integrated so far

	order []*node          // integrated total order, tombstones included
	index map[ID]*node     // id -> node, for O(1) origin lookup
	log   []Op             // every op ever integrated, in integration order
}

// NewYDoc creates an empty document identified as clientID for the
// purposes of Lamport-clock tie-breaking. Two YDoc values must never share
// a clientID if they might both generate local ops.
func NewYDoc(clientID uint64) *YDoc {
	return &YDoc{
		clientID: clientID,
		sv:       make(map[uint64]uint64),
		index:    make(map[ID]*node),
	}
}

// Text returns the current visible (non-tombstoned) text, in document
// order.
func (d *YDoc) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b []rune
	for _, n := range d.order {
		if !n.deleted {
			b = append(b, n.ch)
		}
	}
	return string(b)
}

// Insert types ch immediately after the character identified by after
// (zeroID to insert at the start) and returns the new character's id.
func (d *YDoc) Insert(after ID, ch rune) ID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.clock++
	id := ID{Client: d.clientID, Clock: d.clock}
	op := Op{ID: id, OriginLeft: after, Ch: ch}
	d.integrate(op)
	d.log = append(d.log, op)
	d.bumpSV(id)
	return id
}

// Delete tombstones the character identified by id. Deleting an id the
// replica has never seen is a silent no-op: the tombstone is recorded so a
// racing remote insert-then-delete still converges once both arrive.
func (d *YDoc) Delete(id ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	op := Op{ID: id, Delete: true}
	d.integrate(op)
	d.log = append(d.log, op)
	d.bumpSV(id)
}

// integrate applies one op (local or remote) to the total order. Callers
// must hold d.mu.
func (d *YDoc) integrate(op Op) {
	if op.Delete {
		if n, ok := d.index[op.ID]; ok {
			n.deleted = true
		} else {
			// Tombstone for a character not yet seen: park it so a later
			// insert of the same id is born already deleted.
			d.index[op.ID] = &node{id: op.ID, deleted: true}
		}
		return
	}

	if existing, ok := d.index[op.ID]; ok && existing.ch != 0 {
		return // already integrated; idempotent replay
	}

	n := &node{id: op.ID, originLeft: op.OriginLeft, ch: op.Ch}
	if tomb, ok := d.index[op.ID]; ok {
		n.deleted = tomb.deleted // a delete for this id arrived first
	}
	d.index[op.ID] = n

	pos := d.findInsertPos(op.OriginLeft, op.ID)
	d.order = append(d.order, nil)
	copy(d.order[pos+1:], d.order[pos:])
	d.order[pos] = n
}

// positionOf returns n's index in d.order, or -1 if n is nil (the
// convention used for "inserted at the very beginning").
func (d *YDoc) positionOf(n *node) int {
	if n == nil {
		return -1
	}
	for i, cur := range d.order {
		if cur == n {
			return i
		}
	}
	return -1
}

// findInsertPos locates where a node with the given originLeft and id
// belongs in the total order. This is the standard RGA integration scan:
// starting just after origin, walk forward comparing each candidate's own
// origin position against ours. A candidate whose origin comes strictly
// after ours belongs to a causal chain that started after our insertion
// point, so the whole chain is skipped over rather than split; a
// candidate at exactly our origin is a genuine sibling and the two are
// ordered by id. This is what keeps two editors' concurrently-typed runs
// contiguous instead of interleaved, regardless of which replica applies
// the updates in which order.
func (d *YDoc) findInsertPos(originLeft, id ID) int {
	var origin *node
	if originLeft != zeroID {
		origin = d.index[originLeft]
	}
	originIdx := d.positionOf(origin)

	i := originIdx + 1
	for i < len(d.order) {
		o := d.order[i]
		var oOrigin *node
		if o.originLeft != zeroID {
			oOrigin = d.index[o.originLeft]
		}
		oOriginIdx := d.positionOf(oOrigin)

		if oOriginIdx < originIdx {
			break
		}
		if oOriginIdx == originIdx {
			if idLess(id, o.id) {
				break
			}
		}
		i++
	}
	return i
}

// idLess orders ids by (client, clock) so tie-breaking is deterministic
// across replicas.
func idLess(a, b ID) bool {
	if a.Client != b.Client {
		return a.Client < b.Client
	}
	return a.Clock < b.Clock
}

func (d *YDoc) bumpSV(id ID) {
	if id.Clock > d.sv[id.Client] {
		d.sv[id.Client] = id.Clock
	}
}

// StateVector returns a copy of the replica's per-client highest
// integrated clock. Never returns the live map.
func (d *YDoc) StateVector() map[uint64]uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uint64]uint64, len(d.sv))
	for k, v := range d.sv {
		out[k] = v
	}
	return out
}

// EncodeStateVector serializes the replica's state vector to bytes, for
// a client to send as the payload of SYNC_STEP_1.
func EncodeStateVector(d *YDoc) ([]byte, error) {
	sv := d.StateVector()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(sv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeStateVector is the inverse of EncodeStateVector.
func DecodeStateVector(raw []byte) (map[uint64]uint64, error) {
	var sv map[uint64]uint64
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&sv); err != nil {
		return nil, err
	}
	return sv, nil
}

// EncodeStateAsUpdate returns every op the replica has integrated that the
// peer identified by remoteSV has not: the diff a server sends in reply to
// SYNC_STEP_1, or the full self-contained update when remoteSV is nil
// (used for revision snapshots and Restore). Delete ops are always
// included: they carry the deleted character's id rather than a clock of
// their own, so the state vector cannot tell whether the peer has them,
// and re-applying one is a no-op.
func EncodeStateAsUpdate(d *YDoc, remoteSV map[uint64]uint64) ([]byte, error) {
	d.mu.Lock()
	var missing []Op
	for _, op := range d.log {
		have := remoteSV[op.ID.Client]
		if op.Delete || op.ID.Clock > have {
			missing = append(missing, op)
		}
	}
	d.mu.Unlock()

	// Deterministic ordering for reproducible byte output given the same
	// integrated state, which callers rely on when comparing snapshots.
	sort.Slice(missing, func(i, j int) bool { return idLess(missing[i].ID, missing[j].ID) })

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(missing); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ApplyUpdate decodes an update produced by EncodeStateAsUpdate and
// integrates every op into d. Applying the same update twice, or applying
// overlapping updates from different peers in any order, converges to the
// same document: that is the CRDT merge guarantee.
func ApplyUpdate(d *YDoc, update []byte) error {
	var ops []Op
	if err := gob.NewDecoder(bytes.NewReader(update)).Decode(&ops); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, op := range ops {
		d.integrate(op)
		d.log = append(d.log, op)
		d.bumpSV(op.ID)
	}
	return nil
}
