package crdt

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nosdesk/collab-core/internal/models"
)

const clientSendBuffer = 64

// Client is one WebSocket connection joined to a Target.
type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	clientID uint64
	send     chan []byte
}

// Send returns the client's outbound frame channel.
func (c *Client) Send() <-chan []byte { return c.send }

// Target is the live, in-memory state for one actively-edited article or
// documentation page: the Y-doc itself, its connected clients, and the
// bookkeeping needed to debounce persistence and cut revisions.
type Target struct {
	ID   uuid.UUID
	Kind models.DocTargetKind

	doc *YDoc // has its own internal locking

	mu               sync.Mutex
	rowID            uuid.UUID // the persisted row's own primary key
	nextClientID     uint64
	clients          map[*Client]struct{}
	lastPersistedSV  map[uint64]uint64
	contributors     []uuid.UUID
	charsSinceRevision int
	lastRevisionAt   time.Time
	revisionNumber   int
	blocked          bool

	persistTimer *time.Timer
	idleTimer    *time.Timer
}

func newTarget(id uuid.UUID, kind models.DocTargetKind, rowID uuid.UUID, doc *YDoc, lastSV map[uint64]uint64, revisionNumber int) *Target {
	if lastSV == nil {
		lastSV = make(map[uint64]uint64)
	}
	return &Target{
		ID:              id,
		Kind:            kind,
		doc:             doc,
		rowID:           rowID,
		clients:         make(map[*Client]struct{}),
		lastPersistedSV: lastSV,
		revisionNumber:  revisionNumber,
	}
}

func (t *Target) join(userID uuid.UUID) *Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextClientID++
	c := &Client{ID: uuid.New(), UserID: userID, clientID: t.nextClientID, send: make(chan []byte, clientSendBuffer)}
	t.clients[c] = struct{}{}
	return c
}

// leave unregisters c and reports how many clients remain.
func (t *Target) leave(c *Client) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.clients[c]; ok {
		delete(t.clients, c)
		close(c.send)
	}
	return len(t.clients)
}

func (t *Target) clientCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

// syncStep2 answers a SYNC_STEP_1: the diff the client is missing.
func (t *Target) syncStep2(remoteSVBytes []byte) ([]byte, error) {
	remoteSV, err := DecodeStateVector(remoteSVBytes)
	if err != nil {
		return nil, err
	}
	return EncodeStateAsUpdate(t.doc, remoteSV)
}

// applyUpdate merges a client update into the live doc. Returns whether
// the visible text actually changed, so the caller only arms persistence
// when there was something to persist.
func (t *Target) applyUpdate(c *Client, update []byte, userID uuid.UUID) (changed bool, err error) {
	before := t.doc.Text()
	if err := ApplyUpdate(t.doc, update); err != nil {
		return false, err
	}
	after := t.doc.Text()
	if after == before {
		return false, nil
	}
	t.mu.Lock()
	t.contributors = append(t.contributors, userID)
	t.charsSinceRevision += runeDelta(before, after)
	t.mu.Unlock()

	t.broadcast(Update, update, c)
	return true, nil
}

func runeDelta(before, after string) int {
	d := len([]rune(after)) - len([]rune(before))
	if d < 0 {
		d = -d
	}
	return d
}

func (t *Target) broadcastAwareness(c *Client, blob []byte) {
	t.broadcast(Awareness, blob, c)
}

func (t *Target) broadcast(typ MessageType, payload []byte, exclude *Client) {
	frame := EncodeFrame(Frame{Type: typ, Payload: payload})
	t.mu.Lock()
	defer t.mu.Unlock()
	for cl := range t.clients {
		if cl == exclude {
			continue
		}
		select {
		case cl.send <- frame:
		default:
			// A stalled client misses this broadcast; its next
			// SYNC_STEP_1 on reconnect re-syncs it from scratch.
		}
	}
}

func (t *Target) isBlocked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blocked
}
