// Package eventbus is the in-process pub/sub fan-out for collaborator
// notifications: a scope/subscriber map feeding bounded, per-subscriber
// outbound queues, with slow-consumer eviction and per-ticket viewer
// tracking.
package eventbus

import (
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event kinds: a closed set.
const (
	KindTicketUpdated       = "ticket-updated"
	KindCommentAdded        = "comment-added"
	KindCommentDeleted      = "comment-deleted"
	KindDeviceLinked        = "device-linked"
	KindDeviceUnlinked      = "device-unlinked"
	KindDeviceUpdated       = "device-updated"
	KindTicketLinked        = "ticket-linked"
	KindTicketUnlinked      = "ticket-unlinked"
	KindProjectAssigned     = "project-assigned"
	KindProjectUnassigned   = "project-unassigned"
	KindViewerCountChanged  = "viewer-count-changed"
	KindHeartbeat           = "heartbeat"
	KindReconnect           = "reconnect"
)

// GlobalScope is the scope for events meant to reach every interested
// subscriber regardless of which ticket they're viewing. A publish to any
// ticket scope is always also fanned out to GlobalScope subscribers, but
// a subscriber only joins GlobalScope by explicitly focusing it.
const GlobalScope = "global"

// ticketScopePrefix is the fixed prefix TicketScope keys carry, so a
// scope string can be turned back into the ticket id it names.
const ticketScopePrefix = "ticket:"

// TicketScope builds the scope key for one ticket's event stream.
func TicketScope(ticketID string) string {
	return ticketScopePrefix + ticketID
}

// ticketIDFromScope reverses TicketScope, reporting false for any scope
// that isn't a per-ticket one (GlobalScope, most notably).
func ticketIDFromScope(scope string) (string, bool) {
	if !strings.HasPrefix(scope, ticketScopePrefix) {
		return "", false
	}
	return strings.TrimPrefix(scope, ticketScopePrefix), true
}

// subscriberQueueCapacity is the default bounded FIFO depth per subscriber.
const subscriberQueueCapacity = 256

// slowStrikes is the number of consecutive dropped sends before a
// subscriber is evicted.
const slowStrikes = 3

// heartbeatInterval is how often a heartbeat comment is written to keep
// the SSE connection open through proxies.
const heartbeatInterval = 15 * time.Second

// Event is one typed, scoped, sequenced message fanned out to subscribers.
// Events are ephemeral: never persisted, never replayed on reconnect.
type Event struct {
	Kind      string          `json:"-"`
	Scope     string          `json:"-"`
	Seq       uint64          `json:"-"`
	Payload   json.RawMessage `json:"-"`
	Timestamp time.Time       `json:"-"`
}

// Subscriber is one connected SSE client.
type Subscriber struct {
	ID     uuid.UUID
	UserID uuid.UUID

	ch      chan Event
	strikes int32 // atomic

	mu    sync.Mutex
	focus string // current non-global scope, "" if unfocused
	dead  bool
}

// Events returns the subscriber's read-only event channel.
func (s *Subscriber) Events() <-chan Event { return s.ch }

const shardCount = 32

type shard struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{} // scope -> subscriber set
}

// Bus is the Event Bus. Its scope->subscriber map is sharded by a fixed
// stripe count hashed from the scope string, so publishing to one ticket
// never contends with publishing to an unrelated one.
type Bus struct {
	shards [shardCount]*shard

	seq uint64 // atomic, monotonically increasing across all scopes

	viewersMu sync.Mutex
	viewers   map[string]int // ticket scope -> count
}

func New() *Bus {
	b := &Bus{viewers: make(map[string]int)}
	for i := range b.shards {
		b.shards[i] = &shard{subs: make(map[string]map[*Subscriber]struct{})}
	}
	return b
}

func (b *Bus) shardFor(scope string) *shard {
	var h uint32
	for i := 0; i < len(scope); i++ {
		h = h*31 + uint32(scope[i])
	}
	return b.shards[h%shardCount]
}

// Subscribe registers a brand-new subscriber with no scope yet. It
// receives nothing until the caller calls Focus — typically once with
// the ticket scope the client's page is showing, or with GlobalScope for
// a client that genuinely wants every event (an admin dashboard).
func (b *Bus) Subscribe(userID uuid.UUID) *Subscriber {
	return &Subscriber{
		ID:     uuid.New(),
		UserID: userID,
		ch:     make(chan Event, subscriberQueueCapacity),
	}
}

func (b *Bus) addToScope(scope string, sub *Subscriber) {
	sh := b.shardFor(scope)
	sh.mu.Lock()
	set, ok := sh.subs[scope]
	if !ok {
		set = make(map[*Subscriber]struct{})
		sh.subs[scope] = set
	}
	set[sub] = struct{}{}
	sh.mu.Unlock()
}

func (b *Bus) removeFromScope(scope string, sub *Subscriber) {
	sh := b.shardFor(scope)
	sh.mu.Lock()
	if set, ok := sh.subs[scope]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(sh.subs, scope)
		}
	}
	sh.mu.Unlock()
}

func (b *Bus) subscribersOf(scope string) []*Subscriber {
	sh := b.shardFor(scope)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	set := sh.subs[scope]
	out := make([]*Subscriber, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	return out
}

// Publish fans a typed event out to every subscriber of scope plus every
// subscriber of Global. A full subscriber queue is a drop for that
// subscriber only; three consecutive drops evict it.
func (b *Bus) Publish(scope, kind string, payload json.RawMessage) {
	seq := atomic.AddUint64(&b.seq, 1)
	evt := Event{Kind: kind, Scope: scope, Seq: seq, Payload: payload, Timestamp: time.Now().UTC()}

	seen := make(map[*Subscriber]struct{})
	for _, sub := range b.subscribersOf(scope) {
		seen[sub] = struct{}{}
	}
	if scope != GlobalScope {
		for _, sub := range b.subscribersOf(GlobalScope) {
			seen[sub] = struct{}{}
		}
	}

	for sub := range seen {
		b.send(sub, evt)
	}
}

func (b *Bus) send(sub *Subscriber, evt Event) {
	select {
	case sub.ch <- evt:
		atomic.StoreInt32(&sub.strikes, 0)
	default:
		if atomic.AddInt32(&sub.strikes, 1) >= slowStrikes {
			b.Evict(sub)
		}
	}
}

// Focus moves a subscriber's viewer-tracked scope from its previous
// ticket (if any) to newScope, emitting viewer-count-changed on the
// scopes whose count actually moved. newScope == "" clears focus without
// setting a new one.
func (b *Bus) Focus(sub *Subscriber, newScope string) {
	sub.mu.Lock()
	old := sub.focus
	if old == newScope {
		sub.mu.Unlock()
		return
	}
	sub.focus = newScope
	sub.mu.Unlock()

	if old != "" {
		b.removeFromScope(old, sub)
		if old != GlobalScope {
			b.decrementViewers(old)
		}
	}
	if newScope != "" {
		b.addToScope(newScope, sub)
		if newScope != GlobalScope {
			b.incrementViewers(newScope)
		}
	}
}

func (b *Bus) incrementViewers(scope string) {
	b.viewersMu.Lock()
	b.viewers[scope]++
	count := b.viewers[scope]
	b.viewersMu.Unlock()
	b.publishViewerCount(scope, count)
}

func (b *Bus) decrementViewers(scope string) {
	b.viewersMu.Lock()
	count, ok := b.viewers[scope]
	if !ok || count <= 0 {
		b.viewersMu.Unlock()
		return
	}
	count--
	if count == 0 {
		delete(b.viewers, scope)
	} else {
		b.viewers[scope] = count
	}
	b.viewersMu.Unlock()
	b.publishViewerCount(scope, count)
}

func (b *Bus) publishViewerCount(scope string, count int) {
	ticketID, _ := ticketIDFromScope(scope)
	payload, _ := json.Marshal(struct {
		TicketID string `json:"ticket_id"`
		Count    int    `json:"count"`
	}{TicketID: ticketID, Count: count})
	b.Publish(scope, KindViewerCountChanged, payload)
}

// ViewerCount reports the current tracked viewer count for a scope
// (exported for tests and diagnostics).
func (b *Bus) ViewerCount(scope string) int {
	b.viewersMu.Lock()
	defer b.viewersMu.Unlock()
	return b.viewers[scope]
}

// Evict removes a subscriber from every scope it belongs to and closes
// its channel. Safe to call more than once.
func (b *Bus) Evict(sub *Subscriber) {
	sub.mu.Lock()
	if sub.dead {
		sub.mu.Unlock()
		return
	}
	sub.dead = true
	focus := sub.focus
	sub.focus = ""
	sub.mu.Unlock()

	if focus != "" {
		b.removeFromScope(focus, sub)
		if focus != GlobalScope {
			b.decrementViewers(focus)
		}
	}
	close(sub.ch)
}
