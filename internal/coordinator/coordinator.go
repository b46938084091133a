// Package coordinator is the Change Coordinator: it wraps one
// repository-level transaction with a buffered event outbox, so a handler
// can mutate state and stage notifications in the same breath without
// ever letting a subscriber observe an event for a change that then rolls
// back. Events staged via Context.Emit are only handed to the Event Bus
// once the wrapped transaction has actually committed; a failed or
// panicking transaction discards the buffer untouched.
package coordinator

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/nosdesk/collab-core/internal/eventbus"
)

// staged is one buffered event: a scope/kind/payload triple waiting on its
// transaction's outcome.
type staged struct {
	scope   string
	kind    string
	payload json.RawMessage
}

// Context is handed to the closure passed to WithCoordinator. It carries the
// transaction the closure's repository calls must use, and the Emit
// method the closure calls instead of publishing to the bus directly.
type Context struct {
	Tx  *sqlx.Tx
	buf []staged
}

// Emit stages an event for publication after commit. Emitting from a
// closure that later returns an error, or that panics, is a no-op: the
// buffer is dropped along with the rolled-back transaction.
func (c *Context) Emit(scope, kind string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.buf = append(c.buf, staged{scope: scope, kind: kind, payload: raw})
	return nil
}

// Transactor is the narrow slice of BaseRepository's API the coordinator
// needs: a single transaction-running method, so any concrete repository
// that embeds BaseRepository satisfies this without extra wiring.
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// Publisher is the narrow slice of the Event Bus the coordinator needs.
type Publisher interface {
	Publish(scope, kind string, payload json.RawMessage)
}

// Coordinator pairs a repository's transaction runner with the bus
// staged events are published to after commit.
type Coordinator struct {
	repo Transactor
	bus  Publisher
}

func New(repo Transactor, bus Publisher) *Coordinator {
	return &Coordinator{repo: repo, bus: bus}
}

// WithCoordinator runs fn inside one transaction, via Context, and
// publishes every event fn staged through Context.Emit only after that
// transaction commits. If fn returns an error, or the commit itself
// fails, no event reaches the bus — this is the commit-before-publish
// guarantee every mutating handler depends on.
func (c *Coordinator) WithCoordinator(ctx context.Context, fn func(cctx *Context) error) error {
	cctx := &Context{}
	err := c.repo.Transaction(ctx, func(tx *sqlx.Tx) error {
		cctx.Tx = tx
		return fn(cctx)
	})
	if err != nil {
		return err
	}
	for _, ev := range cctx.buf {
		c.bus.Publish(ev.scope, ev.kind, ev.payload)
	}
	return nil
}

// Re-exported event kind constants so callers building payloads for Emit
// don't need a second import of internal/eventbus just for the kind
// string. viewer-count-changed is deliberately absent: the Event Bus
// produces it itself from Focus, never through a coordinated transaction.
const (
	KindTicketUpdated     = eventbus.KindTicketUpdated
	KindCommentAdded      = eventbus.KindCommentAdded
	KindCommentDeleted    = eventbus.KindCommentDeleted
	KindDeviceLinked      = eventbus.KindDeviceLinked
	KindDeviceUnlinked    = eventbus.KindDeviceUnlinked
	KindDeviceUpdated     = eventbus.KindDeviceUpdated
	KindTicketLinked      = eventbus.KindTicketLinked
	KindTicketUnlinked    = eventbus.KindTicketUnlinked
	KindProjectAssigned   = eventbus.KindProjectAssigned
	KindProjectUnassigned = eventbus.KindProjectUnassigned
)
