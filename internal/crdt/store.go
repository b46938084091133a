package crdt

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/errs"
	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/repository"
)

const (
	persistDebounce   = 2000 * time.Millisecond
	revisionInterval  = 5 * time.Minute
	revisionCharDelta = 500
	idleGrace         = 60 * time.Second
	maxPersistRetries = 5
	persistRetryBase  = 100 * time.Millisecond
)

// RevisionCutFunc is called, best-effort and off the persistence path,
// whenever a revision is cut for a documentation page. Store never waits
// on it and never lets its error affect persistence.
type RevisionCutFunc func(targetID uuid.UUID, revisionNumber int)

// Repository is the subset of *repository.DocumentRepository the Store
// needs, narrowed to an interface so tests can exercise persistence and
// revision logic against an in-memory fake instead of a live database.
type Repository interface {
	GetArticleContentByTicket(ctx context.Context, ticketID uuid.UUID) (*models.ArticleContent, error)
	GetDocPage(ctx context.Context, id uuid.UUID) (*models.DocumentationPage, error)
	GetRevision(ctx context.Context, targetID uuid.UUID, number int) (*models.Revision, error)
	PersistArticleAndRevision(ctx context.Context, a models.ArticleContent, cutRevision *models.Revision) error
	PersistDocPageAndRevision(ctx context.Context, id uuid.UUID, content, stateVector []byte, revNumber int, cutRevision *models.Revision) error
}

// Store owns every actively-edited Target, keyed by the ticket or
// documentation-page id it backs, and the repository used to load and
// persist them.
type Store struct {
	repo Repository

	mu      sync.Mutex
	targets map[uuid.UUID]*Target

	onDocPageRevision RevisionCutFunc
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo, targets: make(map[uuid.UUID]*Target)}
}

// OnDocPageRevision registers the documentation-search indexing hook.
func (s *Store) OnDocPageRevision(fn RevisionCutFunc) { s.onDocPageRevision = fn }

// Join loads (or reuses) the target for id/kind and registers a new
// client connection on it.
func (s *Store) Join(ctx context.Context, id uuid.UUID, kind models.DocTargetKind, userID uuid.UUID) (*Target, *Client, error) {
	t, err := s.getOrLoad(ctx, id, kind)
	if err != nil {
		return nil, nil, err
	}
	s.cancelIdle(t)
	return t, t.join(userID), nil
}

// Leave unregisters a client; when it was the last one, pending state is
// flushed synchronously and the target is scheduled for idle eviction.
func (s *Store) Leave(ctx context.Context, t *Target, c *Client) {
	remaining := t.leave(c)
	if remaining == 0 {
		if err := s.persist(ctx, t, nil); err != nil {
			logx.WithContext(ctx).Errorf("crdt: flush on last-client-leave failed for target %s: %v", t.ID, err)
		}
		s.armIdleEviction(t)
	}
}

func (s *Store) getOrLoad(ctx context.Context, id uuid.UUID, kind models.DocTargetKind) (*Target, error) {
	s.mu.Lock()
	if t, ok := s.targets[id]; ok {
		s.mu.Unlock()
		return t, nil
	}
	s.mu.Unlock()

	t, err := s.loadTarget(ctx, id, kind)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.targets[id]; ok {
		return existing, nil
	}
	s.targets[id] = t
	return t, nil
}

func (s *Store) loadTarget(ctx context.Context, id uuid.UUID, kind models.DocTargetKind) (*Target, error) {
	doc := NewYDoc(0)

	switch kind {
	case models.TargetTicketArticle:
		a, err := s.repo.GetArticleContentByTicket(ctx, id)
		if err == repository.ErrNotFound {
			return newTarget(id, kind, uuid.New(), doc, nil, 0), nil
		}
		if err != nil {
			return nil, errs.Wrap(errs.StorageError, "crdt: load article content", err)
		}
		if len(a.YjsDocumentContent) > 0 {
			if err := ApplyUpdate(doc, a.YjsDocumentContent); err != nil {
				return nil, errs.Wrap(errs.CoreFatal, "crdt: stored article update is corrupt", err)
			}
		}
		sv, _ := DecodeStateVector(a.YjsStateVector)
		return newTarget(id, kind, a.ID, doc, sv, a.CurrentRevisionNumber), nil

	case models.TargetDocPage:
		p, err := s.repo.GetDocPage(ctx, id)
		if err != nil {
			return nil, errs.Wrap(errs.StorageError, "crdt: load documentation page", err)
		}
		if len(p.YjsDocumentContent) > 0 {
			if err := ApplyUpdate(doc, p.YjsDocumentContent); err != nil {
				return nil, errs.Wrap(errs.CoreFatal, "crdt: stored page update is corrupt", err)
			}
		}
		sv, _ := DecodeStateVector(p.YjsStateVector)
		return newTarget(id, kind, p.ID, doc, sv, p.CurrentRevisionNumber), nil

	default:
		return nil, errs.New(errs.InvalidInput, "crdt: unknown target kind")
	}
}

// HandleSyncStep1 answers a client's state vector with the diff it lacks.
func (s *Store) HandleSyncStep1(t *Target, remoteSV []byte) ([]byte, error) {
	diff, err := t.syncStep2(remoteSV)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, "crdt: malformed state vector", err)
	}
	return diff, nil
}

// HandleUpdate applies a client update, broadcasts it to the target's
// other clients, and (if the doc actually changed) arms the persistence
// debounce. A malformed update is reported to the caller without ever
// touching the live doc or disconnecting the client.
func (s *Store) HandleUpdate(ctx context.Context, t *Target, c *Client, update []byte, userID uuid.UUID) error {
	if t.isBlocked() {
		return errs.New(errs.CoreFatal, "crdt: target blocked after repeated persistence failures")
	}
	changed, err := t.applyUpdate(c, update, userID)
	if err != nil {
		return errs.Wrap(errs.InvalidInput, "crdt: malformed update", err)
	}
	if changed {
		s.armPersistDebounce(t)
	}
	return nil
}

// HandleAwareness relays a presence blob; it is never persisted.
func (s *Store) HandleAwareness(t *Target, c *Client, blob []byte) {
	t.broadcastAwareness(c, blob)
}

func (s *Store) armPersistDebounce(t *Target) {
	t.mu.Lock()
	if t.persistTimer != nil {
		t.persistTimer.Stop()
	}
	t.persistTimer = time.AfterFunc(persistDebounce, func() {
		if err := s.persist(context.Background(), t, nil); err != nil {
			logx.Errorf("crdt: debounced persist failed for target %s: %v", t.ID, err)
		}
	})
	t.mu.Unlock()
}

func (s *Store) armIdleEviction(t *Target) {
	t.mu.Lock()
	if t.idleTimer != nil {
		t.idleTimer.Stop()
	}
	t.idleTimer = time.AfterFunc(idleGrace, func() { s.evict(t) })
	t.mu.Unlock()
}

func (s *Store) cancelIdle(t *Target) {
	t.mu.Lock()
	if t.idleTimer != nil {
		t.idleTimer.Stop()
		t.idleTimer = nil
	}
	t.mu.Unlock()
}

func (s *Store) evict(t *Target) {
	if t.clientCount() > 0 {
		return // a client joined during the idle grace
	}
	s.mu.Lock()
	delete(s.targets, t.ID)
	s.mu.Unlock()
}

// persist runs one persistence cycle: snapshot the doc, write it if
// anything changed since the last persisted state vector, and cut a
// revision if the thresholds are crossed (or restoredFrom forces one).
func (s *Store) persist(ctx context.Context, t *Target, restoredFrom *int) error {
	t.mu.Lock()
	if t.blocked {
		t.mu.Unlock()
		return errs.New(errs.CoreFatal, "crdt: target blocked after repeated persistence failures")
	}
	lastSV := t.lastPersistedSV
	t.mu.Unlock()

	currentSV := t.doc.StateVector()
	if restoredFrom == nil && sameStateVector(currentSV, lastSV) {
		return nil // nothing changed since the last cycle
	}

	full, err := EncodeStateAsUpdate(t.doc, nil)
	if err != nil {
		return errs.Wrap(errs.CoreFatal, "crdt: encode full update", err)
	}
	svBytes, err := EncodeStateVector(t.doc)
	if err != nil {
		return errs.Wrap(errs.CoreFatal, "crdt: encode state vector", err)
	}

	t.mu.Lock()
	timeSince := time.Since(t.lastRevisionAt)
	charDelta := t.charsSinceRevision
	contributors := append([]uuid.UUID(nil), t.contributors...)
	rowID := t.rowID
	t.mu.Unlock()

	crossed := restoredFrom != nil ||
		(timeSince > revisionInterval && charDelta > 0) ||
		charDelta > revisionCharDelta

	var cutRevision *models.Revision
	nextRevNumber := t.revisionNumber
	if crossed {
		nextRevNumber = t.revisionNumber + 1
		cutRevision = &models.Revision{
			ID:                 uuid.New(),
			TargetID:           t.ID,
			TargetKind:         t.Kind,
			RevisionNumber:     nextRevNumber,
			YjsStateVector:     svBytes,
			YjsDocumentContent: full,
			ContributedBy:      contributors,
			RestoredFrom:       restoredFrom,
		}
	}

	write := func() error {
		switch t.Kind {
		case models.TargetTicketArticle:
			return s.repo.PersistArticleAndRevision(ctx, models.ArticleContent{
				ID:                    rowID,
				TicketID:              t.ID,
				YjsDocumentContent:    full,
				YjsStateVector:        svBytes,
				CurrentRevisionNumber: nextRevNumber,
			}, cutRevision)
		case models.TargetDocPage:
			return s.repo.PersistDocPageAndRevision(ctx, t.ID, full, svBytes, nextRevNumber, cutRevision)
		default:
			return errs.New(errs.InvalidInput, "crdt: unknown target kind")
		}
	}

	if err := retryWithBackoff(ctx, maxPersistRetries, write); err != nil {
		t.mu.Lock()
		t.blocked = true
		t.mu.Unlock()
		logx.WithContext(ctx).Errorf("crdt: persistence exhausted retries for target %s, blocking updates: %v", t.ID, err)
		return errs.Wrap(errs.CoreFatal, "crdt: persist", err)
	}

	t.mu.Lock()
	t.lastPersistedSV = currentSV
	if crossed {
		t.revisionNumber = nextRevNumber
		t.lastRevisionAt = time.Now().UTC()
		t.charsSinceRevision = 0
		t.contributors = nil
	}
	t.mu.Unlock()

	if crossed && t.Kind == models.TargetDocPage && s.onDocPageRevision != nil {
		go s.onDocPageRevision(t.ID, nextRevNumber)
	}
	return nil
}

// Restore replays a past revision into the live doc as a single
// self-contained update, broadcasts the result, and eagerly persists a
// new revision marked as restored from the given number.
func (s *Store) Restore(ctx context.Context, id uuid.UUID, kind models.DocTargetKind, revisionNumber int) error {
	t, err := s.getOrLoad(ctx, id, kind)
	if err != nil {
		return err
	}

	rev, err := s.repo.GetRevision(ctx, id, revisionNumber)
	if err != nil {
		if err == repository.ErrNotFound {
			return errs.New(errs.NotFound, "crdt: revision not found")
		}
		return errs.Wrap(errs.StorageError, "crdt: load revision", err)
	}

	docR := NewYDoc(0)
	if err := ApplyUpdate(docR, rev.YjsDocumentContent); err != nil {
		return errs.Wrap(errs.CoreFatal, "crdt: stored revision is corrupt", err)
	}

	full, err := EncodeStateAsUpdate(docR, nil)
	if err != nil {
		return errs.Wrap(errs.CoreFatal, "crdt: encode restored update", err)
	}
	if err := ApplyUpdate(t.doc, full); err != nil {
		return errs.Wrap(errs.CoreFatal, "crdt: merge restored revision", err)
	}
	t.broadcast(Update, full, nil)

	from := revisionNumber
	return s.persist(ctx, t, &from)
}

func sameStateVector(a, b map[uint64]uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func retryWithBackoff(ctx context.Context, attempts int, fn func() error) error {
	delay := persistRetryBase
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
