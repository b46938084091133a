package crdt

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/repository"
)

type fakeRepo struct {
	mu        sync.Mutex
	articles  map[uuid.UUID]models.ArticleContent
	pages     map[uuid.UUID]models.DocumentationPage
	revisions map[uuid.UUID]map[int]models.Revision
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		articles:  make(map[uuid.UUID]models.ArticleContent),
		pages:     make(map[uuid.UUID]models.DocumentationPage),
		revisions: make(map[uuid.UUID]map[int]models.Revision),
	}
}

func (f *fakeRepo) GetArticleContentByTicket(ctx context.Context, ticketID uuid.UUID) (*models.ArticleContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.articles[ticketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (f *fakeRepo) GetDocPage(ctx context.Context, id uuid.UUID) (*models.DocumentationPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *fakeRepo) GetRevision(ctx context.Context, targetID uuid.UUID, number int) (*models.Revision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byNum, ok := f.revisions[targetID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	rev, ok := byNum[number]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rev, nil
}

func (f *fakeRepo) PersistArticleAndRevision(ctx context.Context, a models.ArticleContent, cutRevision *models.Revision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.articles[a.TicketID] = a
	if cutRevision != nil {
		f.putRevision(*cutRevision)
	}
	return nil
}

func (f *fakeRepo) PersistDocPageAndRevision(ctx context.Context, id uuid.UUID, content, stateVector []byte, revNumber int, cutRevision *models.Revision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pages[id]
	p.ID = id
	p.YjsDocumentContent = content
	p.YjsStateVector = stateVector
	p.CurrentRevisionNumber = revNumber
	f.pages[id] = p
	if cutRevision != nil {
		f.putRevision(*cutRevision)
	}
	return nil
}

// putRevision must be called with f.mu held.
func (f *fakeRepo) putRevision(rev models.Revision) {
	if f.revisions[rev.TargetID] == nil {
		f.revisions[rev.TargetID] = make(map[int]models.Revision)
	}
	f.revisions[rev.TargetID][rev.RevisionNumber] = rev
}

func TestStore_JoinLoadsEmptyTargetOnFirstUse(t *testing.T) {
	s := NewStore(newFakeRepo())
	ticketID := uuid.New()
	userID := uuid.New()

	target, client, err := s.Join(context.Background(), ticketID, models.TargetTicketArticle, userID)
	require.NoError(t, err)
	assert.Equal(t, "", target.doc.Text())
	assert.NotNil(t, client)
}

func TestStore_UpdateThenFlushPersistsCompactedSnapshot(t *testing.T) {
	repo := newFakeRepo()
	s := NewStore(repo)
	ticketID := uuid.New()
	userID := uuid.New()

	target, client, err := s.Join(context.Background(), ticketID, models.TargetTicketArticle, userID)
	require.NoError(t, err)

	editor := NewYDoc(client.clientID)
	after := zeroID
	for _, r := range "draft" {
		after = editor.Insert(after, r)
	}
	update, err := EncodeStateAsUpdate(editor, nil)
	require.NoError(t, err)

	require.NoError(t, s.HandleUpdate(context.Background(), target, client, update, userID))
	require.NoError(t, s.persist(context.Background(), target, nil))

	stored, err := repo.GetArticleContentByTicket(context.Background(), ticketID)
	require.NoError(t, err)

	roundTrip := NewYDoc(0)
	require.NoError(t, ApplyUpdate(roundTrip, stored.YjsDocumentContent))
	assert.Equal(t, "draft", roundTrip.Text())
}

func TestStore_RevisionCutsAtCharacterThreshold(t *testing.T) {
	repo := newFakeRepo()
	s := NewStore(repo)
	ticketID := uuid.New()
	userID := uuid.New()

	target, client, err := s.Join(context.Background(), ticketID, models.TargetTicketArticle, userID)
	require.NoError(t, err)

	long := make([]rune, revisionCharDelta+10)
	for i := range long {
		long[i] = 'x'
	}
	editor := NewYDoc(client.clientID)
	after := zeroID
	for _, r := range long {
		after = editor.Insert(after, r)
	}
	update, err := EncodeStateAsUpdate(editor, nil)
	require.NoError(t, err)

	require.NoError(t, s.HandleUpdate(context.Background(), target, client, update, userID))
	require.NoError(t, s.persist(context.Background(), target, nil))

	rev, err := repo.GetRevision(context.Background(), ticketID, 1)
	require.NoError(t, err)
	assert.Contains(t, rev.ContributedBy, userID)
	assert.Nil(t, rev.RestoredFrom)
}

// TestStore_RestoreIsIdempotent is the revision-restore idempotence
// property: restoring the same revision twice in succession produces the
// same live document state as restoring it once.
func TestStore_RestoreIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	s := NewStore(repo)
	pageID := uuid.New()
	userID := uuid.New()

	target, client, err := s.Join(context.Background(), pageID, models.TargetDocPage, userID)
	require.NoError(t, err)

	editor := NewYDoc(client.clientID)
	after := zeroID
	for _, r := range "version one" {
		after = editor.Insert(after, r)
	}
	update, err := EncodeStateAsUpdate(editor, nil)
	require.NoError(t, err)
	require.NoError(t, s.HandleUpdate(context.Background(), target, client, update, userID))
	require.NoError(t, s.persist(context.Background(), target, nil)) // first-ever persist always cuts revision 1

	require.NoError(t, s.Restore(context.Background(), pageID, models.TargetDocPage, 1))
	firstRestoreText := target.doc.Text()

	require.NoError(t, s.Restore(context.Background(), pageID, models.TargetDocPage, 1))
	assert.Equal(t, firstRestoreText, target.doc.Text())
}

func TestStore_LeaveFlushesAndSchedulesIdleEviction(t *testing.T) {
	repo := newFakeRepo()
	s := NewStore(repo)
	ticketID := uuid.New()
	userID := uuid.New()

	target, client, err := s.Join(context.Background(), ticketID, models.TargetTicketArticle, userID)
	require.NoError(t, err)

	s.Leave(context.Background(), target, client)
	assert.Equal(t, 0, target.clientCount())

	s.mu.Lock()
	_, stillTracked := s.targets[ticketID]
	s.mu.Unlock()
	assert.True(t, stillTracked, "target must stay resident through the idle grace period")
}
