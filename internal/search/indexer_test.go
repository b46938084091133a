package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosdesk/collab-core/internal/crdt"
	"github.com/nosdesk/collab-core/internal/models"
)

type fakeClient struct {
	mu      sync.Mutex
	added   []interface{}
	deleted []string
	addErr  error
}

func (f *fakeClient) AddDocuments(indexName string, documents interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, documents)
	return nil
}

func (f *fakeClient) DeleteDocument(indexName, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, documentID)
	return nil
}

func samplePage(t *testing.T, body string) models.DocumentationPage {
	t.Helper()
	doc := crdt.NewYDoc(1)
	after := crdt.ID{}
	for _, r := range body {
		after = doc.Insert(after, r)
	}
	update, err := crdt.EncodeStateAsUpdate(doc, nil)
	require.NoError(t, err)

	return models.DocumentationPage{
		ID:                 uuid.New(),
		Slug:               "getting-started",
		Title:              "Getting Started",
		Status:             models.PagePublished,
		YjsDocumentContent: update,
	}
}

func TestIndexDocPage_DecodesYjsContentToPlainText(t *testing.T) {
	fc := &fakeClient{}
	idx := &Indexer{client: fc}
	page := samplePage(t, "hello world")

	require.NoError(t, idx.IndexDocPage(context.Background(), page))

	require.Len(t, fc.added, 1)
	docs, ok := fc.added[0].([]docPageDocument)
	require.True(t, ok)
	require.Len(t, docs, 1)
	assert.Equal(t, "hello world", docs[0].Body)
	assert.Equal(t, page.ID.String(), docs[0].ID)
}

func TestIndexDocPage_EmptyContentIndexesEmptyBody(t *testing.T) {
	fc := &fakeClient{}
	idx := &Indexer{client: fc}
	page := models.DocumentationPage{ID: uuid.New(), Slug: "blank", Title: "Blank"}

	require.NoError(t, idx.IndexDocPage(context.Background(), page))

	docs := fc.added[0].([]docPageDocument)
	assert.Equal(t, "", docs[0].Body)
}

func TestIndexDocPageAsync_LoaderErrorNeverPanics(t *testing.T) {
	fc := &fakeClient{}
	idx := &Indexer{client: fc}

	done := make(chan struct{})
	idx.IndexDocPageAsync(func(ctx context.Context) (*models.DocumentationPage, error) {
		defer close(done)
		return nil, errors.New("not found")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loader never ran")
	}
	assert.Empty(t, fc.added)
}

func TestRemoveDocPage_CallsDeleteDocument(t *testing.T) {
	fc := &fakeClient{}
	idx := &Indexer{client: fc}
	id := uuid.New().String()

	idx.RemoveDocPage(id)

	require.Eventually(t, func() bool {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		return len(fc.deleted) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, id, fc.deleted[0])
}
