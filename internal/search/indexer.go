// Package search keeps the Meilisearch documentation-page index in sync
// with the CRDT Document Store. Indexing is fire-and-forget: a slow or
// unreachable Meilisearch instance must never block a collaborator's edit
// from persisting, so the entry points the rest of the core calls
// (IndexDocPageAsync, RemoveDocPage) run their work on their own goroutine
// and only log a failure; IndexDocPage itself is synchronous.
package search

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/crdt"
	"github.com/nosdesk/collab-core/internal/models"
	thirdsearch "github.com/nosdesk/collab-core/third_party/search"
)

// docPageDocument is the flat record Meilisearch indexes and searches
// against; YjsDocumentContent never leaves internal/search in binary form.
type docPageDocument struct {
	ID     string `json:"id"`
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	Status string `json:"status"`
	Body   string `json:"body"`
}

// client is the narrow slice of MeiliSearchClient's API Indexer calls, so
// tests can substitute a fake instead of a live Meilisearch instance.
type client interface {
	AddDocuments(indexName string, documents interface{}) error
	DeleteDocument(indexName, documentID string) error
}

// Indexer pushes documentation-page content into Meilisearch whenever the
// CRDT Document Store cuts a new revision for that page.
type Indexer struct {
	client client
}

func NewIndexer(c *thirdsearch.MeiliSearchClient) *Indexer {
	return &Indexer{client: c}
}

// IndexDocPage decodes page's live Yjs content to plain text and upserts
// it into the doc_pages index. Safe to call with a page whose content is
// still empty (a brand-new page indexes with an empty body).
func (idx *Indexer) IndexDocPage(ctx context.Context, page models.DocumentationPage) error {
	doc := crdt.NewYDoc(0)
	if len(page.YjsDocumentContent) > 0 {
		if err := crdt.ApplyUpdate(doc, page.YjsDocumentContent); err != nil {
			return err
		}
	}

	record := docPageDocument{
		ID:     page.ID.String(),
		Slug:   page.Slug,
		Title:  page.Title,
		Status: string(page.Status),
		Body:   doc.Text(),
	}
	return idx.client.AddDocuments(thirdsearch.DocPagesIndex, []docPageDocument{record})
}

// IndexDocPageAsync runs IndexDocPage on its own goroutine and logs
// failure instead of propagating it. This is the shape
// crdt.Store.OnDocPageRevision expects: a RevisionCutFunc never returns
// an error and must never block the persistence path it's called from.
func (idx *Indexer) IndexDocPageAsync(loader func(ctx context.Context) (*models.DocumentationPage, error)) {
	go func() {
		ctx := context.Background()
		page, err := loader(ctx)
		if err != nil {
			logx.Errorf("search: load doc page for indexing: %v", err)
			return
		}
		if err := idx.IndexDocPage(ctx, *page); err != nil {
			logx.Errorf("search: index doc page %s: %v", page.ID, err)
		}
	}()
}

// RemoveDocPage deletes a page from the index, e.g. once archived past
// its retention window. Best-effort: logged, not propagated, matching the
// fire-and-forget contract the rest of this package keeps.
func (idx *Indexer) RemoveDocPage(pageID string) {
	go func() {
		if err := idx.client.DeleteDocument(thirdsearch.DocPagesIndex, pageID); err != nil {
			logx.Errorf("search: remove doc page %s: %v", pageID, err)
		}
	}()
}
