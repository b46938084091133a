package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nosdesk/collab-core/internal/models"
)

const (
	upsertArticleContentQuery = `
		INSERT INTO article_contents (id, ticket_id, yjs_document_content, yjs_state_vector, current_revision_number, created_at, updated_at)
		VALUES (:id, :ticket_id, :yjs_document_content, :yjs_state_vector, :current_revision_number, now(), now())
		ON CONFLICT (ticket_id) DO UPDATE SET
			yjs_document_content = EXCLUDED.yjs_document_content,
			yjs_state_vector = EXCLUDED.yjs_state_vector,
			current_revision_number = EXCLUDED.current_revision_number,
			updated_at = now()`

	selectArticleContentByTicketQuery = `
		SELECT id, ticket_id, yjs_document_content, yjs_state_vector, current_revision_number, created_at, updated_at
		FROM article_contents WHERE ticket_id = $1`

	upsertDocPageContentQuery = `
		UPDATE documentation_pages SET
			yjs_document_content = $2, yjs_state_vector = $3, current_revision_number = $4, updated_at = now()
		WHERE id = $1`

	selectDocPageQuery = `
		SELECT id, parent_id, display_order, slug, icon, status, title,
		       yjs_document_content, yjs_state_vector, current_revision_number, created_at, updated_at
		FROM documentation_pages WHERE id = $1`

	updateDocPageParentQuery = `
		UPDATE documentation_pages SET parent_id = $2, updated_at = now() WHERE id = $1`

	selectDocPageAncestryQuery = `
		WITH RECURSIVE ancestry AS (
			SELECT id, parent_id FROM documentation_pages WHERE id = $1
			UNION ALL
			SELECT p.id, p.parent_id FROM documentation_pages p
			JOIN ancestry a ON p.id = a.parent_id
		)
		SELECT id FROM ancestry`

	insertRevisionQuery = `
		INSERT INTO revisions (id, target_id, target_kind, revision_number, yjs_state_vector, yjs_document_content, contributed_by, restored_from, created_at)
		VALUES (:id, :target_id, :target_kind, :revision_number, :yjs_state_vector, :yjs_document_content, :contributed_by, :restored_from, now())`

	selectLatestRevisionNumberQuery = `
		SELECT COALESCE(MAX(revision_number), 0) FROM revisions WHERE target_id = $1`

	selectRevisionQuery = `
		SELECT id, target_id, target_kind, revision_number, yjs_state_vector, yjs_document_content, contributed_by, restored_from, created_at
		FROM revisions WHERE target_id = $1 AND revision_number = $2`
)

// DocumentRepository persists the CRDT-owned rows: ArticleContent,
// DocumentationPage, and Revision. A single table pair backs both target
// kinds' revisions (Revision.TargetKind discriminates) to avoid
// duplicated revision-table logic.
type DocumentRepository struct {
	*BaseRepository
}

func NewDocumentRepository(base *BaseRepository) *DocumentRepository {
	return &DocumentRepository{BaseRepository: base}
}

// UpsertArticleContent creates the row lazily on first edit, or updates
// it on every persistence cycle thereafter.
func (r *DocumentRepository) UpsertArticleContent(ctx context.Context, a models.ArticleContent) error {
	_, err := r.NamedExec(ctx, upsertArticleContentQuery, a)
	return err
}

func (r *DocumentRepository) GetArticleContentByTicket(ctx context.Context, ticketID uuid.UUID) (*models.ArticleContent, error) {
	var a models.ArticleContent
	if err := r.Get(ctx, &a, selectArticleContentByTicketQuery, ticketID); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *DocumentRepository) UpdateDocPageContent(ctx context.Context, id uuid.UUID, content, stateVector []byte, revNumber int) error {
	_, err := r.Exec(ctx, upsertDocPageContentQuery, id, content, stateVector, revNumber)
	return err
}

func (r *DocumentRepository) GetDocPage(ctx context.Context, id uuid.UUID) (*models.DocumentationPage, error) {
	var p models.DocumentationPage
	if err := r.Get(ctx, &p, selectDocPageQuery, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// WouldCycle reports whether reparenting page `id` under `newParent` would
// introduce a cycle in the documentation tree: walk newParent's ancestry
// and reject if id appears in it.
func (r *DocumentRepository) WouldCycle(ctx context.Context, id, newParent uuid.UUID) (bool, error) {
	if id == newParent {
		return true, nil
	}
	var ancestry []uuid.UUID
	if err := r.Select(ctx, &ancestry, selectDocPageAncestryQuery, newParent); err != nil {
		return false, err
	}
	for _, a := range ancestry {
		if a == id {
			return true, nil
		}
	}
	return false, nil
}

// MoveDocPage reparents a documentation page. Callers must check
// WouldCycle first; this method performs the write only.
func (r *DocumentRepository) MoveDocPage(ctx context.Context, id uuid.UUID, newParent *uuid.UUID) error {
	_, err := r.Exec(ctx, updateDocPageParentQuery, id, newParent)
	return err
}

// NextRevisionNumber returns the next dense, strictly-increasing revision
// number for a target.
func (r *DocumentRepository) NextRevisionNumber(ctx context.Context, targetID uuid.UUID) (int, error) {
	var max int
	if err := r.Get(ctx, &max, selectLatestRevisionNumberQuery, targetID); err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r *DocumentRepository) InsertRevision(ctx context.Context, rev models.Revision) error {
	_, err := r.NamedExec(ctx, insertRevisionQuery, rev)
	return err
}

func (r *DocumentRepository) GetRevision(ctx context.Context, targetID uuid.UUID, number int) (*models.Revision, error) {
	var rev models.Revision
	if err := r.Get(ctx, &rev, selectRevisionQuery, targetID, number); err != nil {
		return nil, err
	}
	return &rev, nil
}

// PersistArticleAndRevision runs the persistence-cycle write and (when
// cutRevision is non-nil) the revision insert in one transaction, so a
// crash between the two can never leave current_revision_number pointing
// at a revision row that doesn't exist.
func (r *DocumentRepository) PersistArticleAndRevision(ctx context.Context, a models.ArticleContent, cutRevision *models.Revision) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, upsertArticleContentQuery, a); err != nil {
			return err
		}
		if cutRevision != nil {
			if _, err := tx.NamedExecContext(ctx, insertRevisionQuery, *cutRevision); err != nil {
				return err
			}
		}
		return nil
	})
}

// PersistDocPageAndRevision is PersistArticleAndRevision's documentation-page
// counterpart.
func (r *DocumentRepository) PersistDocPageAndRevision(ctx context.Context, id uuid.UUID, content, stateVector []byte, revNumber int, cutRevision *models.Revision) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertDocPageContentQuery, id, content, stateVector, revNumber); err != nil {
			return err
		}
		if cutRevision != nil {
			if _, err := tx.NamedExecContext(ctx, insertRevisionQuery, *cutRevision); err != nil {
				return err
			}
		}
		return nil
	})
}
