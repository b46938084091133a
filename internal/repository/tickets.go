package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nosdesk/collab-core/internal/models"
)

const (
	selectTicketQuery      = `SELECT id, title, status, assigned_to, created_at, updated_at FROM tickets WHERE id = $1`
	updateTicketStatusQuery = `UPDATE tickets SET status = $2, updated_at = now() WHERE id = $1`
	updateTicketTitleQuery  = `UPDATE tickets SET title = $2, updated_at = now() WHERE id = $1`

	insertCommentQuery = `
		INSERT INTO comments (id, ticket_id, author_id, body, created_at)
		VALUES (:id, :ticket_id, :author_id, :body, now())`
	selectCommentQuery = `SELECT id, ticket_id, author_id, body, created_at FROM comments WHERE id = $1`
	deleteCommentQuery = `DELETE FROM comments WHERE id = $1`
)

// TicketFieldColumns is the allow-list of ticket fields a PATCH may
// target; anything outside this set is rejected by the logic layer
// before it ever reaches SQL.
var TicketFieldColumns = map[string]string{
	"status": "status",
	"title":  "title",
}

// TicketRepository persists the slice of a ticket this core owns: the
// fields a PATCH can change. Everything else about a ticket lives with
// the external collaborator.
type TicketRepository struct {
	*BaseRepository
}

func NewTicketRepository(base *BaseRepository) *TicketRepository {
	return &TicketRepository{BaseRepository: base}
}

func (r *TicketRepository) GetTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var t models.Ticket
	if err := r.Get(ctx, &t, selectTicketQuery, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateFieldTx runs inside the Change Coordinator's transaction: it
// writes the field and leaves publishing the resulting ticket-updated
// event to the caller's Context.Emit, after commit.
func (r *TicketRepository) UpdateFieldTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, field, value string) error {
	var query string
	switch field {
	case "status":
		query = updateTicketStatusQuery
	case "title":
		query = updateTicketTitleQuery
	default:
		return fmt.Errorf("repository: unknown ticket field %q", field)
	}
	_, err := tx.ExecContext(ctx, query, id, value)
	return err
}

// CommentRepository persists ticket comments.
type CommentRepository struct {
	*BaseRepository
}

func NewCommentRepository(base *BaseRepository) *CommentRepository {
	return &CommentRepository{BaseRepository: base}
}

func (r *CommentRepository) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var c models.Comment
	if err := r.Get(ctx, &c, selectCommentQuery, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertTx runs inside the Change Coordinator's transaction.
func (r *CommentRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, c models.Comment) error {
	_, err := tx.NamedExecContext(ctx, insertCommentQuery, c)
	return err
}

// DeleteTx runs inside the Change Coordinator's transaction.
func (r *CommentRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx, deleteCommentQuery, id)
	return err
}
