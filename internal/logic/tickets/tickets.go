// Package tickets is the Change Coordinator's live caller: ticket field
// updates and comment insert/delete all run through
// coordinator.Coordinator.WithCoordinator, so their ticket-updated/
// comment-added/comment-deleted broadcasts are only handed to the Event
// Bus once the write that produced them has committed.
package tickets

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/coordinator"
	"github.com/nosdesk/collab-core/internal/errs"
	"github.com/nosdesk/collab-core/internal/eventbus"
	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/repository"
	"github.com/nosdesk/collab-core/internal/types"
)

// Tickets is the slice of TicketRepository this package needs, narrowed
// the way internal/logic/auth narrows Users.
type Tickets interface {
	GetTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	UpdateFieldTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, field, value string) error
}

// Comments is the slice of CommentRepository this package needs.
type Comments interface {
	GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	InsertTx(ctx context.Context, tx *sqlx.Tx, c models.Comment) error
	DeleteTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error
}

type UpdateTicketLogic struct {
	logx.Logger
	ctx     context.Context
	tickets Tickets
	coord   *coordinator.Coordinator
}

func NewUpdateTicketLogic(ctx context.Context, tickets Tickets, coord *coordinator.Coordinator) *UpdateTicketLogic {
	return &UpdateTicketLogic{Logger: logx.WithContext(ctx), ctx: ctx, tickets: tickets, coord: coord}
}

// UpdateField changes one ticket field inside a coordinated transaction.
// Only fields in repository.TicketFieldColumns may be set this way.
func (l *UpdateTicketLogic) UpdateField(req *types.UpdateTicketRequest, ticketID, updatedBy uuid.UUID) error {
	if _, ok := repository.TicketFieldColumns[req.Field]; !ok {
		return errs.New(errs.InvalidInput, "tickets: unknown field "+req.Field)
	}
	if _, err := l.tickets.GetTicket(l.ctx, ticketID); err != nil {
		if err == repository.ErrNotFound {
			return errs.New(errs.NotFound, "tickets: ticket not found")
		}
		return errs.Wrap(errs.StorageError, "tickets: lookup ticket", err)
	}

	return l.coord.WithCoordinator(l.ctx, func(cctx *coordinator.Context) error {
		if err := l.tickets.UpdateFieldTx(l.ctx, cctx.Tx, ticketID, req.Field, req.Value); err != nil {
			return errs.Wrap(errs.StorageError, "tickets: update field", err)
		}
		return cctx.Emit(eventbus.TicketScope(ticketID.String()), coordinator.KindTicketUpdated, types.TicketUpdatedPayload{
			TicketID:  ticketID.String(),
			Field:     req.Field,
			Value:     req.Value,
			UpdatedBy: updatedBy.String(),
		})
	})
}

type CommentLogic struct {
	logx.Logger
	ctx      context.Context
	tickets  Tickets
	comments Comments
	coord    *coordinator.Coordinator
}

func NewCommentLogic(ctx context.Context, tickets Tickets, comments Comments, coord *coordinator.Coordinator) *CommentLogic {
	return &CommentLogic{Logger: logx.WithContext(ctx), ctx: ctx, tickets: tickets, comments: comments, coord: coord}
}

// Add inserts a comment and stages comment-added for publication after
// commit.
func (l *CommentLogic) Add(req *types.AddCommentRequest, ticketID, authorID uuid.UUID) (*types.CommentResponse, error) {
	if _, err := l.tickets.GetTicket(l.ctx, ticketID); err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.New(errs.NotFound, "tickets: ticket not found")
		}
		return nil, errs.Wrap(errs.StorageError, "tickets: lookup ticket", err)
	}

	comment := models.Comment{ID: uuid.New(), TicketID: ticketID, AuthorID: authorID, Body: req.Body}

	err := l.coord.WithCoordinator(l.ctx, func(cctx *coordinator.Context) error {
		if err := l.comments.InsertTx(l.ctx, cctx.Tx, comment); err != nil {
			return errs.Wrap(errs.StorageError, "tickets: insert comment", err)
		}
		return cctx.Emit(eventbus.TicketScope(ticketID.String()), coordinator.KindCommentAdded, types.CommentEventPayload{
			TicketID:  ticketID.String(),
			CommentID: comment.ID.String(),
			AuthorID:  authorID.String(),
			Body:      comment.Body,
		})
	})
	if err != nil {
		return nil, err
	}
	return &types.CommentResponse{ID: comment.ID.String(), TicketID: ticketID.String(), AuthorID: authorID.String(), Body: comment.Body}, nil
}

// Delete removes a comment and stages comment-deleted for publication
// after commit. It rejects a commentID that exists but belongs to a
// different ticket than the one named in the path.
func (l *CommentLogic) Delete(ticketID, commentID uuid.UUID) error {
	existing, err := l.comments.GetComment(l.ctx, commentID)
	if err != nil {
		if err == repository.ErrNotFound {
			return errs.New(errs.NotFound, "tickets: comment not found")
		}
		return errs.Wrap(errs.StorageError, "tickets: lookup comment", err)
	}
	if existing.TicketID != ticketID {
		return errs.New(errs.InvalidInput, "tickets: comment does not belong to ticket")
	}

	return l.coord.WithCoordinator(l.ctx, func(cctx *coordinator.Context) error {
		if err := l.comments.DeleteTx(l.ctx, cctx.Tx, commentID); err != nil {
			return errs.Wrap(errs.StorageError, "tickets: delete comment", err)
		}
		return cctx.Emit(eventbus.TicketScope(ticketID.String()), coordinator.KindCommentDeleted, types.CommentEventPayload{
			TicketID:  ticketID.String(),
			CommentID: commentID.String(),
		})
	})
}
