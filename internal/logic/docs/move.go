// Package docs is the logic layer for documentation-page tree operations
// that sit outside the CRDT content sync socket, starting with reparenting.
package docs

import (
	"context"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/errs"
	"github.com/nosdesk/collab-core/internal/models"
	"github.com/nosdesk/collab-core/internal/repository"
)

// Documents is the slice of DocumentRepository the move operation needs.
type Documents interface {
	GetDocPage(ctx context.Context, id uuid.UUID) (*models.DocumentationPage, error)
	WouldCycle(ctx context.Context, id, newParent uuid.UUID) (bool, error)
	MoveDocPage(ctx context.Context, id uuid.UUID, newParent *uuid.UUID) error
}

type MovePageLogic struct {
	logx.Logger
	ctx       context.Context
	documents Documents
}

func NewMovePageLogic(ctx context.Context, documents Documents) *MovePageLogic {
	return &MovePageLogic{Logger: logx.WithContext(ctx), ctx: ctx, documents: documents}
}

// Move reparents page id under newParent, or to the tree root when
// newParent is nil. A move that would introduce a cycle (newParent is id
// itself, or a descendant of id) is rejected before any write happens.
func (l *MovePageLogic) Move(id uuid.UUID, newParent *uuid.UUID) error {
	if newParent != nil {
		if _, err := l.documents.GetDocPage(l.ctx, *newParent); err != nil {
			if err == repository.ErrNotFound {
				return errs.New(errs.NotFound, "docs: new parent not found")
			}
			return errs.Wrap(errs.StorageError, "docs: lookup new parent", err)
		}

		cycle, err := l.documents.WouldCycle(l.ctx, id, *newParent)
		if err != nil {
			return errs.Wrap(errs.StorageError, "docs: cycle check", err)
		}
		if cycle {
			return errs.New(errs.ConflictError, "docs: move would create a cycle in the documentation tree")
		}
	}

	if err := l.documents.MoveDocPage(l.ctx, id, newParent); err != nil {
		return errs.Wrap(errs.StorageError, "docs: move page", err)
	}
	return nil
}
