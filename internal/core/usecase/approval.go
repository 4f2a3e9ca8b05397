package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

type ApprovalUseCase struct {
	repo   ports.DocumentRepository
	tx     ports.Transactor
	now    func() time.Time
	logger *slog.Logger
}

func NewApprovalUseCase(repo ports.DocumentRepository, tx ports.Transactor, logger *slog.Logger) *ApprovalUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApprovalUseCase{
		repo:   repo,
		tx:     tx,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Act applies one approve/reject action. The approval record and the state change
// commit together; a stale version from a concurrent action surfaces as ErrConflict.
func (uc *ApprovalUseCase) Act(
	ctx context.Context,
	documentID string,
	actor domain.Actor,
	action domain.ApprovalAction,
	comment string,
) (domain.WorkflowState, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return domain.WorkflowState{}, domain.WrapError(domain.ErrUnauthorized, "approval action", errors.New("actor id is required"))
	}

	var result domain.WorkflowState
	err := uc.tx.WithinTx(ctx, func(ctx context.Context, tx ports.DocumentTx) error {
		doc, err := tx.GetForUpdate(ctx, documentID)
		if err != nil {
			return fmt.Errorf("load document: %w", err)
		}

		current := domain.WorkflowState{Status: doc.Status, CurrentStep: doc.CurrentStep}
		if _, ok := domain.ParseApprovalAction(string(action)); !ok {
			return domain.WrapError(domain.ErrInvalidInput, "approval action", fmt.Errorf("action must be approve or reject, got %q", action))
		}
		if current.Status.IsTerminal() {
			return domain.WrapError(domain.ErrConflict, "approval action", fmt.Errorf("document is already %s", current.Status))
		}
		if !actor.Role.CanActAt(current.CurrentStep) {
			return domain.WrapError(
				domain.ErrForbidden,
				"approval action",
				fmt.Errorf("role %q is not authorized for step %d", actor.Role, current.CurrentStep),
			)
		}

		next, err := domain.NextState(current, action)
		if err != nil {
			return err
		}

		approval := &domain.Approval{
			ID:           uuid.NewString(),
			DocumentID:   doc.ID,
			Step:         current.CurrentStep,
			ApproverID:   actor.ID,
			ApproverRole: actor.Role,
			Action:       action,
			Comment:      comment,
			CreatedAt:    uc.now(),
		}
		if err := tx.AppendApproval(ctx, approval); err != nil {
			return fmt.Errorf("append approval: %w", err)
		}

		doc.Status = next.Status
		doc.CurrentStep = next.CurrentStep
		if err := tx.UpdateWorkflow(ctx, doc); err != nil {
			return fmt.Errorf("update workflow state: %w", err)
		}

		result = next
		return nil
	})
	if err != nil {
		return domain.WorkflowState{}, err
	}

	uc.logger.Info("approval_recorded",
		"document_id", documentID,
		"actor_id", actor.ID,
		"role", string(actor.Role),
		"action", string(action),
		"status", string(result.Status),
		"current_step", result.CurrentStep,
	)
	return result, nil
}

func (uc *ApprovalUseCase) ListApprovals(ctx context.Context, documentID string) ([]domain.Approval, error) {
	if _, err := uc.repo.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	approvals, err := uc.repo.ListApprovals(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return approvals, nil
}
