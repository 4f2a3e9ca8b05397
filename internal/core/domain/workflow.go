package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	FirstStep = 1
	FinalStep = 3
)

type Role string

const (
	RoleViewer   Role = "viewer"
	RoleReviewer Role = "reviewer"
	RoleManager  Role = "manager"
	RoleApprover Role = "approver"
	RoleAdmin    Role = "admin"
)

func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleViewer, RoleReviewer, RoleManager, RoleApprover, RoleAdmin:
		return role, true
	default:
		return "", false
	}
}

// stepRoles gates each workflow step. Admin is accepted everywhere.
var stepRoles = map[int][]Role{
	1: {RoleReviewer},
	2: {RoleManager, RoleApprover},
	3: {RoleAdmin},
}

// CanActAt reports whether the role passes the gate of the given step.
func (r Role) CanActAt(step int) bool {
	if r == RoleAdmin {
		return true
	}
	for _, allowed := range stepRoles[step] {
		if r == allowed {
			return true
		}
	}
	return false
}

type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionReject  ApprovalAction = "reject"
)

func ParseApprovalAction(raw string) (ApprovalAction, bool) {
	switch ApprovalAction(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionApprove:
		return ActionApprove, true
	case ActionReject:
		return ActionReject, true
	default:
		return "", false
	}
}

// Actor is the authenticated caller of a workflow action.
type Actor struct {
	ID   string
	Role Role
}

type Approval struct {
	ID           string         `json:"id"`
	DocumentID   string         `json:"document_id"`
	Step         int            `json:"step"`
	ApproverID   string         `json:"approver_id"`
	ApproverRole Role           `json:"approver_role"`
	Action       ApprovalAction `json:"action"`
	Comment      string         `json:"comment,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

type WorkflowState struct {
	Status      DocumentStatus `json:"status"`
	CurrentStep int            `json:"current_step"`
}

// NextState applies one action to a pending workflow position.
func NextState(current WorkflowState, action ApprovalAction) (WorkflowState, error) {
	if current.Status.IsTerminal() {
		return current, WrapError(ErrConflict, "workflow transition", fmt.Errorf("document already %s", current.Status))
	}
	if current.CurrentStep < FirstStep || current.CurrentStep > FinalStep {
		return current, WrapError(ErrConflict, "workflow transition", fmt.Errorf("step %d out of range", current.CurrentStep))
	}

	next := current
	switch action {
	case ActionApprove:
		if current.CurrentStep < FinalStep {
			next.CurrentStep++
		} else {
			next.Status = StatusApproved
		}
	case ActionReject:
		next.Status = StatusRejected
	default:
		return current, WrapError(ErrInvalidInput, "workflow transition", fmt.Errorf("unknown action %q", action))
	}
	return next, nil
}
