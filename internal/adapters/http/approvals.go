package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// Identity arrives from a trusted gateway; authentication happens upstream.
const (
	userIDHeader   = "X-User-Id"
	userRoleHeader = "X-User-Role"
)

type approveRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

func (rt *Router) approveDocument(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		rt.metrics.RecordApprovalAction("", err)
		writeError(w, err)
		return
	}

	var req approveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		rt.metrics.RecordApprovalAction("", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	action, ok := domain.ParseApprovalAction(req.Action)
	if !ok {
		err := domain.WrapError(domain.ErrInvalidInput, "approve document", errors.New("action must be approve or reject"))
		rt.metrics.RecordApprovalAction("", err)
		writeError(w, err)
		return
	}

	state, err := rt.workflow.Act(r.Context(), r.PathValue("id"), actor, action, strings.TrimSpace(req.Comment))
	rt.metrics.RecordApprovalAction(string(action), err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) listApprovals(w http.ResponseWriter, r *http.Request) {
	approvals, err := rt.workflow.ListApprovals(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if approvals == nil {
		approvals = []domain.Approval{}
	}
	writeJSON(w, http.StatusOK, approvals)
}

// actorFromRequest: missing identity is 401, an unknown role is 403.
func actorFromRequest(r *http.Request) (domain.Actor, error) {
	id := strings.TrimSpace(r.Header.Get(userIDHeader))
	rawRole := strings.TrimSpace(r.Header.Get(userRoleHeader))
	if id == "" || rawRole == "" {
		return domain.Actor{}, domain.WrapError(domain.ErrUnauthorized, "resolve actor", errors.New("X-User-Id and X-User-Role headers are required"))
	}
	role, ok := domain.ParseRole(rawRole)
	if !ok {
		return domain.Actor{}, domain.WrapError(domain.ErrForbidden, "resolve actor", errors.New("unknown role"))
	}
	return domain.Actor{ID: id, Role: role}, nil
}
