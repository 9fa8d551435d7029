package internal

import (
	"encoding/json"
	"net/http"

	"cmdb-api/internal/apperr"
	"cmdb-api/internal/auth"
)

func (s *Server) listApprovals(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	items, total, err := s.Core.ListPendingApprovals(r.Context(), params.limit, params.offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sendListResponse(w, items, total, params)
}

// approve promotes one quarantine record; the token subject is the approver.
func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	asset, err := s.Core.Approve(r.Context(), id, auth.ActorFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

type approveManyRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) approveMany(w http.ResponseWriter, r *http.Request) {
	var in approveManyRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, r, apperr.Validation("invalid JSON"))
		return
	}
	if len(in.IDs) == 0 {
		s.writeError(w, r, apperr.ValidationField("ids", "at least one id is required"))
		return
	}

	results := s.Core.ApproveMany(r.Context(), in.IDs, auth.ActorFromContext(r.Context()))
	approved := 0
	for _, res := range results {
		if res.Err == nil {
			approved++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":     results,
		"approved": approved,
		"failed":   len(results) - approved,
	})
}
