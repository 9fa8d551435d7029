package internal

import (
	"net/http"

	"cmdb-api/internal/models"
)

// getAsset returns the asset with its detail record and components.
func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.Core.GetAsset(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// listEvents pages through the audit trail, optionally narrowed by
// asset_id or quarantine_id.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	assetID, err := queryID(r, "asset_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	quarantineID, err := queryID(r, "quarantine_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	events, total, err := s.Core.ListEvents(r.Context(), models.EventFilter{
		AssetID:      assetID,
		QuarantineID: quarantineID,
		Limit:        params.limit,
		Offset:       params.offset,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sendListResponse(w, events, total, params)
}
