package internal

import (
	"io"
	"net/http"

	"cmdb-api/internal/apperr"
	"cmdb-api/internal/reconcile"
)

// readReport reads the request body, bounded by the configured report size.
func (s *Server) readReport(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body := io.Reader(r.Body)
	if s.maxReportBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.maxReportBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperr.Validation("empty report")
	}
	return data, nil
}

// ingestReport stages a report, or updates the asset when its serial number
// is already approved.
func (s *Server) ingestReport(w http.ResponseWriter, r *http.Request) {
	payload, err := s.readReport(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.Core.IngestReport(r.Context(), payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Action == reconcile.ActionStaged {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (s *Server) submitUpdateReport(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payload, err := s.readReport(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.Core.SubmitUpdateReport(r.Context(), id, payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"asset_id": id, "updated": true})
}
