package internal

import "net/http"

func (s *Server) listManufacturers(w http.ResponseWriter, r *http.Request) {
	list, err := s.Core.ListManufacturers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sendListResponse(w, list, len(list), listParams{limit: len(list)})
}
