package server

import (
	"encoding/json"
	"io"
	"net/http"

	"eduportal/pkg/domain"
)

type reviewRequest struct {
	BookID  string `json:"bookId"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request, principal domain.User) {
	switch r.Method {
	case http.MethodGet:
		reviews, err := s.app.Reviews(r.Context())
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeList(w, reviews)
	case http.MethodPost:
		var req reviewRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		review, err := s.app.AddReview(r.Context(), principal, req.BookID, req.Rating, req.Comment)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, review)
	default:
		methodNotAllowed(w)
	}
}
