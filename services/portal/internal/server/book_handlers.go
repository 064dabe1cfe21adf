package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"eduportal/pkg/domain"
	"eduportal/pkg/pdfdata"
	"eduportal/services/portal/internal/app"
)

// multipart framing on top of the PDF itself
const uploadOverhead = 1 << 20

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, principal domain.User) {
	switch r.Method {
	case http.MethodGet:
		books, err := s.app.Books(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeList(w, books)
	case http.MethodPost:
		if principal.Role != domain.RoleAdmin {
			s.audit(r, "portal.book.upload", "fail", "user_id", principal.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		s.handleUpload(w, r, principal)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, principal domain.User) {
	limit := s.app.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+uploadOverhead)
	if err := r.ParseMultipartForm(limit + uploadOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAppError(w, r, pdfdata.ErrTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeAppError(w, r, app.ErrFileRequired)
		return
	}
	defer file.Close()
	if header.Size > limit {
		writeAppError(w, r, pdfdata.ErrTooLarge)
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	book, err := s.app.AddBook(r.Context(), app.UploadBook{
		Title:       r.FormValue("title"),
		Author:      r.FormValue("author"),
		Category:    r.FormValue("category"),
		Description: r.FormValue("description"),
	}, data)
	if err != nil {
		s.audit(r, "portal.book.upload", "fail", "user_id", principal.ID, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "portal.book.upload", "success", "user_id", principal.ID, "book_id", book.ID)
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, _ domain.User) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/books/"), "/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		book, err := s.app.Book(r.Context(), id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case "download":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleDownload(w, r, id)
	case "insight":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleInsight(w, r, id)
	case "reviews":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		reviews, err := s.app.BookReviews(r.Context(), id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeList(w, reviews)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, id string) {
	name, data, err := s.app.Download(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type insightRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request, id string) {
	var req insightRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	asHTML := strings.EqualFold(r.URL.Query().Get("format"), "html")
	text, err := s.app.Insight(r.Context(), id, req.Query, asHTML)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"insight": text})
}
