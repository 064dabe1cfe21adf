package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"eduportal/internal/dashboard"
	"eduportal/pkg/domain"
)

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.Users(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, users)
}

func (s *Server) handleAdminLoginLogs(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	logs, err := s.app.LoginLogs(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, logs)
}

func (s *Server) handleAdminActivity(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	snap, err := s.app.Activity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, dashboard.ErrLoad.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleAdminActivityStream pushes a dashboard snapshot as a server-sent
// event on every refresh until the client disconnects.
func (s *Server) handleAdminActivityStream(w http.ResponseWriter, r *http.Request, admin domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	// the server write timeout would otherwise cut the stream
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.audit(r, "portal.activity.stream", "success", "user_id", admin.ID)
	err := s.app.WatchActivity(r.Context(), func(snap dashboard.Snapshot) {
		data, err := json.Marshal(snap)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: activity\ndata: %s\n\n", data)
		flusher.Flush()
	})
	if err != nil && errors.Is(err, dashboard.ErrLoad) {
		data, _ := json.Marshal(map[string]string{"error": dashboard.ErrLoad.Error()})
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
		flusher.Flush()
	}
}
