package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"tasktide/internal/admission"
	"tasktide/internal/model"
	"tasktide/internal/repository"
)

type createServerRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Ignored: created_by is always the authenticated caller.
	CreatedBy string `json:"created_by"`
}

type joinServerRequest struct {
	JoinCode string `json:"join_code"`
}

type serverSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	JoinCode    string `json:"join_code"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   int64  `json:"created_at"`
}

type memberSummary struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	JoinedAt int64  `json:"joined_at"`
}

func summarizeServer(server model.Server) serverSummary {
	return serverSummary{
		ID:          server.ID,
		Name:        server.Name,
		JoinCode:    server.JoinCode,
		Description: server.Description,
		CreatedBy:   server.CreatedBy,
		CreatedAt:   server.CreatedAt.Unix(),
	}
}

func summarizeMembers(members []repository.MemberInfo) []memberSummary {
	out := make([]memberSummary, 0, len(members))
	for _, member := range members {
		out = append(out, memberSummary{
			ID:       member.ID,
			UserID:   member.UserID,
			Username: member.Username,
			JoinedAt: member.JoinedAt.Unix(),
		})
	}
	return out
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	servers, err := s.store.ListServersForUser(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]serverSummary, 0, len(servers))
	for _, server := range servers {
		out = append(out, summarizeServer(server))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req createServerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	server, err := s.engine.NewServer(r.Context(), identity, req.Name, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, admission.ErrForbidden):
			writeError(w, http.StatusForbidden, "forbidden")
		case errors.Is(err, admission.ErrValidation):
			writeError(w, http.StatusBadRequest, "missing_fields")
		case errors.Is(err, admission.ErrJoinCodeConflict):
			writeError(w, http.StatusInternalServerError, "join_code_conflict")
		default:
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, summarizeServer(server))
}

func (s *Server) handleJoinServer(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req joinServerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := s.engine.JoinServer(r.Context(), identity, req.JoinCode)
	if err != nil {
		if errors.Is(err, admission.ErrValidation) {
			writeError(w, http.StatusBadRequest, "missing_join_code")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	switch result.Decision {
	case admission.NotFound:
		writeError(w, http.StatusNotFound, "invalid_join_code")
	case admission.AlreadyMember:
		writeJSON(w, http.StatusOK, map[string]string{"message": "You are already in this server"})
	default:
		writeJSON(w, http.StatusCreated, map[string]string{"message": fmt.Sprintf("Successfully joined %s", result.Name)})
	}
}

func (s *Server) handleListServerMembers(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverId")
	if _, err := s.store.GetServerByID(r.Context(), serverID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "server_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	members, err := s.store.ListServerMembers(r.Context(), serverID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, summarizeMembers(members))
}

func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	serverID := chi.URLParam(r, "serverId")
	server, err := s.store.GetServerByID(r.Context(), serverID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "server_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if server.CreatedBy != identity.UserID && identity.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if _, err := s.store.DeleteServer(r.Context(), serverID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "server deleted"})
}
