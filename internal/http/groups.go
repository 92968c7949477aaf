package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tasktide/internal/admission"
	"tasktide/internal/model"
)

const defaultMaxMembers = 5

type createGroupRequest struct {
	UnitID     string `json:"unit_id"`
	Name       string `json:"name"`
	MaxMembers *int   `json:"max_members"`
	// Ignored: created_by is always the authenticated caller.
	CreatedBy string `json:"created_by"`
}

type groupSummary struct {
	ID         string `json:"id"`
	UnitID     string `json:"unit_id"`
	Name       string `json:"name"`
	MaxMembers int    `json:"max_members"`
	CreatedBy  string `json:"created_by"`
	CreatedAt  int64  `json:"created_at"`
}

func summarizeGroup(group model.AssignmentGroup) groupSummary {
	return groupSummary{
		ID:         group.ID,
		UnitID:     group.UnitID,
		Name:       group.Name,
		MaxMembers: group.MaxMembers,
		CreatedBy:  group.CreatedBy,
		CreatedAt:  group.CreatedAt.Unix(),
	}
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	unitID := strings.TrimSpace(r.URL.Query().Get("unit_id"))
	if unitID == "" {
		writeJSON(w, http.StatusOK, []groupSummary{})
		return
	}
	groups, err := s.store.ListGroupsByUnit(r.Context(), unitID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]groupSummary, 0, len(groups))
	for _, group := range groups {
		out = append(out, summarizeGroup(group))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if !admission.CanCreateGroup(identity.Role) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req createGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.UnitID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	maxMembers := defaultMaxMembers
	if req.MaxMembers != nil {
		if *req.MaxMembers <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_max_members")
			return
		}
		maxMembers = *req.MaxMembers
	}

	if _, err := s.store.GetUnitByID(r.Context(), req.UnitID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "unit_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	group := model.AssignmentGroup{
		ID:         uuid.NewString(),
		UnitID:     req.UnitID,
		Name:       req.Name,
		MaxMembers: maxMembers,
		CreatedBy:  identity.UserID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateGroup(r.Context(), group); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, summarizeGroup(group))
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	result, err := s.engine.JoinGroup(r.Context(), identity, chi.URLParam(r, "groupId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	switch result.Decision {
	case admission.NotFound:
		writeError(w, http.StatusNotFound, "group_not_found")
	case admission.Full:
		writeError(w, http.StatusBadRequest, "group_full")
	case admission.AlreadyMember:
		writeJSON(w, http.StatusOK, map[string]string{"message": "You are already in this group"})
	default:
		writeJSON(w, http.StatusCreated, map[string]string{"message": fmt.Sprintf("Successfully joined %s", result.Name)})
	}
}

func (s *Server) handleListGroupMembers(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")
	if _, err := s.store.GetGroupByID(r.Context(), groupID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "group_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	members, err := s.store.ListGroupMembers(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, summarizeMembers(members))
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	groupID := chi.URLParam(r, "groupId")
	group, err := s.store.GetGroupByID(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "group_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if group.CreatedBy != identity.UserID && identity.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if _, err := s.store.DeleteGroup(r.Context(), groupID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "group deleted"})
}
