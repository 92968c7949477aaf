package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tasktide/internal/admission"
	"tasktide/internal/model"
)

type createUnitRequest struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	// Ignored: created_by is always the authenticated caller.
	CreatedBy string `json:"created_by"`
}

type unitSummary struct {
	ID        string `json:"id"`
	ServerID  string `json:"server_id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
}

func summarizeUnit(unit model.Unit) unitSummary {
	return unitSummary{
		ID:        unit.ID,
		ServerID:  unit.ServerID,
		Name:      unit.Name,
		Code:      unit.Code,
		CreatedBy: unit.CreatedBy,
		CreatedAt: unit.CreatedAt.Unix(),
	}
}

// Listing without the scoping parameter yields an empty set, never every
// unit in the store.
func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	serverID := strings.TrimSpace(r.URL.Query().Get("server_id"))
	if serverID == "" {
		writeJSON(w, http.StatusOK, []unitSummary{})
		return
	}
	units, err := s.store.ListUnitsByServer(r.Context(), serverID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]unitSummary, 0, len(units))
	for _, unit := range units {
		out = append(out, summarizeUnit(unit))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateUnit(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if !admission.CanCreateContent(identity.Role) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req createUnitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.TrimSpace(req.Code)
	if req.ServerID == "" || req.Name == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	if _, err := s.store.GetServerByID(r.Context(), req.ServerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "server_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	unit := model.Unit{
		ID:        uuid.NewString(),
		ServerID:  req.ServerID,
		Name:      req.Name,
		Code:      req.Code,
		CreatedBy: identity.UserID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUnit(r.Context(), unit); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, summarizeUnit(unit))
}

func (s *Server) handleDeleteUnit(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	unitID := chi.URLParam(r, "unitId")
	unit, err := s.store.GetUnitByID(r.Context(), unitID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "unit_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if unit.CreatedBy != identity.UserID && identity.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if _, err := s.store.DeleteUnit(r.Context(), unitID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "unit deleted"})
}
