package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tasktide/internal/admission"
	"tasktide/internal/model"
)

const maxUploadBytes = 32 << 20

type resourceSummary struct {
	ID           string `json:"id"`
	UnitID       string `json:"unit_id"`
	Title        string `json:"title"`
	FileKey      string `json:"file_key"`
	ResourceType string `json:"resource_type"`
	UploadedBy   string `json:"uploaded_by"`
	UploadedAt   int64  `json:"uploaded_at"`
}

func summarizeResource(resource model.Resource) resourceSummary {
	return resourceSummary{
		ID:           resource.ID,
		UnitID:       resource.UnitID,
		Title:        resource.Title,
		FileKey:      resource.FileKey,
		ResourceType: string(resource.ResourceType),
		UploadedBy:   resource.UploadedBy,
		UploadedAt:   resource.UploadedAt.Unix(),
	}
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	unitID := strings.TrimSpace(r.URL.Query().Get("unit_id"))
	if unitID == "" {
		writeJSON(w, http.StatusOK, []resourceSummary{})
		return
	}
	resources, err := s.store.ListResourcesByUnit(r.Context(), unitID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]resourceSummary, 0, len(resources))
	for _, resource := range resources {
		out = append(out, summarizeResource(resource))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateResource accepts a multipart form: unit_id, title,
// resource_type and the file itself. The uploader recorded on the row is
// always the authenticated caller, whatever the form claims.
func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if !admission.CanCreateContent(identity.Role) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	unitID := strings.TrimSpace(r.FormValue("unit_id"))
	title := strings.TrimSpace(r.FormValue("title"))
	if unitID == "" || title == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	resourceType := model.ResourceDocument
	if value := strings.TrimSpace(r.FormValue("resource_type")); value != "" {
		parsed, ok := model.ParseResourceType(value)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_resource_type")
			return
		}
		resourceType = parsed
	}

	if _, err := s.store.GetUnitByID(r.Context(), unitID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "unit_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file")
		return
	}
	defer file.Close()

	resourceID := uuid.NewString()
	key := "resources/" + resourceID + strings.ToLower(filepath.Ext(header.Filename))
	if err := s.blobs.Save(r.Context(), key, file, header.Header.Get("Content-Type")); err != nil {
		writeError(w, http.StatusInternalServerError, "upload_failed")
		return
	}

	resource := model.Resource{
		ID:           resourceID,
		UnitID:       unitID,
		Title:        title,
		FileKey:      key,
		ResourceType: resourceType,
		UploadedBy:   identity.UserID,
		UploadedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateResource(r.Context(), resource); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, summarizeResource(resource))
}

func (s *Server) handleDownloadResource(w http.ResponseWriter, r *http.Request) {
	resourceID := chi.URLParam(r, "resourceId")
	resource, err := s.store.GetResourceByID(r.Context(), resourceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "resource_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	reader, err := s.blobs.Open(r.Context(), resource.FileKey)
	if err != nil {
		writeError(w, http.StatusNotFound, "resource_not_found")
		return
	}
	defer reader.Close()

	filename := resource.Title + strings.ToLower(filepath.Ext(resource.FileKey))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}
