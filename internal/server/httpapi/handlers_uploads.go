package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mpetrovs/cloudvault/internal/common"
	"github.com/mpetrovs/cloudvault/internal/server/models"
	"github.com/mpetrovs/cloudvault/internal/server/objstore"
	"github.com/mpetrovs/cloudvault/internal/server/services"
)

type initiateRequest struct {
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Kind     string  `json:"kind"`
	MimeType string  `json:"mime_type"`
	ParentID *string `json:"parent_id"`
}

type partURLResponse struct {
	PartNumber int32  `json:"part_number"`
	URL        string `json:"url"`
}

type initiateResponse struct {
	File        nodeResponse      `json:"file"`
	UploadURL   string            `json:"upload_url,omitempty"`
	SessionID   string            `json:"session_id,omitempty"`
	MultipartID string            `json:"multipart_id,omitempty"`
	PartURLs    []partURLResponse `json:"part_urls,omitempty"`
}

func toPartURLs(parts []objstore.PresignedPart) []partURLResponse {
	if len(parts) == 0 {
		return nil
	}
	out := make([]partURLResponse, 0, len(parts))
	for _, p := range parts {
		out = append(out, partURLResponse{PartNumber: p.PartNumber, URL: p.URL})
	}
	return out
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, common.ErrInvalidArgument)
		return
	}

	result, err := s.uploads.InitiateUpload(r.Context(), OwnerID(r.Context()), services.InitiateRequest{
		Name:     req.Name,
		Size:     req.Size,
		Kind:     models.NodeKind(req.Kind),
		MimeType: req.MimeType,
		ParentID: req.ParentID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, initiateResponse{
		File:        toNodeResponse(result.File),
		UploadURL:   result.UploadURL,
		SessionID:   result.SessionID,
		MultipartID: result.MultipartID,
		PartURLs:    toPartURLs(result.PartURLs),
	})
}

type completeRequest struct {
	// FileID finishes a small-object direct upload; Parts finishes a
	// multipart session. The two are mutually exclusive.
	FileID string        `json:"file_id,omitempty"`
	Parts  []partRequest `json:"parts,omitempty"`
}

type partRequest struct {
	PartNumber int32  `json:"part_number"`
	ETag       string `json:"etag"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, common.ErrInvalidArgument)
		return
	}

	ownerID := OwnerID(r.Context())

	if req.FileID != "" {
		if err := s.uploads.CompleteSingleUpload(r.Context(), ownerID, req.FileID); err != nil {
			s.writeError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]string{"status": "completed"})
		return
	}

	parts := make([]services.PartInput, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, services.PartInput{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	if err := s.uploads.CompleteUpload(r.Context(), ownerID, chi.URLParam(r, "id"), parts); err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "completed"})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	if err := s.uploads.AbortUpload(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "aborted"})
}

type partStatusResponse struct {
	PartNumber int32 `json:"part_number"`
	Size       int64 `json:"size"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.uploads.Status(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	parts := make([]partStatusResponse, 0, len(st.Parts))
	for _, p := range st.Parts {
		parts = append(parts, partStatusResponse{PartNumber: p.Number, Size: p.Size})
	}

	render.JSON(w, r, map[string]any{
		"status":        st.Status,
		"total_size":    st.TotalSize,
		"uploaded_size": st.UploadedSize,
		"parts":         parts,
	})
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	result, err := s.uploads.RegeneratePresignedUrls(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	render.JSON(w, r, initiateResponse{
		File:        toNodeResponse(result.File),
		SessionID:   result.SessionID,
		MultipartID: result.MultipartID,
		PartURLs:    toPartURLs(result.PartURLs),
	})
}
