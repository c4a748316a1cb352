package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mpetrovs/cloudvault/internal/common"
	"github.com/mpetrovs/cloudvault/internal/server/models"
)

type nodeResponse struct {
	ID        string  `json:"id"`
	ParentID  *string `json:"parent_id"`
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	MimeType  *string `json:"mime_type,omitempty"`
	Size      int64   `json:"size"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func toNodeResponse(n *models.FileNode) nodeResponse {
	return nodeResponse{
		ID:        n.ID,
		ParentID:  n.ParentID,
		Name:      n.Name,
		Kind:      string(n.Kind),
		MimeType:  n.MimeType,
		Size:      n.Size,
		Status:    string(n.Status),
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: n.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// parentIDParam reads the optional parent_id query parameter; absent or empty
// means the root level.
func parentIDParam(r *http.Request) *string {
	if v := r.URL.Query().Get("parent_id"); v != "" {
		return &v
	}
	return nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.hierarchy.List(r.Context(), OwnerID(r.Context()), parentIDParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]nodeResponse, 0, len(nodes))
	for _, n := range nodes {
		resp = append(resp, toNodeResponse(n))
	}
	render.JSON(w, r, map[string]any{"files": resp})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	node, err := s.hierarchy.Get(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, toNodeResponse(node))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.hierarchy.DeleteRecursive(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, common.ErrInvalidArgument)
		return
	}

	node, err := s.hierarchy.Rename(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, toNodeResponse(node))
}

type moveRequest struct {
	ParentID *string `json:"parent_id"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, common.ErrInvalidArgument)
		return
	}

	node, err := s.hierarchy.Move(r.Context(), OwnerID(r.Context()), chi.URLParam(r, "id"), req.ParentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, toNodeResponse(node))
}

// countingWriter tracks whether any archive bytes reached the client, which
// decides between a clean error response and a truncated stream.
type countingWriter struct {
	w http.ResponseWriter
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	ownerID := OwnerID(r.Context())
	fileID := chi.URLParam(r, "id")

	plan, err := s.archive.Download(r.Context(), ownerID, fileID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if plan.URL != "" {
		render.JSON(w, r, map[string]string{"url": plan.URL})
		return
	}

	cw := &countingWriter{w: w}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+plan.Node.Name+`.zip"`)

	if err := s.archive.StreamFolder(r.Context(), ownerID, fileID, cw); err != nil {
		if cw.n == 0 {
			if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrInvalidArgument) {
				w.Header().Del("Content-Type")
				w.Header().Del("Content-Disposition")
			}
			s.writeError(w, r, err)
			return
		}
		// Bytes are already out; the only honest option is to break the
		// connection so the client never mistakes a partial archive for a
		// complete one.
		s.logger.Error(r.Context(), "folder download truncated", "file_id", fileID, "error", err.Error())
		panic(http.ErrAbortHandler)
	}
}
