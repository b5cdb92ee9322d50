package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/supportflow/backend/internal/document"
	"github.com/supportflow/backend/internal/tenant"
)

type DocumentHandler struct {
	svc           *document.Service
	maxUploadSize int64
}

func NewDocumentHandler(svc *document.Service, maxUploadSize int64) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxUploadSize: maxUploadSize}
}

// Upload accepts multipart form data with a title and either a file part or
// a content field (pasted text).
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	t := tenant.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	in := document.UploadInput{
		Title:   r.FormValue("title"),
		Content: r.FormValue("content"),
	}

	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "reading upload")
			return
		}
		in.FileName = header.Filename
		in.Data = data
	}

	doc, err := h.svc.Upload(r.Context(), t.ID, in)
	if err != nil {
		switch {
		case errors.Is(err, document.ErrEmptyTitle),
			errors.Is(err, document.ErrEmptyContent),
			errors.Is(err, document.ErrUnsupportedType):
			writeErr(w, http.StatusBadRequest, err.Error())
		default:
			writeErr(w, http.StatusInternalServerError, "upload failed")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	t := tenant.FromContext(r.Context())

	docs, err := h.svc.List(r.Context(), t.ID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "listing documents")
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := docs[:0]
		for _, d := range docs {
			if d.Status == status {
				filtered = append(filtered, d)
			}
		}
		docs = filtered
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	t := tenant.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid document ID")
		return
	}

	doc, err := h.svc.Get(r.Context(), t.ID, id)
	if errors.Is(err, document.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "loading document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Status is a lightweight poll target for ingestion progress.
func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	t := tenant.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid document ID")
		return
	}

	doc, err := h.svc.Get(r.Context(), t.ID, id)
	if errors.Is(err, document.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "loading document")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":            doc.ID,
		"status":        doc.Status,
		"chunk_count":   doc.ChunkCount,
		"error_message": doc.ErrorMessage,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t := tenant.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid document ID")
		return
	}

	if err := h.svc.Delete(r.Context(), t.ID, id); err != nil {
		if errors.Is(err, document.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "document not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "deleting document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reingest re-runs the ingestion pipeline from the stored raw bytes.
func (h *DocumentHandler) Reingest(w http.ResponseWriter, r *http.Request) {
	t := tenant.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid document ID")
		return
	}

	if err := h.svc.Reingest(r.Context(), t.ID, id); err != nil {
		if errors.Is(err, document.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "document not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "re-ingestion failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
}
