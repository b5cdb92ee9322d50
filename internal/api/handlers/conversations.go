package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/supportflow/backend/internal/conversation"
	"github.com/supportflow/backend/internal/tenant"
)

type ConversationHandler struct {
	svc *conversation.Service
}

func NewConversationHandler(svc *conversation.Service) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	t := tenant.FromContext(r.Context())

	convs, err := h.svc.List(r.Context(), t.ID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "listing conversations")
		return
	}

	if channel := r.URL.Query().Get("channel"); channel != "" {
		filtered := convs[:0]
		for _, c := range convs {
			if c.Channel == channel {
				filtered = append(filtered, c)
			}
		}
		convs = filtered
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": convs, "count": len(convs)})
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	t := tenant.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid conversation ID")
		return
	}

	conv, err := h.svc.Get(r.Context(), t.ID, id)
	if errors.Is(err, conversation.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "loading conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	t := tenant.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid conversation ID")
		return
	}

	msgs, err := h.svc.Messages(r.Context(), t.ID, id)
	if errors.Is(err, conversation.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "loading messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs, "count": len(msgs)})
}

// SetStatus resolves a thread or hands it to a human agent.
func (h *ConversationHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	t := tenant.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid conversation ID")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.SetStatus(r.Context(), t.ID, id, req.Status); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}
