package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/supportflow/backend/internal/conversation"
	"github.com/supportflow/backend/internal/llm"
	"github.com/supportflow/backend/internal/models"
	"github.com/supportflow/backend/internal/rag"
	"github.com/supportflow/backend/internal/tenant"
)

const chatHistoryTurns = 10

type ChatHandler struct {
	conversations *conversation.Service
	engine        *rag.Engine
}

func NewChatHandler(conversations *conversation.Service, engine *rag.Engine) *ChatHandler {
	return &ChatHandler{conversations: conversations, engine: engine}
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	SessionID      uuid.UUID   `json:"session_id"`
	Response       string      `json:"response"`
	SourceChunkIDs []uuid.UUID `json:"source_chunk_ids,omitempty"`
}

// Message handles one web-chat turn synchronously: resolve the thread,
// generate a grounded reply, persist both messages, and return the reply.
// The conversation ID doubles as the session ID clients echo back.
func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	t := tenant.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeErr(w, http.StatusBadRequest, "message required")
		return
	}

	in := conversation.ResolveInput{
		Channel:            models.ChannelWeb,
		CustomerIdentifier: "web-" + uuid.NewString(),
	}
	if req.SessionID != "" {
		sessionID, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid session_id")
			return
		}
		in.SessionID = &sessionID
	}

	conv, err := h.conversations.Resolve(r.Context(), t.ID, in)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "resolving conversation")
		return
	}

	history, err := h.conversations.History(r.Context(), conv.ID, chatHistoryTurns)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "loading history")
		return
	}

	llmHistory := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "assistant"
		}
		llmHistory = append(llmHistory, llm.Message{Role: role, Content: m.Content})
	}

	var reply string
	var chunkIDs []uuid.UUID

	answer, err := h.engine.Answer(r.Context(), t, req.Message, llmHistory)
	if err != nil {
		// The customer still gets a reply; the failure is logged, not
		// surfaced as a 5xx mid-conversation.
		slog.Error("answer generation failed", "tenant_id", t.ID, "conversation_id", conv.ID, "error", err)
		reply = rag.DegradedAnswer
	} else {
		reply = answer.Content
		chunkIDs = answer.SourceChunkIDs
	}

	if _, _, err := h.conversations.RecordExchange(r.Context(), conv.ID, req.Message, reply, chunkIDs); err != nil {
		writeErr(w, http.StatusInternalServerError, "recording exchange")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: conv.ID,
		SessionID:      conv.ID,
		Response:       reply,
		SourceChunkIDs: chunkIDs,
	})
}
