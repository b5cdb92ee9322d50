package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/supportflow/backend/internal/models"
	"github.com/supportflow/backend/internal/queue"
)

// tenantDirectory resolves the workspace an inbound message belongs to.
type tenantDirectory interface {
	GetByWhatsAppNumber(ctx context.Context, number string) (*models.Tenant, error)
	GetByInboundEmail(ctx context.Context, address string) (*models.Tenant, error)
}

// WebhookHandler receives inbound customer messages from channel providers,
// acknowledges immediately, and hands the work to the queue. Tenant routing
// goes by the recipient identity: the WhatsApp number or inbound email
// address configured on the workspace.
type WebhookHandler struct {
	tenants  tenantDirectory
	enqueuer queue.Enqueuer
}

func NewWebhookHandler(tenants tenantDirectory, enqueuer queue.Enqueuer) *WebhookHandler {
	return &WebhookHandler{tenants: tenants, enqueuer: enqueuer}
}

// WhatsApp handles Twilio's inbound message callback (form-encoded). The
// response is an empty TwiML document: the actual reply arrives
// asynchronously via the Messages API.
func (h *WebhookHandler) WhatsApp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid form")
		return
	}

	from := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")
	to := strings.TrimPrefix(r.PostFormValue("To"), "whatsapp:")
	body := r.PostFormValue("Body")
	messageSID := r.PostFormValue("MessageSid")
	profileName := r.PostFormValue("ProfileName")

	if from == "" || to == "" || strings.TrimSpace(body) == "" {
		writeErr(w, http.StatusBadRequest, "missing From, To, or Body")
		return
	}

	t, err := h.tenants.GetByWhatsAppNumber(r.Context(), to)
	if err != nil {
		slog.Warn("whatsapp webhook for unknown number", "to", to)
		writeErr(w, http.StatusNotFound, "unknown recipient number")
		return
	}

	if err := h.enqueuer.EnqueueChannelReply(r.Context(), queue.ChannelReplyPayload{
		TenantID:           t.ID.String(),
		Channel:            models.ChannelWhatsApp,
		CustomerIdentifier: from,
		CustomerName:       profileName,
		Body:               body,
		ProviderMessageID:  messageSID,
	}); err != nil {
		slog.Error("enqueueing whatsapp reply", "tenant_id", t.ID, "error", err)
		writeErr(w, http.StatusInternalServerError, "enqueue failed")
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`))
}

type emailWebhookRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Text      string `json:"text"`
	MessageID string `json:"message_id"`
}

// Email handles the inbound-parse callback of the email provider. Both
// JSON and form encodings are accepted since providers differ.
func (h *WebhookHandler) Email(w http.ResponseWriter, r *http.Request) {
	var req emailWebhookRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid form")
			return
		}
		req.From = r.PostFormValue("from")
		req.To = r.PostFormValue("to")
		req.Subject = r.PostFormValue("subject")
		req.Text = r.PostFormValue("text")
		req.MessageID = r.PostFormValue("message_id")
	}

	fromName, fromAddr := splitAddress(req.From)
	_, toAddr := splitAddress(req.To)

	if fromAddr == "" || toAddr == "" || strings.TrimSpace(req.Text) == "" {
		writeErr(w, http.StatusBadRequest, "missing from, to, or text")
		return
	}

	t, err := h.tenants.GetByInboundEmail(r.Context(), toAddr)
	if err != nil {
		slog.Warn("email webhook for unknown address", "to", toAddr)
		writeErr(w, http.StatusNotFound, "unknown recipient address")
		return
	}

	if err := h.enqueuer.EnqueueChannelReply(r.Context(), queue.ChannelReplyPayload{
		TenantID:           t.ID.String(),
		Channel:            models.ChannelEmail,
		CustomerIdentifier: fromAddr,
		CustomerName:       fromName,
		Body:               req.Text,
		ProviderMessageID:  req.MessageID,
		Subject:            req.Subject,
	}); err != nil {
		slog.Error("enqueueing email reply", "tenant_id", t.ID, "error", err)
		writeErr(w, http.StatusInternalServerError, "enqueue failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// splitAddress unwraps "Name <addr@example.com>" into its parts; a bare
// address comes back with an empty name.
func splitAddress(raw string) (name, addr string) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", strings.TrimSpace(raw)
	}
	return parsed.Name, parsed.Address
}
