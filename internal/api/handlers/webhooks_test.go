package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportflow/backend/internal/models"
	"github.com/supportflow/backend/internal/queue"
	"github.com/supportflow/backend/internal/tenant"
)

type fakeDirectory struct {
	byNumber map[string]*models.Tenant
	byEmail  map[string]*models.Tenant
}

func (d *fakeDirectory) GetByWhatsAppNumber(_ context.Context, number string) (*models.Tenant, error) {
	if t, ok := d.byNumber[number]; ok {
		return t, nil
	}
	return nil, tenant.ErrNotFound
}

func (d *fakeDirectory) GetByInboundEmail(_ context.Context, address string) (*models.Tenant, error) {
	if t, ok := d.byEmail[address]; ok {
		return t, nil
	}
	return nil, tenant.ErrNotFound
}

type captureEnqueuer struct {
	replies []queue.ChannelReplyPayload
	err     error
}

func (c *captureEnqueuer) EnqueueDocumentIngest(context.Context, queue.DocumentIngestPayload) error {
	return nil
}

func (c *captureEnqueuer) EnqueueChannelReply(_ context.Context, p queue.ChannelReplyPayload) error {
	if c.err != nil {
		return c.err
	}
	c.replies = append(c.replies, p)
	return nil
}

func postForm(h http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestWhatsAppWebhookRoutesByRecipientNumber(t *testing.T) {
	tn := &models.Tenant{ID: uuid.New(), Name: "Acme"}
	enq := &captureEnqueuer{}
	h := NewWebhookHandler(&fakeDirectory{byNumber: map[string]*models.Tenant{"+15550001111": tn}}, enq)

	rec := postForm(h.WhatsApp, "/webhooks/whatsapp", url.Values{
		"From":        {"whatsapp:+15552223333"},
		"To":          {"whatsapp:+15550001111"},
		"Body":        {"where is my order?"},
		"MessageSid":  {"SM123"},
		"ProfileName": {"Dana"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`, rec.Body.String())

	require.Len(t, enq.replies, 1)
	p := enq.replies[0]
	assert.Equal(t, tn.ID.String(), p.TenantID)
	assert.Equal(t, models.ChannelWhatsApp, p.Channel)
	assert.Equal(t, "+15552223333", p.CustomerIdentifier)
	assert.Equal(t, "Dana", p.CustomerName)
	assert.Equal(t, "where is my order?", p.Body)
	assert.Equal(t, "SM123", p.ProviderMessageID)
}

func TestWhatsAppWebhookUnknownNumber(t *testing.T) {
	enq := &captureEnqueuer{}
	h := NewWebhookHandler(&fakeDirectory{}, enq)

	rec := postForm(h.WhatsApp, "/webhooks/whatsapp", url.Values{
		"From": {"whatsapp:+15552223333"},
		"To":   {"whatsapp:+19998887777"},
		"Body": {"hello"},
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, enq.replies)
}

func TestWhatsAppWebhookMissingFields(t *testing.T) {
	h := NewWebhookHandler(&fakeDirectory{}, &captureEnqueuer{})

	rec := postForm(h.WhatsApp, "/webhooks/whatsapp", url.Values{
		"From": {"whatsapp:+15552223333"},
		"To":   {"whatsapp:+15550001111"},
		"Body": {"   "},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmailWebhookJSONBody(t *testing.T) {
	tn := &models.Tenant{ID: uuid.New(), Name: "Acme"}
	enq := &captureEnqueuer{}
	h := NewWebhookHandler(&fakeDirectory{byEmail: map[string]*models.Tenant{"support@acme.com": tn}}, enq)

	body := `{"from":"Dana <dana@example.com>","to":"support@acme.com","subject":"Refund","text":"I want a refund.","message_id":"<abc@mail>"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Email(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, enq.replies, 1)
	p := enq.replies[0]
	assert.Equal(t, tn.ID.String(), p.TenantID)
	assert.Equal(t, models.ChannelEmail, p.Channel)
	assert.Equal(t, "dana@example.com", p.CustomerIdentifier)
	assert.Equal(t, "Dana", p.CustomerName)
	assert.Equal(t, "Refund", p.Subject)
	assert.Equal(t, "<abc@mail>", p.ProviderMessageID)
}

func TestEmailWebhookFormBody(t *testing.T) {
	tn := &models.Tenant{ID: uuid.New(), Name: "Acme"}
	enq := &captureEnqueuer{}
	h := NewWebhookHandler(&fakeDirectory{byEmail: map[string]*models.Tenant{"support@acme.com": tn}}, enq)

	rec := postForm(h.Email, "/webhooks/email", url.Values{
		"from":    {"dana@example.com"},
		"to":      {"support@acme.com"},
		"subject": {"Help"},
		"text":    {"My login is broken."},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, enq.replies, 1)
	assert.Equal(t, "dana@example.com", enq.replies[0].CustomerIdentifier)
	assert.Empty(t, enq.replies[0].CustomerName)
}

func TestEmailWebhookUnknownRecipient(t *testing.T) {
	enq := &captureEnqueuer{}
	h := NewWebhookHandler(&fakeDirectory{}, enq)

	rec := postForm(h.Email, "/webhooks/email", url.Values{
		"from": {"dana@example.com"},
		"to":   {"nobody@elsewhere.com"},
		"text": {"hello"},
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, enq.replies)
}

func TestSplitAddress(t *testing.T) {
	name, addr := splitAddress("Dana <dana@example.com>")
	assert.Equal(t, "Dana", name)
	assert.Equal(t, "dana@example.com", addr)

	name, addr = splitAddress("dana@example.com")
	assert.Empty(t, name)
	assert.Equal(t, "dana@example.com", addr)
}
