package queue

const (
	TypeDocumentIngest  = "document:ingest"
	TypeWhatsAppReply   = "channel:whatsapp_reply"
	TypeEmailReply      = "channel:email_reply"
)

type DocumentIngestPayload struct {
	DocumentID string `json:"document_id"`
	TenantID   string `json:"tenant_id"`
}

// ChannelReplyPayload carries an inbound customer message to the worker
// that generates and delivers the reply.
type ChannelReplyPayload struct {
	TenantID           string `json:"tenant_id"`
	Channel            string `json:"channel"`
	CustomerIdentifier string `json:"customer_identifier"`
	CustomerName       string `json:"customer_name,omitempty"`
	Body               string `json:"body"`
	ProviderMessageID  string `json:"provider_message_id,omitempty"`
	Subject            string `json:"subject,omitempty"`
}
