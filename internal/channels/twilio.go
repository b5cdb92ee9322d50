package channels

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/supportflow/backend/internal/config"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioSender sends WhatsApp messages through Twilio's Messages API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
}

func NewTwilioSender(cfg config.ChannelsConfig) *TwilioSender {
	return &TwilioSender{
		accountSID: cfg.TwilioAccountSID,
		authToken:  cfg.TwilioAuthToken,
		from:       cfg.TwilioWhatsAppFrom,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *TwilioSender) Send(ctx context.Context, msg OutboundMessage) error {
	form := url.Values{}
	form.Set("From", ensureWhatsAppPrefix(s.from))
	form.Set("To", ensureWhatsAppPrefix(msg.To))
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", twilioBaseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("twilio send: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func ensureWhatsAppPrefix(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
