package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

// APIError is a provider failure with a retryability verdict. Timeouts,
// rate limits and server errors are retryable; auth failures and invalid
// requests are not.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// IsRetryable reports whether err (anywhere in its chain) is a transient
// provider failure. Unclassified errors are treated as retryable so that a
// new failure mode never silently drops work.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return true
}

func retryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// wrapProviderErr normalizes SDK and transport errors into *APIError.
func wrapProviderErr(provider string, err error) error {
	if err == nil {
		return nil
	}

	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		return &APIError{
			Provider:   provider,
			StatusCode: oaiErr.HTTPStatusCode,
			Message:    oaiErr.Message,
			Retryable:  retryableStatus(oaiErr.HTTPStatusCode),
		}
	}

	var oaiReqErr *openai.RequestError
	if errors.As(err, &oaiReqErr) {
		return &APIError{
			Provider:   provider,
			StatusCode: oaiReqErr.HTTPStatusCode,
			Message:    oaiReqErr.Error(),
			Retryable:  retryableStatus(oaiReqErr.HTTPStatusCode),
		}
	}

	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return &APIError{
			Provider:   provider,
			StatusCode: antErr.StatusCode,
			Message:    antErr.Error(),
			Retryable:  retryableStatus(antErr.StatusCode),
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &APIError{
			Provider:  provider,
			Message:   netErr.Error(),
			Retryable: true,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{
			Provider:  provider,
			Message:   "request timed out",
			Retryable: true,
		}
	}

	return &APIError{
		Provider:  provider,
		Message:   err.Error(),
		Retryable: true,
	}
}
