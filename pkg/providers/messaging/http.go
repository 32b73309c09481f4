package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/loopmsg/journeyd/pkg/providers"
)

const defaultTimeoutSeconds = 30

// Permanent provider error codes. These must never be retried.
const (
	CodeInvalidPhone     = "invalid_phone"
	CodeTemplateRejected = "template_rejected"
	CodeNotOptedIn       = "not_opted_in"
)

// HTTPProvider talks to the messaging platform's REST API.
type HTTPProvider struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPProvider(baseURL, token string, logger *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
		logger:  logger.With("module", "messaging_provider"),
	}
}

func (p *HTTPProvider) SendFreeForm(ctx context.Context, phone, body string) (string, error) {
	return p.send(ctx, "/messages/text", map[string]any{
		"to":   phone,
		"body": body,
	})
}

func (p *HTTPProvider) SendTemplate(ctx context.Context, phone, templateName, language string, variables map[string]string) (string, error) {
	return p.send(ctx, "/messages/template", map[string]any{
		"to":        phone,
		"template":  templateName,
		"language":  language,
		"variables": variables,
	})
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *HTTPProvider) send(ctx context.Context, path string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build messaging request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &providers.ProviderError{
			Provider:  "messaging",
			Code:      "network_error",
			Message:   err.Error(),
			Transient: true,
		}
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.ErrorContext(ctx, "failed to close response body", "error", closeErr)
		}
	}()

	var decoded sendResponse

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode >= 400 {
		code := decoded.Error.Code
		if code == "" {
			code = strconv.Itoa(resp.StatusCode)
		}

		message := decoded.Error.Message
		if message == "" {
			message = string(raw)
		}

		return "", &providers.ProviderError{
			Provider:  "messaging",
			Code:      code,
			Message:   message,
			Transient: isTransientStatus(resp.StatusCode, code),
		}
	}

	if decoded.MessageID == "" {
		return "", &providers.ProviderError{
			Provider:  "messaging",
			Code:      "missing_message_id",
			Message:   "provider accepted the send but returned no message id",
			Transient: false,
		}
	}

	return decoded.MessageID, nil
}

func isTransientStatus(status int, code string) bool {
	switch code {
	case CodeInvalidPhone, CodeTemplateRejected, CodeNotOptedIn:
		return false
	}

	return status == http.StatusTooManyRequests || status >= 500
}
