package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendClient posts messages to the Resend HTTP API.
type ResendClient struct {
	apiKey   string
	from     string
	endpoint string
	http     *http.Client
}

func NewResendClient(apiKey, from string) *ResendClient {
	return &ResendClient{
		apiKey:   apiKey,
		from:     from,
		endpoint: resendEndpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendError struct {
	Message string `json:"message"`
}

func (c *ResendClient) Send(ctx context.Context, msg Message) (Receipt, error) {
	const op = "mail.ResendClient.Send"

	body, err := json.Marshal(resendRequest{From: c.from, To: msg.To, Subject: msg.Subject, HTML: msg.HTML})
	if err != nil {
		return Receipt{}, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr resendError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return Receipt{}, fmt.Errorf("%s: %s", op, apiErr.Message)
		}
		return Receipt{}, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return Receipt{}, fmt.Errorf("%s: %w", op, err)
	}
	return receipt, nil
}
