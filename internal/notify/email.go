package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EmailClient posts through the transactional mail provider's HTTP API.
// With no API key configured it becomes a no-op and only logs.
type EmailClient struct {
	APIURL string
	APIKey string
	From   string
	HTTP   *http.Client
}

func NewEmailClient(apiURL, apiKey, from string) *EmailClient {
	return &EmailClient{
		APIURL: apiURL,
		APIKey: apiKey,
		From:   from,
		HTTP:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *EmailClient) Enabled() bool { return c.APIKey != "" }

func (c *EmailClient) Send(ctx context.Context, to, subject, text string) error {
	if !c.Enabled() {
		return fmt.Errorf("email capability disabled: no API key")
	}

	payload, err := json.Marshal(map[string]string{
		"from":    c.From,
		"to":      to,
		"subject": subject,
		"text":    text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("email provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("email provider returned status %d", resp.StatusCode)
	}
	return nil
}
