package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultGatewayURL is the Expo push service endpoint.
const DefaultGatewayURL = "https://exp.host/--/api/v2/push/send"

// Client sends notifications through the Expo push gateway. Delivery is
// best-effort; callers log errors and move on.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string) *Client {
	if url == "" {
		url = DefaultGatewayURL
	}
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type pushRequest struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound"`
}

type pushResponse struct {
	Data struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
}

// Send posts one notification to the gateway. The gateway reports per-ticket
// errors inside a 200 response, so status is checked at both levels.
func (c *Client) Send(ctx context.Context, token, title, body string) error {
	payload, err := json.Marshal(pushRequest{
		To:    token,
		Title: title,
		Body:  body,
		Sound: "default",
	})
	if err != nil {
		return fmt.Errorf("marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("read push response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push gateway returned %d: %s", resp.StatusCode, respBody)
	}

	var ticket pushResponse
	if err := json.Unmarshal(respBody, &ticket); err != nil {
		return fmt.Errorf("parse push response: %w", err)
	}
	if ticket.Data.Status == "error" {
		return fmt.Errorf("push ticket error: %s", ticket.Data.Message)
	}

	slog.DebugContext(ctx, "Push delivered", "title", title, "status", ticket.Data.Status)
	return nil
}
