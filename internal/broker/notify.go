package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"coach-backend/internal/contract"
)

// Notification tells other surfaces of the same user that an analysis finished.
type Notification struct {
	AnalysisID string            `json:"analysis_id"`
	Kind       contract.Kind     `json:"request_type"`
	Platform   string            `json:"platform"`
	Result     contract.Response `json:"result"`
	Timestamp  time.Time         `json:"timestamp"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NopNotifier drops notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }

// HTTPNotifier posts notifications to {BaseURL}/api/sync/events.
type HTTPNotifier struct {
	BaseURL     string
	Client      *http.Client
	Credentials CredentialProvider
}

func (n *HTTPNotifier) Notify(ctx context.Context, note Notification) error {
	token, err := n.Credentials.SessionToken(ctx)
	if err != nil {
		return fmt.Errorf("sync notify: %w", err)
	}
	payload, err := json.Marshal(note)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(n.BaseURL, "/")+"/api/sync/events", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sync notify failed: %s", resp.Status)
	}
	return nil
}
