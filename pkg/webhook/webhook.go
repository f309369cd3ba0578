// Package webhook posts savify events to HTTP endpoints configured in
// .savify/config.yaml.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/savify/savify/pkg/model"
)

// Wildcard subscribes a hook to every event.
const Wildcard = "*"

// Header names set on every delivery.
const (
	HeaderEvent     = "X-Savify-Event"
	HeaderSignature = "X-Savify-Signature"
)

// Event is the JSON payload posted to a hook.
type Event struct {
	Event       model.AuditEventType `json:"event"`
	Timestamp   string               `json:"timestamp"`
	WorkspaceID string               `json:"workspace_id,omitempty"`
	Root        string               `json:"root,omitempty"`
	Path        string               `json:"path,omitempty"`
	LineID      string               `json:"line_id,omitempty"`
	SnapshotID  model.SnapshotID     `json:"snapshot_id,omitempty"`
	Details     map[string]any       `json:"details,omitempty"`
}

// Hook is one configured endpoint.
type Hook struct {
	URL     string        `yaml:"url" json:"url"`
	Secret  string        `yaml:"secret,omitempty" json:"secret,omitempty"`
	Events  []string      `yaml:"events,omitempty" json:"events,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Matches reports whether h subscribes to event. A hook without events
// receives all of them.
func (h Hook) Matches(event model.AuditEventType) bool {
	if len(h.Events) == 0 {
		return true
	}
	for _, e := range h.Events {
		if e == Wildcard || e == string(event) {
			return true
		}
	}
	return false
}

// Config controls delivery.
type Config struct {
	Hooks      []Hook
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig returns the delivery settings used by the command line.
func DefaultConfig(hooks []Hook) *Config {
	return &Config{
		Hooks:      hooks,
		MaxRetries: 2,
		RetryDelay: time.Second,
	}
}

// Client delivers events synchronously. Commands are short-lived, so there
// is no background queue.
type Client struct {
	config      *Config
	http        *http.Client
	workspaceID string
	root        string
	now         func() time.Time
}

// NewClient creates a client stamping events with the workspace identity.
func NewClient(cfg *Config, workspaceID, root string) *Client {
	if cfg == nil {
		cfg = DefaultConfig(nil)
	}
	return &Client{
		config:      cfg,
		http:        &http.Client{Timeout: 10 * time.Second},
		workspaceID: workspaceID,
		root:        root,
		now:         time.Now,
	}
}

// Append posts the mutation to every matching hook. Its signature matches
// the audit appender so the engine can record to both.
func (c *Client) Append(eventType model.AuditEventType, path, lineID string, snapshotID model.SnapshotID, details map[string]any) error {
	return c.Send(context.Background(), Event{
		Event:      eventType,
		Path:       path,
		LineID:     lineID,
		SnapshotID: snapshotID,
		Details:    details,
	})
}

// Send posts event to every hook subscribed to it and joins the failures.
func (c *Client) Send(ctx context.Context, event Event) error {
	if event.Timestamp == "" {
		event.Timestamp = c.now().UTC().Format(time.RFC3339)
	}
	if event.WorkspaceID == "" {
		event.WorkspaceID = c.workspaceID
	}
	if event.Root == "" {
		event.Root = c.root
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var errs []error
	for _, hook := range c.config.Hooks {
		if !hook.Matches(event.Event) {
			continue
		}
		if err := c.deliver(ctx, hook, event.Event, payload); err != nil {
			errs = append(errs, fmt.Errorf("webhook %s: %w", hook.URL, err))
		}
	}
	return errors.Join(errs...)
}

// deliver posts payload to hook, retrying on transport errors and non-2xx
// responses.
func (c *Client) deliver(ctx context.Context, hook Hook, event model.AuditEventType, payload []byte) error {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}
		if lastErr = c.post(ctx, hook, event, payload); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, hook Hook, event model.AuditEventType, payload []byte) error {
	if hook.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hook.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "savify-webhook/1")
	req.Header.Set(HeaderEvent, string(event))
	if hook.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(payload, hook.Secret))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// Sign returns the HMAC-SHA256 signature of payload as "sha256=<hex>".
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
