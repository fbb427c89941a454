// Package forward delivers normalized events to the central ingestion API:
// agent registration at startup, size-or-time batched event posts with a
// retained-batch retry policy, and a periodic heartbeat.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netsentry/internal/config"
	"github.com/HerbHall/netsentry/internal/stats"
	"github.com/HerbHall/netsentry/pkg/models"
)

const (
	pathRegister  = "/api/v1/agents/register"
	pathHeartbeat = "/api/v1/agents/heartbeat"
	pathBatch     = "/api/v1/events/batch"
)

// Client talks to the ingestion service.
type Client struct {
	baseURL  string
	apiKey   string
	agentID  string
	hostname string
	http     *http.Client
	logger   *zap.Logger
}

// NewClient builds an ingestion client from the resolved config.
func NewClient(cfg config.IngestConfig, agentID, hostname string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:  cfg.URL,
		apiKey:   cfg.APIKey,
		agentID:  agentID,
		hostname: hostname,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

// outEvent is one wire-format batch entry: the normalized event plus the
// agent augmentation fields the batch endpoint requires.
type outEvent struct {
	models.Event
	AgentID     string `json:"agent_id"`
	EventTime   string `json:"event_time"`
	CollectedAt string `json:"collected_at"`
}

// registerBody matches POST /api/v1/agents/register.
type registerBody struct {
	AgentID      string   `json:"agent_id"`
	Hostname     string   `json:"hostname"`
	AgentType    string   `json:"agent_type"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

// heartbeatBody matches POST /api/v1/agents/heartbeat.
type heartbeatBody struct {
	AgentID   string                    `json:"agent_id"`
	Hostname  string                    `json:"hostname"`
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Stats     map[string]stats.Snapshot `json:"stats"`
	System    map[string]any            `json:"system"`
}

// Register announces the agent, retrying with backoff. Registration is the
// one delivery operation allowed to give up: a collector that cannot
// register should fail loudly at startup.
func (c *Client) Register(ctx context.Context, version string, capabilities []string, retries int, backoff time.Duration) error {
	body := registerBody{
		AgentID:      c.agentID,
		Hostname:     c.hostname,
		AgentType:    "network-collector",
		Version:      version,
		Capabilities: capabilities,
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = c.post(ctx, pathRegister, body)
		if lastErr == nil {
			c.logger.Info("agent registered", zap.String("agent_id", c.agentID))
			return nil
		}
		c.logger.Warn("registration failed",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return fmt.Errorf("register after %d attempts: %w", retries+1, lastErr)
}

// SendBatch posts one batch of events. Any transport error or non-2xx
// response is returned so the sender retains the batch.
func (c *Client) SendBatch(ctx context.Context, events []models.Event) error {
	now := time.Now().UTC().Format(time.RFC3339)

	out := make([]outEvent, len(events))
	for i, ev := range events {
		eventTime := now
		if !ev.Timestamp.IsZero() {
			eventTime = ev.Timestamp.UTC().Format(time.RFC3339)
		}
		out[i] = outEvent{
			Event:       ev,
			AgentID:     c.agentID,
			EventTime:   eventTime,
			CollectedAt: now,
		}
	}

	return c.post(ctx, pathBatch, out)
}

// Heartbeat posts the periodic health report. Callers log and swallow the
// returned error; heartbeat failure is never fatal.
func (c *Client) Heartbeat(ctx context.Context, snapshots map[string]stats.Snapshot, system map[string]any) error {
	body := heartbeatBody{
		AgentID:   c.agentID,
		Hostname:  c.hostname,
		Status:    "online",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Stats:     snapshots,
		System:    system,
	}
	return c.post(ctx, pathHeartbeat, body)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}
