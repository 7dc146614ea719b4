package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/agusx1211/mailflow/pkg/protocol"
)

// StartAgentRun asks the backend to process one mail and returns the run id.
func (c *Client) StartAgentRun(ctx context.Context, subject, body, sender string) (protocol.AgentRunResponse, error) {
	q := url.Values{}
	q.Set("subject", subject)
	q.Set("body", body)
	q.Set("sender", sender)

	var out protocol.AgentRunResponse
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   protocol.StartAgentPath(),
		query:  q,
		out:    &out,
	})
	return out, err
}

// GetAgentRun returns the current status document of a run.
func (c *Client) GetAgentRun(ctx context.Context, runID string) (protocol.AgentStatusResponse, error) {
	var out protocol.AgentStatusResponse
	err := c.doJSON(ctx, http.MethodGet, protocol.AgentRunPath(runID), nil, &out)
	return out, err
}

// Health checks the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	var ok bool
	if err := c.doJSON(ctx, http.MethodGet, protocol.HealthPath(), nil, &ok); err != nil {
		return err
	}
	if !ok {
		return errors.New("backend reported unhealthy")
	}
	return nil
}

// StreamAgentRun subscribes to a run's status documents over WebSocket and
// calls fn for each one until the run reaches a terminal status, fn returns
// an error, or ctx ends.
func (c *Client) StreamAgentRun(ctx context.Context, runID string, fn func(protocol.AgentStatusResponse) error) error {
	wsURL, err := c.websocketURL(protocol.AgentStreamPath(runID))
	if err != nil {
		return err
	}
	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}
	opts := &websocket.DialOptions{HTTPHeader: header}
	if c.HTTPClient != nil {
		// The handshake must not inherit the per-request timeout.
		hc := *c.HTTPClient
		hc.Timeout = 0
		opts.HTTPClient = &hc
	}
	conn, resp, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return &Error{Status: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("opening run stream: %w", err)
	}
	defer conn.CloseNow()

	for {
		var doc protocol.AgentStatusResponse
		if err := wsjson.Read(ctx, conn, &doc); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading run stream: %w", err)
		}
		if err := fn(doc); err != nil {
			conn.Close(websocket.StatusNormalClosure, "")
			return err
		}
		if doc.Terminal() {
			conn.Close(websocket.StatusNormalClosure, "")
			return nil
		}
	}
}

func (c *Client) websocketURL(path string) (string, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return "", fmt.Errorf("parsing api url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	return u.String(), nil
}
