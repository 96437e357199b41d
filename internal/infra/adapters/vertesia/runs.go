package vertesia

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/metrics"
)

// Compile-time assurance this client satisfies the ports
var (
	_ adapter.RunAPI          = (*Client)(nil)
	_ adapter.ObjectStore     = (*Client)(nil)
	_ adapter.CollectionStore = (*Client)(nil)
)

type executeBody struct {
	Type          string         `json:"type"`
	Interaction   string         `json:"interaction"`
	Data          map[string]any `json:"data"`
	Config        executeConfig  `json:"config"`
	Interactive   bool           `json:"interactive,omitempty"`
	MaxIterations int            `json:"max_iterations,omitempty"`
}

type executeConfig struct {
	Environment string `json:"environment"`
	Model       string `json:"model"`
}

func (c *Client) ExecuteAsync(ctx context.Context, req adapter.ExecuteRequest) (model.RunRef, error) {
	body := executeBody{
		Type:        "conversation",
		Interaction: req.Interaction,
		Data:        req.Data,
		Config:      executeConfig{Environment: c.environment, Model: c.model},
	}
	if req.Interactive {
		body.Interactive = true
		body.MaxIterations = c.maxIterations
	}
	var out struct {
		WorkflowID string `json:"workflowId"`
		RunID      string `json:"runId"`
	}
	if err := c.do(ctx, "execute", http.MethodPost, "/execute/async", body, &out); err != nil {
		return model.RunRef{}, err
	}
	ref := model.RunRef{WorkflowID: out.WorkflowID, RunID: out.RunID}
	if !ref.Valid() {
		ref = model.RunRef{}
	}
	c.log.Debug().Str("interaction", req.Interaction).Str("workflow_id", ref.WorkflowID).Str("run_id", ref.RunID).Msg("run dispatched")
	return ref, nil
}

func (c *Client) RunStatus(ctx context.Context, ref model.RunRef) (string, error) {
	if !ref.Valid() {
		return "", fmt.Errorf("run status: %w", errMissingRun)
	}
	var out struct {
		Status string `json:"status"`
	}
	path := "/workflows/runs/" + url.PathEscape(ref.WorkflowID) + "/" + url.PathEscape(ref.RunID)
	if err := c.do(ctx, "run_status", http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// StreamRun opens the run's event stream; the JWT travels as the
// access_token query parameter.
func (c *Client) StreamRun(ctx context.Context, ref model.RunRef, since time.Time) (adapter.EventStream, error) {
	if !ref.Valid() {
		return nil, fmt.Errorf("stream: %w", errMissingRun)
	}
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("since", strconv.FormatInt(since.UnixMilli(), 10))
	q.Set("access_token", tok)
	u := c.base + "/workflows/runs/" + url.PathEscape(ref.WorkflowID) + "/" + url.PathEscape(ref.RunID) + "/stream?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := c.stream.Do(req)
	if err != nil {
		metrics.ObserveVendorCall("stream", start, false)
		return nil, fmt.Errorf("vertesia stream: %w", err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		metrics.ObserveVendorCall("stream", start, false)
		return nil, &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Endpoint: "stream"}
	}
	metrics.ObserveVendorCall("stream", start, true)
	return newEventStream(resp.Body, c.log), nil
}
