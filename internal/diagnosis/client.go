package diagnosis

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/track.monitor/internal/httputil"
)

// DefaultTimeout bounds a single diagnosis call.
const DefaultTimeout = 60 * time.Second

// Client posts requests to a remote diagnosis endpoint that replies with an
// Analysis document.
type Client struct {
	endpoint string
	apiKey   string
	http     httputil.HTTPClient
	timeout  time.Duration
}

// NewClient returns a client for endpoint. A nil hc uses a default
// *http.Client.
func NewClient(endpoint, apiKey string, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{endpoint: endpoint, apiKey: apiKey, http: hc, timeout: DefaultTimeout}
}

// Diagnose implements Diagnoser.
func (c *Client) Diagnose(ctx context.Context, req Request) (*Analysis, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("diagnosis endpoint not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var hdr http.Header
	if c.apiKey != "" {
		hdr = http.Header{"Authorization": []string{"Bearer " + c.apiKey}}
	}
	var out Analysis
	if err := httputil.DoJSON(ctx, c.http, http.MethodPost, c.endpoint, hdr, req, &out); err != nil {
		return nil, fmt.Errorf("diagnosis request for %s: %w", req.RecordID, err)
	}
	switch out.SeverityLevel {
	case Conforme, Surveillance, Critique:
	default:
		return nil, fmt.Errorf("diagnosis for %s: unknown compliance level %q", req.RecordID, out.SeverityLevel)
	}
	return &out, nil
}
