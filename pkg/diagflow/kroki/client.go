// Package kroki is an HTTP client for the Kroki diagram rendering service.
//
// Kroki exposes one endpoint per engine and output format,
// POST {base}/{engine}/{format}, taking the diagram source as a text/plain
// body. The client normalizes SVG responses (stripping the XML prolog so
// the markup can be inlined), translates non-200 responses into
// RenderError values with parsed line positions, and adds the
// engine-specific diagram options Kroki expects as headers.
package kroki

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/diagflow/diagflow/pkg/diagflow/engine"
)

// DefaultBaseURL is the public Kroki instance. Self-hosted deployments
// override it with WithBaseURL.
const DefaultBaseURL = "https://kroki.io"

// DefaultTimeout bounds a single render request. Kroki renders are usually
// sub-second but PlantUML and large Graphviz inputs can take tens of
// seconds.
const DefaultTimeout = 30 * time.Second

// ErrTimeout indicates the render request exceeded the client timeout.
var ErrTimeout = errors.New("render timed out, simplify the diagram or retry later")

// xmlProlog matches the XML declaration some engines prepend to SVG output.
var xmlProlog = regexp.MustCompile(`(?i)^<\?xml[^?]*\?>\s*`)

// Client renders diagram source through a Kroki service. The zero value is
// not usable; construct with NewClient. Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the Kroki service base URL. A trailing slash is trimmed.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the structured logger. Default: no logging.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Kroki client against DefaultBaseURL unless overridden.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Render renders source with the given engine and returns the SVG markup
// with the XML prolog stripped. It satisfies the render executor's
// collaborator interface.
func (c *Client) Render(ctx context.Context, eng engine.Engine, source string) (string, error) {
	body, err := c.do(ctx, eng, engine.FormatSVG, source, nil)
	if err != nil {
		return "", err
	}
	return xmlProlog.ReplaceAllString(string(body), ""), nil
}

// Export renders source to a binary output format. FormatSVG is accepted
// too and returns the raw (prolog-intact) SVG bytes. Formats the engine
// does not support are rejected before any network traffic.
func (c *Client) Export(ctx context.Context, eng engine.Engine, format engine.ExportFormat, source string) ([]byte, error) {
	if !eng.Capability().Supports(format) {
		return nil, fmt.Errorf("engine %s does not support %s export", eng, format)
	}

	var headers map[string]string
	wire := format
	if format == engine.FormatPNGOpaque {
		// Kroki flag options are sent as empty-valued headers.
		headers = map[string]string{"Kroki-Diagram-Options-no-transparency": ""}
		wire = engine.FormatPNG
	}
	return c.do(ctx, eng, wire, source, headers)
}

func (c *Client) do(ctx context.Context, eng engine.Engine, format engine.ExportFormat, source string, headers map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/%s", c.baseURL, eng, format)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logWarn("kroki request timed out", "engine", eng.String(), "format", string(format))
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("kroki request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read kroki response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		c.logWarn("kroki render failed",
			"engine", eng.String(),
			"format", string(format),
			"status", resp.StatusCode)
		return nil, ParseRenderError(resp.StatusCode, msg, source)
	}

	c.logDebug("kroki render ok",
		"engine", eng.String(),
		"format", string(format),
		"source_len", len(source),
		"body_len", len(body),
		"duration_ms", time.Since(start).Milliseconds())
	return body, nil
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

var _ interface {
	Render(ctx context.Context, eng engine.Engine, source string) (string, error)
} = (*Client)(nil)
