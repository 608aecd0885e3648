package entrytool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealdesk/internal/config"
	"dealdesk/internal/document"
	"dealdesk/internal/logging"
	"dealdesk/internal/services"
)

const (
	component        = "entrytool"
	maxResponseBytes = 32 << 20
	maxDetailLength  = 300

	// RequestIDHeader carries the per-request correlation identifier.
	RequestIDHeader = "X-Request-ID"
)

// HTTPDoer describes the HTTP client used by the service client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config captures the endpoints and identity used for requests.
type Config struct {
	BaseURL     string
	ExtractPath string
	ExportPath  string
	HealthPath  string
	FormatsPath string
	UserAgent   string
}

// Client talks to the extraction and export service.
type Client struct {
	cfg        Config
	httpClient HTTPDoer
	logger     *slog.Logger
	requestID  func() string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, component)
		}
	}
}

// WithRequestIDFunc overrides how request identifiers are generated.
func WithRequestIDFunc(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.requestID = fn
		}
	}
}

// New constructs a client. Empty paths fall back to the service defaults.
func New(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			BaseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			ExtractPath: pathOrDefault(cfg.ExtractPath, "/upload"),
			ExportPath:  pathOrDefault(cfg.ExportPath, "/export-to-sheets"),
			HealthPath:  pathOrDefault(cfg.HealthPath, "/health"),
			FormatsPath: pathOrDefault(cfg.FormatsPath, "/supported-formats"),
			UserAgent:   strings.TrimSpace(cfg.UserAgent),
		},
		httpClient: http.DefaultClient,
		logger:     logging.NewComponentLogger(nil, component),
		requestID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.UserAgent == "" {
		client.cfg.UserAgent = "dealdesk"
	}
	return client
}

// NewFromConfig builds a client from application configuration.
func NewFromConfig(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	return New(Config{
		BaseURL:     cfg.API.BaseURL,
		ExtractPath: cfg.API.ExtractPath,
		ExportPath:  cfg.API.ExportPath,
		HealthPath:  cfg.API.HealthPath,
		FormatsPath: cfg.API.FormatsPath,
		UserAgent:   cfg.API.UserAgent,
	}, opts...)
}

func pathOrDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if !strings.HasPrefix(value, "/") {
		return "/" + value
	}
	return value
}

// BaseURL returns the service root the client targets.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Extract uploads file as the multipart part "file" and decodes the result.
func (c *Client) Extract(ctx context.Context, file document.File) (*document.ExtractionResult, error) {
	const op = "extract"
	if file.Source == nil {
		return nil, services.Wrap(services.ErrValidation, component, op, "file has no content", nil)
	}

	payload, contentType, err := buildUpload(file)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, component, op, "read file", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.ExtractPath, bytes.NewReader(payload))
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, component, op, "build request", err)
	}
	req.Header.Set("Content-Type", contentType)

	body, err := c.do(ctx, op, req)
	if err != nil {
		return nil, err
	}
	if err := validateBody(schemaExtraction, body); err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, component, op, "invalid response body", err)
	}
	result, err := document.ParseExtractionResult(body)
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, component, op, "invalid response body", err)
	}
	return result, nil
}

// Export forwards result exactly as received from Extract.
func (c *Client) Export(ctx context.Context, result *document.ExtractionResult) (*document.ExportResult, error) {
	const op = "export"
	raw := result.Raw()
	if len(raw) == 0 {
		return nil, services.Wrap(services.ErrValidation, component, op, "no extraction result to export", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.ExportPath, bytes.NewReader(raw))
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, component, op, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(ctx, op, req)
	if err != nil {
		return nil, err
	}
	if err := validateBody(schemaExport, body); err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, component, op, "invalid response body", err)
	}
	exported, err := document.ParseExportResult(body)
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, component, op, "invalid response body", err)
	}
	return exported, nil
}

// Health queries the service health endpoint.
func (c *Client) Health(ctx context.Context) (*document.ServiceHealth, error) {
	var health document.ServiceHealth
	if err := c.getJSON(ctx, "health", c.cfg.HealthPath, schemaHealth, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// SupportedFormats lists the file formats and document types the service accepts.
func (c *Client) SupportedFormats(ctx context.Context) (*document.SupportedFormats, error) {
	var formats document.SupportedFormats
	if err := c.getJSON(ctx, "supported_formats", c.cfg.FormatsPath, schemaFormats, &formats); err != nil {
		return nil, err
	}
	return &formats, nil
}

func (c *Client) getJSON(ctx context.Context, op, path, schema string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return services.Wrap(services.ErrTransport, component, op, "build request", err)
	}
	body, err := c.do(ctx, op, req)
	if err != nil {
		return err
	}
	if err := validateBody(schema, body); err != nil {
		return services.Wrap(services.ErrMalformedResponse, component, op, "invalid response body", err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return services.Wrap(services.ErrMalformedResponse, component, op, "invalid response body", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = c.requestID()
		ctx = services.WithRequestID(ctx, requestID)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	logger := logging.WithContext(ctx, c.logger)
	started := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(op, err)
	}

	logger.Debug("service request completed",
		logging.String("operation", op),
		logging.Int("status", resp.StatusCode),
		logging.Duration("duration", time.Since(started)),
		logging.Int("response_bytes", len(body)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrTransport, component, op, statusMessage(resp.StatusCode, body), nil)
	}
	return body, nil
}

func classifyTransportError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return services.WrapTimeout(component, op, "request timed out", err)
	}
	return services.Wrap(services.ErrTransport, component, op, "request failed", err)
}

// statusMessage renders "http <code>: <detail>", preferring the service's
// {"detail": ...} payload over the raw body.
func statusMessage(code int, body []byte) string {
	detail := extractDetail(body)
	if detail == "" {
		detail = http.StatusText(code)
	}
	if detail == "" {
		return fmt.Sprintf("http %d", code)
	}
	return fmt.Sprintf("http %d: %s", code, detail)
}

func extractDetail(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err == nil && len(envelope.Detail) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Detail, &text); err == nil {
			return truncate(strings.TrimSpace(text))
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if msg := strings.TrimSpace(item.Msg); msg != "" {
					msgs = append(msgs, msg)
				}
			}
			if len(msgs) > 0 {
				return truncate(strings.Join(msgs, "; "))
			}
		}
		return truncate(string(envelope.Detail))
	}
	if trimmed[0] == '{' || trimmed[0] == '[' || trimmed[0] == '<' {
		return ""
	}
	return truncate(string(trimmed))
}

func truncate(s string) string {
	if len(s) <= maxDetailLength {
		return s
	}
	return s[:maxDetailLength] + "..."
}

func buildUpload(file document.File) ([]byte, string, error) {
	rc, err := file.Source.Open()
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(file.Name)))
	header.Set("Content-Type", document.PDFMimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, rc); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
