package activation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"
)

// Default transport timeouts.
const (
	DefaultConnectTimeout = 15 * time.Second
	DefaultReadTimeout    = 20 * time.Second
)

// ErrStatus is returned when the endpoint answers with a non-2xx status.
var ErrStatus = errors.New("activation: unexpected status")

// Submitter sends an activation record.
type Submitter interface {
	// Submit performs a single attempt. A nil error means the endpoint
	// accepted the record. It does not retry.
	Submit(ctx context.Context, rec Record) error
}

// HTTPConfig configures the HTTP submitter.
type HTTPConfig struct {
	Endpoint       string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// HTTPSubmitter posts records as multipart form data.
type HTTPSubmitter struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSubmitter creates a submitter with a dedicated transport.
func NewHTTPSubmitter(cfg HTTPConfig) *HTTPSubmitter {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConns:          1,
		IdleConnTimeout:       30 * time.Second,
	}

	return &HTTPSubmitter{
		endpoint: cfg.Endpoint,
		client: &http.Client{
			Transport: transport,
			// Upper bound for connect + upload + read.
			Timeout: cfg.ConnectTimeout + cfg.ReadTimeout,
		},
	}
}

// Timeout is the longest a single Submit can take.
func (s *HTTPSubmitter) Timeout() time.Duration {
	return s.client.Timeout
}

// Submit posts the record once.
func (s *HTTPSubmitter) Submit(ctx context.Context, rec Record) error {
	body, contentType, err := encodeMultipart(rec)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post activation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
		return fmt.Errorf("%w: %d: %s", ErrStatus, resp.StatusCode, errorBody(body))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return nil
}

// maxErrorBody caps how much of a rejection body is kept in the error.
const maxErrorBody = 512

func errorBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(b) > maxErrorBody {
		s = strings.TrimSpace(string(b[:maxErrorBody])) + "…"
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}

func encodeMultipart(rec Record) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range rec.Fields() {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
