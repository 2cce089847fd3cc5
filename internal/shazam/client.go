package shazam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Numenorean/ShazamAPI/internal/signature"
	"github.com/Numenorean/ShazamAPI/pkg/logger"
	"github.com/Numenorean/ShazamAPI/pkg/resilience"
)

const (
	// DefaultBaseURL is the production recognition endpoint.
	DefaultBaseURL = "https://amp.shazam.com"

	// endpointFormat takes language, region and two uppercase UUIDv4
	// values generated per request.
	endpointFormat = "%s/discovery/v5/%s/%s/iphone/-/tag/%s/%s" +
		"?sync=true&webv3=true&sampling=true&connected=&shazamapiversion=v3" +
		"&sharehub=true&hubv5minorversion=v5.1&hidelb=true&video=v3"

	userAgent = "Shazam/3685 CFNetwork/1197 Darwin/20.0.0"

	defaultTimeout = 20 * time.Second
)

// Config holds per-client settings. The zero value gets usable defaults.
type Config struct {
	Language string // Accept-Language and URL language segment
	Region   string // URL region segment
	Timezone string // reported in every request body

	// BaseURL overrides the recognition endpoint, mainly for tests.
	BaseURL string

	Timeout time.Duration
	Retry   *resilience.RetryConfig
	Limiter *resilience.RateLimiter // optional, shared across clients
}

// TransportError reports a network-level failure: the request never
// produced a usable service response. Transport failures are retried.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "shazam transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServiceError reports a non-2xx status or an undecodable payload.
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("shazam service: status=%d body=%s", e.Status, e.Body)
}

// Client submits encoded signatures to the recognition endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a recognition client
func NewClient(cfg Config) *Client {
	if cfg.Language == "" {
		cfg.Language = "ru"
	}
	if cfg.Region == "" {
		cfg.Region = "RU"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Europe/Moscow"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry == nil {
		cfg.Retry = resilience.DefaultRetryConfig()
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Recognize submits one signature and returns the parsed response.
// Transport failures are retried with backoff; a non-2xx status or a
// malformed payload is returned as a ServiceError without retrying.
func (c *Client) Recognize(ctx context.Context, sig *signature.Signature) (*Response, error) {
	uri, err := sig.EncodeToURI()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(recognizeRequest{
		Timezone: c.cfg.Timezone,
		Signature: signaturePayload{
			URI:      uri,
			SampleMS: sig.SampleMS(),
		},
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: err}
		}
	}

	var response *Response
	err = resilience.Retry(ctx, c.cfg.Retry, isTransient, func() error {
		var attemptErr error
		response, attemptErr = c.doRecognize(ctx, body)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("recognition response received",
		zap.Int("sample_ms", sig.SampleMS()),
		zap.Int("matches", len(response.Matches)))

	return response, nil
}

func (c *Client) doRecognize(ctx context.Context, body []byte) (*Response, error) {
	url := fmt.Sprintf(endpointFormat,
		c.cfg.BaseURL, c.cfg.Language, c.cfg.Region,
		strings.ToUpper(uuid.NewString()), strings.ToUpper(uuid.NewString()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Shazam-Platform", "IPHONE")
	req.Header.Set("X-Shazam-AppVersion", "14.1.0")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", c.cfg.Language)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServiceError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var response Response
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, &ServiceError{Status: resp.StatusCode, Body: "malformed payload: " + err.Error()}
	}

	response.Raw = respBody
	return &response, nil
}

func isTransient(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
