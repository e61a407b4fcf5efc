package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/festworks/festpass-backend/pkg/config"
	"github.com/festworks/festpass-backend/pkg/logger"
	"github.com/festworks/festpass-backend/pkg/metrics"
	"go.uber.org/multierr"
)

const (
	headerClientKey    = "X-Client-Key"
	headerClientSecret = "X-Client-Secret"
)

// Document is one upstream payment record. The portal's field naming has
// drifted over the years, so documents stay loosely typed until the
// normalizer pins them down.
type Document map[string]any

// Fetcher pulls the payment documents recorded upstream for a phone number.
// The ingestion service takes this interface so tests and the admin debug
// path can substitute fixtures.
type Fetcher interface {
	FetchLogs(ctx context.Context, phone string) ([]Document, error)
}

// Client is the production portal Fetcher.
type Client struct {
	httpClient *http.Client
	cfg        config.PortalConfig
	logger     *logger.Logger
	metrics    *metrics.IngestMetrics
	sleep      func(ctx context.Context, d time.Duration) error
}

// ClientParams bundles the dependencies required to build a portal client.
type ClientParams struct {
	Config     config.PortalConfig
	Logger     *logger.Logger
	Metrics    *metrics.IngestMetrics
	HTTPClient *http.Client
	Sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a portal client with the provided configuration.
func NewClient(params ClientParams) (*Client, error) {
	if params.Config.Endpoint == "" {
		return nil, fmt.Errorf("portal endpoint is required")
	}
	if params.Config.ClientKey == "" || params.Config.ClientSecret == "" {
		return nil, fmt.Errorf("portal credentials are required")
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	sleep := params.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Client{
		httpClient: httpClient,
		cfg:        params.Config,
		logger:     params.Logger,
		metrics:    params.Metrics,
		sleep:      sleep,
	}, nil
}

type docsEnvelope struct {
	Data struct {
		Docs []Document `json:"docs"`
	} `json:"data"`
}

// FetchLogs tries each phone variant up to the configured attempt count and
// returns the first non-empty document array. An empty-but-successful
// response is not an error; an all-variants failure propagates the
// accumulated errors so callers can tell "zero logs" from "fetch failed".
func (c *Client) FetchLogs(ctx context.Context, phone string) ([]Document, error) {
	variants := PhoneVariants(phone, c.cfg.CountryCode)
	if len(variants) == 0 {
		return nil, fmt.Errorf("phone is required")
	}

	var errs error
	sawSuccess := false

	for _, variant := range variants {
		for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
			docs, err := c.fetchOnce(ctx, variant)
			if err == nil {
				c.metrics.IncFetchAttempt("ok")
				sawSuccess = true
				if len(docs) > 0 {
					return docs, nil
				}
				break
			}

			c.metrics.IncFetchAttempt("error")
			errs = multierr.Append(errs, fmt.Errorf("variant %s attempt %d: %w", variant, attempt, err))
			if c.logger != nil {
				c.logger.Warn(c.logger.WithFields(ctx, map[string]any{
					"attempt": attempt,
					"error":   err.Error(),
				}), "portal fetch attempt failed")
			}

			if attempt < c.cfg.MaxAttempts {
				if err := c.sleep(ctx, BackoffDelay(attempt, c.cfg.BackoffStep)); err != nil {
					return nil, multierr.Append(errs, err)
				}
			}
		}
	}

	if sawSuccess {
		return nil, nil
	}
	return nil, errs
}

func (c *Client) fetchOnce(ctx context.Context, phone string) ([]Document, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	endpoint, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	query := endpoint.Query()
	query.Set("mobile", phone)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(headerClientKey, c.cfg.ClientKey)
	req.Header.Set(headerClientSecret, c.cfg.ClientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portal returned status %d", resp.StatusCode)
	}

	var envelope docsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return envelope.Data.Docs, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
