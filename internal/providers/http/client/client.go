package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/GriffinCanCode/stubterm/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/stubterm/backend/internal/logging"
	"github.com/GriffinCanCode/stubterm/backend/internal/shared/id"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TransportError reports a failed exchange. Reachable is false when no
// reply arrived (timeout, refused connection, cancelled wait, open breaker).
type TransportError struct {
	URL        string
	Reachable  bool
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Reachable {
		return fmt.Sprintf("transport %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transport %s: unreachable: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Recorder receives one observation per exchange.
type Recorder interface {
	ObserveExchange(host, outcome string, duration time.Duration, sent, received int)
}

// Config controls the transport.
type Config struct {
	Timeout           time.Duration
	Method            string
	Headers           map[string]string
	Proxy             string
	InsecureTLS       bool
	RequestsPerSecond float64
	BreakerThreshold  uint32
	BreakerCooldown   time.Duration
}

// DefaultConfig returns a 30s timeout POST transport with an unlimited rate.
func DefaultConfig() Config {
	return Config{
		Timeout:          30 * time.Second,
		Method:           "POST",
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// Client sends request bodies to stubs.
type Client struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	cfg      Config
	logger   *logging.Logger
	recorder Recorder

	breakers *resilience.Group
}

// NewClient builds a transport from cfg.
func NewClient(cfg Config, logger *logging.Logger) *Client {
	if cfg.Method == "" {
		cfg.Method = "POST"
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	// Pooled transport only; retries stay disabled.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTransport(retryClient.HTTPClient.Transport).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0)
	if cfg.InsecureTLS {
		restyClient.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // targets commonly run self-signed certificates
	}
	if cfg.Proxy != "" {
		restyClient.SetProxy(cfg.Proxy)
	}
	for name, value := range cfg.Headers {
		restyClient.SetHeader(name, value)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	c := &Client{
		resty:   restyClient,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
	if cfg.BreakerThreshold > 0 {
		threshold := cfg.BreakerThreshold
		c.breakers = resilience.NewGroup(resilience.Settings{
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsFailure: isUnreachable,
			OnStateChange: func(host string, from, to resilience.State) {
				logger.Info("stub breaker state change",
					zap.String("host", host),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}
	return c
}

// SetRecorder installs a metrics recorder.
func (c *Client) SetRecorder(r Recorder) {
	c.recorder = r
}

// Send performs one exchange and returns the raw reply body.
func (c *Client) Send(ctx context.Context, target string, body []byte) ([]byte, error) {
	host := hostOf(target)
	requestID := id.NewRequestID()
	start := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(host, start, len(body), &TransportError{URL: target, Err: err})
	}

	var raw []byte
	exchange := func() error {
		resp, err := c.resty.R().
			SetContext(ctx).
			SetBody(body).
			Execute(c.cfg.Method, target)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = fmt.Errorf("%w: %v", ctxErr, err)
			}
			return &TransportError{URL: target, Err: err}
		}
		if !resp.IsSuccess() {
			return &TransportError{URL: target, Reachable: true, StatusCode: resp.StatusCode()}
		}
		raw = resp.Body()
		return nil
	}

	var err error
	if c.breakers != nil {
		err = c.breakers.Get(host).Do(exchange)
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			err = &TransportError{URL: target, Err: err}
		}
	} else {
		err = exchange()
	}
	if err != nil {
		c.logger.Debug("stub exchange failed",
			zap.String("request_id", requestID.String()),
			zap.String("url", target),
			zap.Error(err))
		return nil, c.fail(host, start, len(body), err)
	}

	c.observe(host, "ok", start, len(body), len(raw))
	c.logger.Debug("stub exchange",
		zap.String("request_id", requestID.String()),
		zap.String("url", target),
		zap.Int("sent", len(body)),
		zap.Int("received", len(raw)),
		zap.Duration("duration", time.Since(start)))
	return raw, nil
}

// BreakerState reports the breaker state for the host of target.
func (c *Client) BreakerState(target string) resilience.State {
	if c.breakers == nil {
		return resilience.StateClosed
	}
	return c.breakers.Get(hostOf(target)).State()
}

// ResetBreaker closes the breaker for the host of target. Used after a
// successful manual connectivity test.
func (c *Client) ResetBreaker(target string) {
	if c.breakers != nil {
		c.breakers.Reset(hostOf(target))
	}
}

// isUnreachable counts only failures where the stub never answered. A stub
// that replies with an error status is still up.
func isUnreachable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return !te.Reachable
	}
	return err != nil
}

func (c *Client) fail(host string, start time.Time, sent int, err error) error {
	outcome := "unreachable"
	var te *TransportError
	if errors.As(err, &te) && te.Reachable {
		outcome = "status"
	}
	c.observe(host, outcome, start, sent, 0)
	return err
}

func (c *Client) observe(host, outcome string, start time.Time, sent, received int) {
	if c.recorder != nil {
		c.recorder.ObserveExchange(host, outcome, time.Since(start), sent, received)
	}
}

func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}
	return u.Host
}
