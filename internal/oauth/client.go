package oauth

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// DefaultTimeout bounds a single request to the provider
const DefaultTimeout = 30 * time.Second

// ClientConfig configures the provider HTTP client
type ClientConfig struct {
	Timeout         time.Duration
	CAFile          string
	InsecureSkipTLS bool

	// HTTPClient replaces the transport entirely; TLS settings are ignored when set
	HTTPClient *http.Client
	Logger     log.FieldLogger
}

// Client sends form-encoded requests to the authorization server.
// It never retries; retry policy belongs to the polling loop.
type Client struct {
	rc     *resty.Client
	logger log.FieldLogger
}

// Response is a fully read provider response
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewClient builds a provider client
func NewClient(cfg ClientConfig) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		tlsConfig, err := loadTLSConfig(cfg.CAFile, cfg.InsecureSkipTLS)
		if err != nil {
			return nil, err
		}
		rc = resty.New().SetTLSClientConfig(tlsConfig)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rc.SetTimeout(timeout)
	return newClient(rc, logger), nil
}

func newClient(rc *resty.Client, logger log.FieldLogger) *Client {
	rc.SetRetryCount(0).
		SetLogger(logger).
		SetHeader("Accept", "application/json")
	return &Client{rc: rc, logger: logger}
}

// WithTokenSource returns a client that authorizes every request with a token
// from src, over the same transport and timeout
func (c *Client) WithTokenSource(src oauth2.TokenSource) *Client {
	base := c.rc.GetClient()
	hc := &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: base.Transport},
		Timeout:   base.Timeout,
	}
	return newClient(resty.NewWithClient(hc), c.logger)
}

// PostForm sends an application/x-www-form-urlencoded POST
func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values) (*Response, error) {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("sending request to %s: %w", endpoint, err)
	}
	return c.response(endpoint, resp), nil
}

// Get sends a GET with optional headers
func (c *Client) Get(ctx context.Context, endpoint string, headers map[string]string) (*Response, error) {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("sending request to %s: %w", endpoint, err)
	}
	return c.response(endpoint, resp), nil
}

func (c *Client) response(endpoint string, resp *resty.Response) *Response {
	r := &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}

	entry := c.logger.WithFields(log.Fields{
		"url":    endpoint,
		"status": r.StatusCode,
	})
	// Success bodies carry credentials and stay out of the log
	if r.OK() {
		entry.Debug("provider response")
	} else {
		entry.Debugf("provider response: %s", r.Body)
	}
	return r
}

func loadTLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	if caFile == "" && !insecure {
		return &tls.Config{MinVersion: tls.VersionTLS12}, nil
	}
	certPool, err := loadCertPool(caFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecure, //nolint:gosec // opt-in for local providers
		RootCAs:            certPool,
	}, nil
}

func loadCertPool(caFile string) (*x509.CertPool, error) {
	if caFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("reading CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(data); !ok {
		return nil, errors.New("parsing CA file: no certificates found")
	}
	return pool, nil
}
