// Package crawler talks to the legislation portal: it mints session
// credentials, pages through the list endpoint and fetches document texts.
package crawler

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync/atomic"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"mevzuat/internal/config"
	"mevzuat/internal/logger"
)

// Source errors.
var (
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrSourceUnavailable    = errors.New("source temporarily unavailable")
	ErrSessionRejected      = errors.New("source rejected the session credentials")
	ErrResponseTooLarge     = errors.New("response body exceeds limit")
)

// Client issues requests against the portal. Session state is never kept on
// the client: every call receives the Credentials it should present.
type Client struct {
	http      *resty.Client
	extractor Extractor
	logger    *logger.Logger
	cfg       config.SourceConfig
	origin    string
	maxBody   int
	draw      atomic.Int64
}

// NewClient creates a portal client from the source configuration.
func NewClient(cfg config.SourceConfig, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Discard()
	}

	httpClient, origin, err := newRestyClient(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RequestsPerSecond > 0 {
		burst := max(1, int(math.Ceil(cfg.RequestsPerSecond)))
		limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	extractor, err := NewExtractor(cfg.Extractor)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:      httpClient,
		extractor: extractor,
		logger:    log.With("component", "crawler"),
		cfg:       cfg,
		origin:    origin,
		maxBody:   cfg.MaxBodyKb * 1024,
	}, nil
}

// SetExtractor swaps the text extractor used by FetchText.
func (c *Client) SetExtractor(e Extractor) {
	c.extractor = e
}

// DocumentURL returns the public address of a document given its url params.
func (c *Client) DocumentURL(urlParams string) string {
	return c.origin + c.cfg.DocumentPath + "?" + urlParams
}

func (c *Client) checkBodySize(body []byte) error {
	if c.maxBody > 0 && len(body) > c.maxBody {
		return fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, len(body))
	}

	return nil
}

// newRestyClient builds the shared transport for the portal and returns the
// normalized origin (scheme://host) used for Origin and Referer headers.
func newRestyClient(cfg config.SourceConfig) (*resty.Client, string, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid source base url: %w", err)
	}

	if base.Scheme == "" || base.Host == "" {
		return nil, "", fmt.Errorf("invalid source base url: %q", cfg.BaseURL)
	}

	origin := strings.TrimRight(base.String(), "/")

	httpClient := resty.New()
	httpClient.SetBaseURL(origin)
	httpClient.SetHeader("User-Agent", cfg.UserAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(base.Hostname()))
	httpClient.SetTimeout(cfg.GetTimeout())

	if cfg.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	return httpClient, origin, nil
}
