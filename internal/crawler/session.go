package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"mevzuat/internal/config"
	"mevzuat/internal/logger"
)

const tokenSelector = `input[name="antiforgerytoken"]`

// Session errors.
var (
	ErrTokenNotFound   = errors.New("anti-forgery token not found on landing page")
	ErrUnknownAuthMode = errors.New("unknown auth mode")
)

// Credentials is the anti-forgery token and cookie set presented with every
// source request. It is a value: refreshing means acquiring a new one.
type Credentials struct {
	AcquiredAt time.Time
	Token      string
	Cookies    []*http.Cookie
}

// IsZero reports whether no token was acquired.
func (c Credentials) IsZero() bool {
	return c.Token == ""
}

// Preview returns the first characters of the token for logs.
func (c Credentials) Preview() string {
	if len(c.Token) <= 5 {
		return c.Token
	}

	return c.Token[:5] + "..."
}

// CookieNames lists cookie names without values.
func (c Credentials) CookieNames() []string {
	names := make([]string, 0, len(c.Cookies))
	for _, cookie := range c.Cookies {
		names = append(names, cookie.Name)
	}

	return names
}

// Authenticator mints session credentials.
type Authenticator interface {
	Authenticate(ctx context.Context) (Credentials, error)
}

// NewAuthenticator picks an authenticator for cfg.AuthMode.
func NewAuthenticator(cfg config.SourceConfig, log *logger.Logger) (Authenticator, error) {
	switch cfg.AuthMode {
	case config.AuthHTTP, "":
		return NewHTTPAuthenticator(cfg)
	case config.AuthBrowser:
		return NewBrowserAuthenticator(cfg, log), nil
	case config.AuthStatic:
		return StaticAuthenticator{Token: cfg.StaticToken}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAuthMode, cfg.AuthMode)
	}
}

// AcquireCredentials runs auth once. Failures are logged and yield zero
// Credentials; the caller keeps going and lets the source decide.
func AcquireCredentials(ctx context.Context, auth Authenticator, log *logger.Logger) Credentials {
	creds, err := auth.Authenticate(ctx)
	if err != nil {
		log.Warn("could not acquire session credentials", "error", err)
		return Credentials{}
	}

	log.Info("session credentials acquired",
		"token", creds.Preview(),
		"cookies", strings.Join(creds.CookieNames(), ","),
	)

	return creds
}

// HTTPAuthenticator loads the landing page with a fresh cookie jar and reads
// the hidden token input.
type HTTPAuthenticator struct {
	cfg     config.SourceConfig
	landing string
}

// NewHTTPAuthenticator creates an HTTPAuthenticator.
func NewHTTPAuthenticator(cfg config.SourceConfig) (*HTTPAuthenticator, error) {
	_, origin, err := newRestyClient(cfg)
	if err != nil {
		return nil, err
	}

	return &HTTPAuthenticator{cfg: cfg, landing: origin + cfg.LandingPath}, nil
}

// Authenticate implements Authenticator.
func (a *HTTPAuthenticator) Authenticate(ctx context.Context) (Credentials, error) {
	httpClient, origin, err := newRestyClient(a.cfg)
	if err != nil {
		return Credentials{}, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	httpClient.SetCookieJar(jar)

	resp, err := httpClient.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		Get(a.landing)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to load landing page: %w", err)
	}

	if resp.IsError() {
		return Credentials{}, fmt.Errorf("landing page: %w: %d", ErrUnexpectedStatusCode, resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to parse landing page: %w", err)
	}

	token, ok := doc.Find(tokenSelector).First().Attr("value")
	if !ok || token == "" {
		return Credentials{}, ErrTokenNotFound
	}

	originURL, err := url.Parse(origin + "/")
	if err != nil {
		return Credentials{}, fmt.Errorf("invalid origin: %w", err)
	}

	return Credentials{
		Token:      token,
		Cookies:    jar.Cookies(originURL),
		AcquiredAt: time.Now().UTC(),
	}, nil
}

// BrowserAuthenticator drives headless Chrome once to obtain the token and
// cookies. The browser is torn down on every return path.
type BrowserAuthenticator struct {
	logger  *logger.Logger
	landing string
	ua      string
	timeout time.Duration
}

// NewBrowserAuthenticator creates a BrowserAuthenticator.
func NewBrowserAuthenticator(cfg config.SourceConfig, log *logger.Logger) *BrowserAuthenticator {
	if log == nil {
		log = logger.Discard()
	}

	timeout := cfg.GetAuthTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &BrowserAuthenticator{
		logger:  log,
		landing: strings.TrimRight(cfg.BaseURL, "/") + cfg.LandingPath,
		ua:      cfg.UserAgent,
		timeout: timeout,
	}
}

// Authenticate implements Authenticator.
func (a *BrowserAuthenticator) Authenticate(ctx context.Context) (Credentials, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1200, 800),
		chromedp.UserAgent(a.ua),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, a.timeout)
	defer cancelRun()

	var (
		token   string
		found   bool
		cookies []*network.Cookie
	)

	err := chromedp.Run(runCtx,
		chromedp.Navigate(a.landing),
		chromedp.WaitReady(tokenSelector, chromedp.ByQuery),
		chromedp.AttributeValue(tokenSelector, "value", &token, &found, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return Credentials{}, fmt.Errorf("browser session failed: %w", err)
	}

	if !found || token == "" {
		return Credentials{}, ErrTokenNotFound
	}

	a.logger.Debug("browser session finished", "cookies", len(cookies))

	return Credentials{
		Token:      token,
		Cookies:    convertCookies(cookies),
		AcquiredAt: time.Now().UTC(),
	}, nil
}

func convertCookies(in []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}

	return out
}

// StaticAuthenticator returns a fixed placeholder token and no cookies.
type StaticAuthenticator struct {
	Token string
}

// Authenticate implements Authenticator.
func (a StaticAuthenticator) Authenticate(context.Context) (Credentials, error) {
	if a.Token == "" {
		return Credentials{}, ErrTokenNotFound
	}

	return Credentials{Token: a.Token, AcquiredAt: time.Now().UTC()}, nil
}
