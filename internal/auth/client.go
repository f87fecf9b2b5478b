// Package auth drives the platform's HTTP surface: the form login with
// its email PIN interstitial, session persistence and the cabinet API.
package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	apperrors "quotex-trader/internal/errors"
	"quotex-trader/internal/models"
	"quotex-trader/internal/session"
)

// userAgent is pinned; the platform ties sessions to the agent string
// that created them.
const userAgent = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/119.0"

var settingsRe = regexp.MustCompile(`window\.settings\s*=\s*(\{.*\})`)

// Client authenticates against the platform and exposes its cabinet
// endpoints. It doubles as the websocket layer's session source.
type Client struct {
	host  string
	base  string // overrides the derived origin when set
	lang  string
	email string
	pass  string
	pin   PINSource
	store *session.Store
	http  *http.Client
	log   zerolog.Logger
}

// New builds an HTTP auth client.
func New(host, lang, email, password string, pin PINSource, store *session.Store, log zerolog.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		host:  host,
		lang:  lang,
		email: email,
		pass:  password,
		pin:   pin,
		store: store,
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("component", "auth").Logger(),
	}
}

func (c *Client) baseURL() string {
	if c.base != "" {
		return c.base
	}
	return "https://" + c.host
}

// Current returns the persisted session, logging in when none survives.
func (c *Client) Current(ctx context.Context) (models.Session, error) {
	sess, err := c.store.Load()
	if err == nil && sess.Valid() {
		return sess, nil
	}
	return c.Login(ctx)
}

// Renew discards the persisted session and logs in from scratch.
func (c *Client) Renew(ctx context.Context) (models.Session, error) {
	if err := c.store.Clear(); err != nil {
		return models.Session{}, &apperrors.AuthError{Stage: "session", Err: err}
	}
	return c.Login(ctx)
}

// Login performs the full form login, walking the PIN interstitial when
// the platform demands one, and persists the resulting session.
func (c *Client) Login(ctx context.Context) (models.Session, error) {
	signInURL := fmt.Sprintf("%s/%s/sign-in/", c.baseURL(), c.lang)

	doc, err := c.getDocument(ctx, signInURL)
	if err != nil {
		return models.Session{}, &apperrors.AuthError{Stage: "form", Err: err}
	}
	token, ok := doc.Find(`input[name="_token"]`).Attr("value")
	if !ok || token == "" {
		return models.Session{}, &apperrors.AuthError{Stage: "form", Err: fmt.Errorf("csrf token not found on %s", signInURL)}
	}

	form := url.Values{
		"_token":   {token},
		"email":    {c.email},
		"password": {c.pass},
		"remember": {"1"},
	}
	doc, err = c.postForm(ctx, signInURL, form)
	if err != nil {
		return models.Session{}, &apperrors.AuthError{Stage: "credentials", Err: err}
	}

	if doc.Find(`input[name="keep_code"]`).Length() > 0 {
		doc, err = c.submitPIN(ctx, signInURL, doc)
		if err != nil {
			return models.Session{}, err
		}
	}

	if msg := loginError(doc); msg != "" {
		c.log.Warn().Str("reason", msg).Msg("login rejected")
		return models.Session{}, &apperrors.AuthError{
			Stage: "credentials",
			Err:   fmt.Errorf("%w: %s", apperrors.ErrInvalidCredentials, msg),
		}
	}

	sess, err := c.buildSession(ctx, doc)
	if err != nil {
		return models.Session{}, err
	}
	if err := c.store.Save(sess); err != nil {
		return models.Session{}, &apperrors.AuthError{Stage: "session", Err: err}
	}
	c.log.Info().Msg("logged in")
	return sess, nil
}

// submitPIN resolves the email PIN interstitial.
func (c *Client) submitPIN(ctx context.Context, signInURL string, doc *goquery.Document) (*goquery.Document, error) {
	if c.pin == nil {
		return nil, &apperrors.AuthError{Stage: "pin", Err: fmt.Errorf("PIN required but no source configured")}
	}
	code, err := c.pin.PIN(ctx)
	if err != nil {
		return nil, &apperrors.AuthError{Stage: "pin", Err: err}
	}
	token, _ := doc.Find(`input[name="_token"]`).Attr("value")
	form := url.Values{
		"_token":    {token},
		"code":      {strings.TrimSpace(code)},
		"keep_code": {"1"},
	}
	out, err := c.postForm(ctx, signInURL, form)
	if err != nil {
		return nil, &apperrors.AuthError{Stage: "pin", Err: err}
	}
	return out, nil
}

// buildSession extracts the websocket token from the trade page and
// snapshots the cookie jar.
func (c *Client) buildSession(ctx context.Context, doc *goquery.Document) (models.Session, error) {
	token := extractToken(doc)
	if token == "" {
		tradeURL := fmt.Sprintf("%s/%s/trade", c.baseURL(), c.lang)
		tradeDoc, err := c.getDocument(ctx, tradeURL)
		if err != nil {
			return models.Session{}, &apperrors.AuthError{Stage: "token", Err: err}
		}
		token = extractToken(tradeDoc)
	}
	if token == "" {
		return models.Session{}, &apperrors.AuthError{Stage: "token", Err: fmt.Errorf("window.settings token not found")}
	}

	base, _ := url.Parse(c.baseURL())
	var pairs []string
	for _, ck := range c.http.Jar.Cookies(base) {
		pairs = append(pairs, ck.Name+"="+ck.Value)
	}

	return models.Session{
		Cookies:   strings.Join(pairs, "; "),
		Token:     token,
		UserAgent: userAgent,
	}, nil
}

// extractToken pulls the socket token out of the window.settings blob.
func extractToken(doc *goquery.Document) string {
	var token string
	doc.Find(`script[type="text/javascript"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, "window.settings") {
			return true
		}
		m := settingsRe.FindStringSubmatch(strings.TrimSuffix(strings.TrimSpace(text), ";"))
		if m == nil {
			return true
		}
		token = tokenField(m[1])
		return token == ""
	})
	return token
}

var tokenRe = regexp.MustCompile(`"token"\s*:\s*"([^"]+)"`)

func tokenField(settings string) string {
	if m := tokenRe.FindStringSubmatch(settings); m != nil {
		return m[1]
	}
	return ""
}

// loginError returns the danger hint text shown on a failed login, or
// empty when the page carries none.
func loginError(doc *goquery.Document) string {
	sel := doc.Find("div.hint.-danger")
	if sel.Length() == 0 {
		sel = doc.Find("div.hint--danger")
	}
	return strings.TrimSpace(sel.First().Text())
}

func (c *Client) getDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return c.doDocument(req)
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", rawURL)
	return c.doDocument(req)
}

func (c *Client) doDocument(req *http.Request) (*goquery.Document, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return goquery.NewDocumentFromReader(resp.Body)
}
