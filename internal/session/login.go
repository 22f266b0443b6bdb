package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nao1215/authcrawl/internal/extract"
	"github.com/nao1215/authcrawl/internal/wire"
)

// Login errors.
var (
	// ErrLoginFailed is returned when the login POST is not answered with 302.
	ErrLoginFailed = errors.New("login failed")

	// ErrTokenNotFound is returned when the login page has no CSRF token.
	ErrTokenNotFound = errors.New("cannot find CSRF token on login page")
)

const (
	// statusLoginOK is the only status accepted as a successful login.
	statusLoginOK = "302"

	// SessionCookie names the cookie that carries the authenticated session.
	SessionCookie = "sessionid"
)

// RoundTripper sends one request and returns the decoded response.
type RoundTripper interface {
	RoundTrip(ctx context.Context, req *wire.Request) (*wire.Response, error)
}

// Credentials are the account used to log in.
type Credentials struct {
	Username string
	Password string
}

// Form describes the login form of the target server.
type Form struct {
	// EntryPath is fetched first to obtain the token and initial cookies.
	EntryPath string

	// ActionPath receives the POSTed credentials.
	ActionPath string

	// NextPath is sent as the "next" form field.
	NextPath string

	// TokenField names the hidden input holding the CSRF token.
	TokenField string
}

// DefaultForm returns the login form layout of the target server.
func DefaultForm() Form {
	return Form{
		EntryPath:  "/accounts/login/?next=/fakebook/",
		ActionPath: "/accounts/login/",
		NextPath:   "/fakebook/",
		TokenField: extract.CSRFField,
	}
}

// Authenticator performs the login handshake against one host.
type Authenticator struct {
	host   string
	form   Form
	logger *slog.Logger
}

// NewAuthenticator creates an Authenticator. A nil logger uses slog.Default().
func NewAuthenticator(host string, form Form, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{host: host, form: form, logger: logger}
}

// Login fetches the login page, then posts creds with the CSRF token.
// Cookies from both responses are applied to jar.
func (a *Authenticator) Login(ctx context.Context, rt RoundTripper, jar *Jar, creds Credentials) error {
	entry := wire.NewRequest(wire.MethodGet, a.form.EntryPath, a.host)
	entry.Header[wire.HeaderConnection] = "Keep-Alive"
	if cookies := jar.Render(); cookies != "" {
		entry.Header[wire.HeaderCookie] = cookies
	}

	resp, err := rt.RoundTrip(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to fetch login page: %w", err)
	}
	jar.Update(resp)

	doc, err := extract.Parse(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse login page: %w", err)
	}
	token, ok := extract.FindToken(doc, a.form.TokenField)
	if !ok {
		return fmt.Errorf("%w (status %s)", ErrTokenNotFound, resp.Status)
	}

	post := wire.NewRequest(wire.MethodPost, a.form.ActionPath, a.host)
	post.Header[wire.HeaderConnection] = "Keep-Alive"
	post.Header[wire.HeaderCookie] = jar.Render()
	post.Header[wire.HeaderContentType] = "application/x-www-form-urlencoded"
	post.Body = []byte(a.formBody(creds, token))

	a.logger.Debug("sending login request", "path", a.form.ActionPath, "username", creds.Username)

	resp, err = rt.RoundTrip(ctx, post)
	if err != nil {
		return fmt.Errorf("failed to post login form: %w", err)
	}
	jar.Update(resp)

	if resp.Status != statusLoginOK {
		return fmt.Errorf("%w: server answered %s", ErrLoginFailed, resp.Status)
	}
	if _, ok := jar.Get(SessionCookie); !ok {
		a.logger.Warn("login response set no session cookie", "cookie", SessionCookie)
	}
	a.logger.Info("logged in", "username", creds.Username, "jar_size", jar.Len())
	return nil
}

// formBody encodes the login fields in the order the server expects.
func (a *Authenticator) formBody(creds Credentials, token string) string {
	fields := [][2]string{
		{"username", creds.Username},
		{"password", creds.Password},
		{a.form.TokenField, token},
		{"next", a.form.NextPath},
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f[0]+"="+url.QueryEscape(f[1]))
	}
	return strings.Join(parts, "&")
}
