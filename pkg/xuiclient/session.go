package xuiclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"xui-vpn-bot/internal/config"
	"xui-vpn-bot/internal/constants"
	"xui-vpn-bot/internal/errors"
)

// Session manages one authenticated cookie session against the 3x-ui panel.
// A session is opened before the first panel call of a logical operation and
// closed after the last one; it is not shared across concurrent operations.
type Session struct {
	http   *resty.Client
	cfg    config.PanelConfig
	cookie string
	opened bool
	logger *logrus.Logger
}

// apiResponse is the common envelope of all panel API responses
type apiResponse struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Obj     json.RawMessage `json:"obj"`
}

// NewSession creates a session for the configured panel
func NewSession(cfg config.PanelConfig, logger *logrus.Logger) *Session {
	// The session cookie is attached by hand on every request; resty's
	// default jar would append a second copy of each cookie.
	httpClient := resty.New().
		SetCookieJar(nil).
		SetTimeout(constants.RequestTimeout * time.Second).
		SetTransport(&http.Transport{
			DialContext: (&net.Dialer{
				Timeout: constants.ConnectTimeout * time.Second,
			}).DialContext,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.VerifySSL},
		}).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &Session{
		http:   httpClient,
		cfg:    cfg,
		logger: logger,
	}
}

// Open authenticates against the panel and stores the session cookie
func (s *Session) Open(ctx context.Context) error {
	if err := s.login(ctx); err != nil {
		return err
	}
	s.opened = true
	return nil
}

// Close drops the session cookie and releases idle transport connections
func (s *Session) Close() {
	s.cookie = ""
	s.opened = false
	s.http.GetClient().CloseIdleConnections()
}

// login submits the credentials as a form POST and collects every cookie of
// the response into a single Cookie header value.
func (s *Session) login(ctx context.Context) error {
	loginURL := s.cfg.BaseURL + "/login"
	s.logger.Infof("Authenticating with 3x-ui panel at %s", s.cfg.BaseURL)

	resp, err := s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": s.cfg.Username,
			"password": s.cfg.Password,
		}).
		Post(loginURL)

	if err != nil {
		return transportError("login", err)
	}

	if resp.StatusCode() != http.StatusOK {
		s.logger.Errorf("Login failed - URL: %s, status: %d, response: %s",
			loginURL, resp.StatusCode(), truncateBody(resp.Body()))
		return &errors.AuthError{Status: resp.StatusCode(), Message: truncateBody(resp.Body())}
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		s.logger.Errorf("No cookies received from panel, response: %s", truncateBody(resp.Body()))
		return &errors.AuthError{Message: "no session cookie received"}
	}

	parts := make([]string, 0, len(cookies))
	for _, cookie := range cookies {
		parts = append(parts, cookie.Name+"="+cookie.Value)
	}
	s.cookie = strings.Join(parts, "; ")

	s.logger.Info("Successfully authenticated with 3x-ui panel")
	return nil
}

// request performs a panel API call and decodes the response envelope
func (s *Session) request(ctx context.Context, method, path string, build func(*resty.Request) *resty.Request) (*apiResponse, error) {
	body, err := s.requestRaw(ctx, method, s.cfg.BaseURL+path, build)
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &errors.DecodeError{Op: method + " " + path, Err: err}
	}
	return &resp, nil
}

// requestRaw performs an HTTP call with the session cookie attached. On a 401
// it re-authenticates and retries exactly once; a second consecutive 401 is
// returned as an APIError rather than retried again.
func (s *Session) requestRaw(ctx context.Context, method, url string, build func(*resty.Request) *resty.Request) ([]byte, error) {
	if !s.opened {
		return nil, fmt.Errorf("session is not open; call Open before issuing requests")
	}

	retried := false
	for {
		req := s.http.R().SetContext(ctx).SetHeader("Cookie", s.cookie)
		if build != nil {
			req = build(req)
		}

		start := time.Now()
		resp, err := req.Execute(method, url)
		if err != nil {
			s.logger.Errorf("XUI API %s %s failed: %v", method, url, err)
			return nil, transportError(method+" "+url, err)
		}

		s.logger.Infof("XUI API %s %s - status: %d - time: %.2fs",
			method, url, resp.StatusCode(), time.Since(start).Seconds())

		if resp.StatusCode() == http.StatusUnauthorized && !retried {
			retried = true
			s.logger.Warn("Session expired, re-authenticating")
			if err := s.login(ctx); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode() >= http.StatusBadRequest {
			s.logger.Errorf("XUI API error: %d - %s", resp.StatusCode(), truncateBody(resp.Body()))
			return nil, &errors.APIError{Status: resp.StatusCode(), Body: truncateBody(resp.Body())}
		}

		return resp.Body(), nil
	}
}

// transportError maps a transport failure to the typed error taxonomy
func transportError(op string, err error) error {
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return &errors.TimeoutError{Op: op, Err: err}
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return &errors.TimeoutError{Op: op, Err: err}
	}
	return &errors.NetworkError{Op: op, Err: err}
}

// truncateBody keeps logged response bodies readable
func truncateBody(body []byte) string {
	const limit = 500
	text := string(body)
	if len(text) > limit {
		return text[:limit]
	}
	return text
}
