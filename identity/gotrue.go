package identity

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

	"checkout-svc/circuitbreaker"
	"checkout-svc/middleware"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// GoTrueProvider talks to a GoTrue-compatible auth server.
type GoTrueProvider struct {
	baseURL        string
	serviceKey     string
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func NewGoTrueProvider(baseURL, serviceKey string, timeout time.Duration, logger *zap.Logger) *GoTrueProvider {
	return &GoTrueProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		circuitBreaker: circuitbreaker.New("identity", circuitbreaker.Options{
			MaxFailures:   5,
			ResetTimeout:  30 * time.Second,
			IsFailure:     isProviderFailure,
			OnStateChange: middleware.RecordCircuitState,
		}),
		logger: logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID string `json:"id"`
	} `json:"user"`
}

type userResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	ErrorCode        string `json:"error_code"`
}

func (e errorResponse) message() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (p *GoTrueProvider) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	var out tokenResponse
	err := p.do(ctx, http.MethodPost, "/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) && (statusErr.status == http.StatusBadRequest || statusErr.status == http.StatusUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return &Session{AccessToken: out.AccessToken, Subject: out.User.ID}, nil
}

func (p *GoTrueProvider) GetSubject(ctx context.Context, accessToken string) (string, error) {
	var out userResponse
	if err := p.do(ctx, http.MethodGet, "/user", accessToken, nil, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("identity provider returned no subject")
	}
	return out.ID, nil
}

func (p *GoTrueProvider) CreateGuestAccount(ctx context.Context, email, password string) (string, error) {
	var out userResponse
	err := p.do(ctx, http.MethodPost, "/admin/users", p.serviceKey, map[string]interface{}{
		"email":         email,
		"password":      password,
		"email_confirm": true,
		"user_metadata": map[string]string{"tier": GuestTier},
	}, &out)
	if err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) && statusErr.alreadyExists() {
			return "", ErrAccountExists
		}
		return "", err
	}
	return out.ID, nil
}

type statusError struct {
	status int
	body   errorResponse
}

func (e *statusError) Error() string {
	return fmt.Sprintf("identity provider returned %d: %s", e.status, e.body.message())
}

func (e *statusError) alreadyExists() bool {
	if e.body.ErrorCode == "email_exists" || e.body.ErrorCode == "user_already_exists" {
		return true
	}
	msg := strings.ToLower(e.body.message())
	return e.status == http.StatusUnprocessableEntity && strings.Contains(msg, "already")
}

// isProviderFailure keeps client errors from opening the breaker.
func isProviderFailure(err error) bool {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.status >= 500
	}
	return err != nil
}

func (p *GoTrueProvider) do(ctx context.Context, method, path, bearer string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	return p.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("apikey", p.serviceKey)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("identity provider request failed: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("failed to read identity provider response: %w", err)
		}
		if resp.StatusCode >= 300 {
			se := &statusError{status: resp.StatusCode}
			_ = json.Unmarshal(raw, &se.body)
			p.logger.Debug("Identity provider rejected request",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
			)
			return se
		}
		if out != nil {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("failed to decode identity provider response: %w", err)
			}
		}
		return nil
	})
}
