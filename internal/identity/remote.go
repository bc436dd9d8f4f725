package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// RemoteVerifier asks an account service to resolve tokens: POST {base}/verify {"token": ...}.
type RemoteVerifier struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration
}

type RemoteOption func(*RemoteVerifier)

func WithTimeout(d time.Duration) RemoteOption {
	return func(r *RemoteVerifier) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithDial overrides how connections are made; tests use an in-memory listener.
func WithDial(dial fasthttp.DialFunc) RemoteOption {
	return func(r *RemoteVerifier) { r.http.Dial = dial }
}

func NewRemoteVerifier(baseURL string, opts ...RemoteOption) (*RemoteVerifier, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("IDENTITY_URL is required for remote identity")
	}
	r := &RemoteVerifier{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 64},
		timeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsGuest  bool   `json:"isGuest"`
}

func (r *RemoteVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, invalid("empty token")
	}
	payload, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return Identity{}, fmt.Errorf("marshal verify request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(r.baseURL + "/verify")
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	timeout := r.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return Identity{}, context.DeadlineExceeded
	}
	if err := r.http.DoTimeout(req, resp, timeout); err != nil {
		return Identity{}, fmt.Errorf("identity service: %w", err)
	}

	switch code := resp.StatusCode(); {
	case code == fasthttp.StatusUnauthorized || code == fasthttp.StatusForbidden:
		return Identity{}, invalid(fmt.Sprintf("rejected by identity service (%d)", code))
	case code < 200 || code >= 300:
		return Identity{}, fmt.Errorf("identity service status %d", code)
	}

	var out verifyResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return Identity{}, fmt.Errorf("decode identity response: %w", err)
	}
	id, name := strings.TrimSpace(out.ID), strings.TrimSpace(out.Username)
	if id == "" || name == "" {
		return Identity{}, invalid("identity response lacks id or username")
	}
	return Identity{ID: id, Name: name, Transient: out.IsGuest}, nil
}
