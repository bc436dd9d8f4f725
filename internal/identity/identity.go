package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidCredential is returned for tokens that fail verification.
var ErrInvalidCredential = errors.New("invalid credential")

// Identity is what the table server needs to know about a caller.
type Identity struct {
	ID        string
	Name      string
	Transient bool // anonymous guest identity
}

// Verifier resolves an opaque token to an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Modes accepted by New.
const (
	ModeJWT    = "jwt"
	ModeRemote = "remote"
)

// Options configures the verifier built by New.
type Options struct {
	Mode    string
	Secret  string
	URL     string
	Timeout time.Duration
}

// New builds the configured verifier.
func New(opts Options) (Verifier, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Mode)) {
	case ModeJWT, "":
		return NewJWTVerifier(opts.Secret)
	case ModeRemote:
		return NewRemoteVerifier(opts.URL, WithTimeout(opts.Timeout))
	default:
		return nil, fmt.Errorf("unsupported identity mode: %s", opts.Mode)
	}
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidCredential, reason)
}
