package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/form3tech-oss/jwt-go"
)

// Claim names written by the account service.
const (
	claimUserID   = "userId"
	claimUsername = "username"
	claimIsGuest  = "isGuest"
)

// JWTVerifier checks HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, invalid("empty token")
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, invalid(err.Error())
	}
	if !parsed.Valid {
		return Identity{}, invalid("token not valid")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, invalid("unexpected claims type")
	}

	id, _ := claims[claimUserID].(string)
	name, _ := claims[claimUsername].(string)
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" || name == "" {
		return Identity{}, invalid("token lacks userId or username")
	}
	guest, _ := claims[claimIsGuest].(bool)
	return Identity{ID: id, Name: name, Transient: guest}, nil
}
