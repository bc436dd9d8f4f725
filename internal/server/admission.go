package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/park285/dama-table/internal/msgcat"
	"github.com/park285/dama-table/internal/store"
	"github.com/park285/dama-table/internal/table"
)

// AdmissionKind names why a connection was turned away.
type AdmissionKind string

const (
	MissingCredential AdmissionKind = "MissingCredential"
	InvalidCredential AdmissionKind = "InvalidCredential"
	UnknownSession    AdmissionKind = "UnknownSession"
	SessionFull       AdmissionKind = "SessionFull"
	StoreUnavailable  AdmissionKind = "StoreUnavailable"
)

func (k AdmissionKind) messageKey() string {
	switch k {
	case MissingCredential:
		return msgcat.KeyMissingCredential
	case InvalidCredential:
		return msgcat.KeyInvalidCredential
	case UnknownSession:
		return msgcat.KeyUnknownSession
	case SessionFull:
		return msgcat.KeySessionFull
	default:
		return msgcat.KeyStoreUnavailable
	}
}

type AdmissionError struct {
	Kind AdmissionKind
	Err  error
}

func (e *AdmissionError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AdmissionError) Unwrap() error { return e.Err }

func reject(kind AdmissionKind, err error) error { return &AdmissionError{Kind: kind, Err: err} }

// credentials pulls the table id and token from the upgrade request.
// The token may come from the query or an Authorization bearer header.
func credentials(r *http.Request) (tableID, token string) {
	q := r.URL.Query()
	tableID = strings.TrimSpace(q.Get("table"))
	token = strings.TrimSpace(q.Get("token"))
	if token == "" {
		if h := strings.TrimSpace(r.Header.Get("Authorization")); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			token = strings.TrimSpace(h[7:])
		}
	}
	return tableID, token
}

func (s *Server) admit(ctx context.Context, c *conn, tableID, token string) (*table.Room, table.Participant, error) {
	if token == "" {
		return nil, table.Participant{}, reject(MissingCredential, nil)
	}
	who, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, table.Participant{}, reject(InvalidCredential, err)
	}
	if tableID == "" {
		return nil, table.Participant{}, reject(UnknownSession, nil)
	}

	status, err := s.store.Status(ctx, tableID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, table.Participant{}, reject(UnknownSession, err)
	case err != nil:
		s.metrics.StoreError("status")
		return nil, table.Participant{}, reject(StoreUnavailable, err)
	}

	room, p, err := s.registry.Join(tableID, table.Admission{
		ConnID:     c.id,
		IdentityID: who.ID,
		Name:       who.Name,
		Status:     status,
		Conn:       c,
	})
	switch {
	case err == nil:
		return room, p, nil
	case errors.Is(err, table.ErrSessionFull):
		return nil, table.Participant{}, reject(SessionFull, err)
	case errors.Is(err, table.ErrUnknownSession):
		return nil, table.Participant{}, reject(UnknownSession, err)
	default:
		return nil, table.Participant{}, reject(StoreUnavailable, err)
	}
}
