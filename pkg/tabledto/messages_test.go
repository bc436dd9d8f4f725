package tabledto

import (
	"encoding/json"
	"testing"
)

func TestPeekType(t *testing.T) {
	got, err := PeekType([]byte(`{"type":"move","turn":2}`))
	if err != nil || got != TypeMove {
		t.Fatalf("PeekType = %q, %v", got, err)
	}
	if _, err := PeekType([]byte(`{"turn":2}`)); err != ErrNoType {
		t.Fatalf("expected ErrNoType, got %v", err)
	}
	if _, err := PeekType([]byte(`not json`)); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestMoveRequestDistinguishesAbsentFields(t *testing.T) {
	var req MoveRequest
	if err := json.Unmarshal([]byte(`{"type":"move","simpleMoveMade":true}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Turn != nil || req.FirstTurnMove != nil || req.PositionArray != nil || req.FirstMovedPiece != nil {
		t.Fatalf("absent fields should stay nil: %+v", req)
	}
	if req.SimpleMoveMade == nil || !*req.SimpleMoveMade {
		t.Fatalf("simpleMoveMade should be set")
	}
}
