package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func pieces(cols ...int) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(cols))
	for i, c := range cols {
		out = append(out, json.RawMessage(`{"id":`+itoa(i)+`,"col":`+itoa(c)+`}`))
	}
	return out
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestDefaultSnapshotEncodesEveryField(t *testing.T) {
	raw, err := EncodeSnapshot(DefaultSnapshot())
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"pieceList", "positionArray", "turn", "firstTurnMove", "simpleMoveMade", "startedJumping", "firstMovedPiece", "movePath"} {
		if _, ok := m[k]; !ok {
			t.Fatalf("missing field %q in %s", k, raw)
		}
	}
	if string(m["firstMovedPiece"]) != "null" || string(m["pieceList"]) != "[]" || string(m["firstTurnMove"]) != "true" {
		t.Fatalf("unexpected defaults: %s", raw)
	}
	var grid [][]int
	if err := json.Unmarshal(m["positionArray"], &grid); err != nil {
		t.Fatalf("grid: %v", err)
	}
	if len(grid) != BoardSize {
		t.Fatalf("expected %d rows, got %d", BoardSize, len(grid))
	}
	for _, row := range grid {
		for _, cell := range row {
			if cell != -1 {
				t.Fatalf("expected empty cells, got %v", grid)
			}
		}
	}
}

func TestDecodeSnapshotKeepsDefaultsForMissingFields(t *testing.T) {
	s, err := DecodeSnapshot([]byte(`{"pieceList":[{"col":1}],"turn":4,"positionArray":[[3]]}`))
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if s.Turn != 4 || len(s.PieceList) != 1 || !s.FirstTurnMove {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if got := s.PositionArray.PieceIndex(0, 0); got != 3 {
		t.Fatalf("cell 0,0: got %d", got)
	}
	if got := s.PositionArray.PieceIndex(7, 7); got != -1 {
		t.Fatalf("cell 7,7 should be empty, got %d", got)
	}
	// decoding must not leak into later defaults
	if d := DefaultSnapshot(); d.PositionArray.PieceIndex(0, 0) != -1 {
		t.Fatalf("default grid was mutated")
	}
}

func TestDecodeSnapshotEmptyBlob(t *testing.T) {
	for _, raw := range []string{"", "  ", "null"} {
		s, err := DecodeSnapshot([]byte(raw))
		if err != nil {
			t.Fatalf("DecodeSnapshot(%q): %v", raw, err)
		}
		if len(s.PieceList) != 0 || !s.FirstTurnMove {
			t.Fatalf("expected default snapshot for %q", raw)
		}
	}
	if _, err := DecodeSnapshot([]byte("{broken")); err == nil {
		t.Fatalf("expected error for malformed blob")
	}
}

func TestWinner(t *testing.T) {
	cases := []struct {
		name   string
		cols   []int
		winner int
		ended  bool
	}{
		{"no black pieces", []int{1, 1, 1}, SideWhite, true},
		{"no white pieces", []int{0, 0}, SideBlack, true},
		{"both sides", []int{0, 1, 1}, 0, false},
		{"empty list", nil, SideWhite, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSnapshot()
			s.PieceList = pieces(tc.cols...)
			w, ok := s.Winner()
			if ok != tc.ended || (ok && w != tc.winner) {
				t.Fatalf("Winner() = %d,%v want %d,%v", w, ok, tc.winner, tc.ended)
			}
		})
	}
}

func TestPieceSideIgnoresUnknownTags(t *testing.T) {
	s := DefaultSnapshot()
	s.PieceList = []json.RawMessage{
		json.RawMessage(`{"col":0}`),
		json.RawMessage(`{"col":2}`),
		json.RawMessage(`{"color":1}`),
		json.RawMessage(`7`),
		json.RawMessage(`{"col":1.0}`),
	}
	black, white := s.CountSides()
	if black != 1 || white != 1 {
		t.Fatalf("CountSides = %d,%d", black, white)
	}
}

func TestParseStatus(t *testing.T) {
	if ParseStatus(" PLAYING ") != StatusPlaying || ParseStatus("finished") != StatusFinished {
		t.Fatalf("ParseStatus mismatch")
	}
	if ParseStatus("bogus") != StatusOpen {
		t.Fatalf("unknown status should read as open")
	}
	if !strings.EqualFold(string(ParseStatus("full")), "full") {
		t.Fatalf("full should round-trip")
	}
}
