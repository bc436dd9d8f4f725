package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// BoardSize is the edge length of the draughts board.
const BoardSize = 8

// Sides of the board. The first admitted player sits on SideBlack.
const (
	SideBlack = 0
	SideWhite = 1
)

// Status is the persisted lifecycle state of a table.
type Status string

const (
	StatusOpen     Status = "open"
	StatusFull     Status = "full"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// ParseStatus maps a stored status string to a Status. Unknown values read as open.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusFull:
		return StatusFull
	case StatusPlaying:
		return StatusPlaying
	case StatusFinished:
		return StatusFinished
	default:
		return StatusOpen
	}
}

func (s Status) Finished() bool { return s == StatusFinished }

// Decoding into a RawMessage reuses its backing array, so markers are allocated per use.
func emptyCell() json.RawMessage { return json.RawMessage("-1") }
func jsonNull() json.RawMessage  { return json.RawMessage("null") }

// Grid is the 8x8 occupancy array. Each cell is kept exactly as the client sent it;
// an empty cell is -1.
type Grid [BoardSize][BoardSize]json.RawMessage

// EmptyGrid returns a grid with every cell set to the empty marker.
func EmptyGrid() Grid {
	var g Grid
	g.fill()
	return g
}

func (g *Grid) fill() {
	for r := range g {
		for c := range g[r] {
			if len(bytes.TrimSpace(g[r][c])) == 0 {
				g[r][c] = emptyCell()
			}
		}
	}
}

// PieceIndex returns the piece reference stored in a cell, or -1 when the cell is empty
// or holds something other than an integer index.
func (g Grid) PieceIndex(row, col int) int {
	if row < 0 || row >= BoardSize || col < 0 || col >= BoardSize {
		return -1
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(g[row][col]))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return -1
	}
	i, err := n.Int64()
	if err != nil || i < 0 {
		return -1
	}
	return int(i)
}

// Snapshot is the full, replaceable state of a table. Piece records, cells and
// move-path coordinates are opaque to the server and relayed verbatim.
type Snapshot struct {
	PieceList       []json.RawMessage `json:"pieceList"`
	PositionArray   Grid              `json:"positionArray"`
	Turn            int               `json:"turn"`
	FirstTurnMove   bool              `json:"firstTurnMove"`
	SimpleMoveMade  bool              `json:"simpleMoveMade"`
	StartedJumping  bool              `json:"startedJumping"`
	FirstMovedPiece json.RawMessage   `json:"firstMovedPiece"`
	MovePath        []json.RawMessage `json:"movePath"`
}

// DefaultSnapshot is the state of a freshly created table.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		PieceList:       []json.RawMessage{},
		PositionArray:   EmptyGrid(),
		FirstTurnMove:   true,
		FirstMovedPiece: jsonNull(),
		MovePath:        []json.RawMessage{},
	}
}

// Normalize fills absent collections so the snapshot always encodes with every field present.
func (s *Snapshot) Normalize() {
	if s.PieceList == nil {
		s.PieceList = []json.RawMessage{}
	}
	if s.MovePath == nil {
		s.MovePath = []json.RawMessage{}
	}
	if len(bytes.TrimSpace(s.FirstMovedPiece)) == 0 {
		s.FirstMovedPiece = jsonNull()
	}
	s.PositionArray.fill()
}

// Clone copies the collections of s. Raw element bytes are shared; they are never mutated.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.PieceList = append([]json.RawMessage(nil), s.PieceList...)
	out.MovePath = append([]json.RawMessage(nil), s.MovePath...)
	out.Normalize()
	return out
}

// DecodeSnapshot parses a stored snapshot blob. Fields missing from the blob keep their
// defaults and an empty blob yields DefaultSnapshot.
func DecodeSnapshot(raw []byte) (Snapshot, error) {
	s := DefaultSnapshot()
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return DefaultSnapshot(), fmt.Errorf("decode snapshot: %w", err)
	}
	s.Normalize()
	return s, nil
}

// EncodeSnapshot serialises a snapshot for storage.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	s = s.Clone()
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return raw, nil
}

// PieceSide reads the side tag ("col") of a piece record.
func PieceSide(raw json.RawMessage) (int, bool) {
	var tag struct {
		Col *float64 `json:"col"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil || tag.Col == nil {
		return 0, false
	}
	switch *tag.Col {
	case SideBlack:
		return SideBlack, true
	case SideWhite:
		return SideWhite, true
	}
	return 0, false
}

// CountSides counts pieces per side tag. Records without a recognised tag are ignored.
func (s Snapshot) CountSides() (black, white int) {
	for _, p := range s.PieceList {
		side, ok := PieceSide(p)
		if !ok {
			continue
		}
		if side == SideBlack {
			black++
		} else {
			white++
		}
	}
	return black, white
}

// Winner reports the winning side once one side has no pieces left.
// Black is checked first, so an empty piece list is a win for white.
func (s Snapshot) Winner() (int, bool) {
	black, white := s.CountSides()
	switch {
	case black == 0:
		return SideWhite, true
	case white == 0:
		return SideBlack, true
	}
	return 0, false
}

// Record is what the store holds for one table.
type Record struct {
	ID       string
	Snapshot Snapshot
	Status   Status
}
