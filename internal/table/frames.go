package table

import (
	"encoding/json"

	"github.com/park285/dama-table/internal/domain"
	"github.com/park285/dama-table/pkg/tabledto"
)

func gameStateFrame(s domain.Snapshot) tabledto.GameState {
	s = s.Clone()
	return tabledto.GameState{
		Type:            tabledto.TypeGameState,
		PieceList:       s.PieceList,
		PositionArray:   tabledto.Board(s.PositionArray),
		Turn:            s.Turn,
		FirstTurnMove:   s.FirstTurnMove,
		SimpleMoveMade:  s.SimpleMoveMade,
		StartedJumping:  s.StartedJumping,
		FirstMovedPiece: s.FirstMovedPiece,
		MovePath:        s.MovePath,
	}
}

func frameType(frame any) string {
	switch f := frame.(type) {
	case tabledto.PlayerInfo:
		return f.Type
	case tabledto.GameStart:
		return f.Type
	case tabledto.GameState:
		return f.Type
	case tabledto.InitBoard:
		return f.Type
	case tabledto.GameEnd:
		return f.Type
	case tabledto.OpponentDisconnected:
		return f.Type
	case tabledto.Error:
		return f.Type
	}
	return "unknown"
}

func orEmpty(v []json.RawMessage) []json.RawMessage {
	if v == nil {
		return []json.RawMessage{}
	}
	return v
}

func gridOrEmpty(b *tabledto.Board) domain.Grid {
	if b == nil {
		return domain.EmptyGrid()
	}
	return domain.Grid(*b)
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
