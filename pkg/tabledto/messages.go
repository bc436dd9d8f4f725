// Package tabledto holds the JSON frames exchanged with table clients.
package tabledto

import (
	"encoding/json"
	"errors"
	"strings"
)

// Frame type discriminators.
const (
	TypeError                = "error"
	TypePlayerInfo           = "playerInfo"
	TypeGameStart            = "gameStart"
	TypeGameState            = "gameState"
	TypeInitBoard            = "initBoard"
	TypeMove                 = "move"
	TypeGameEnd              = "gameEnd"
	TypeOpponentDisconnected = "opponentDisconnected"
)

// Board is the wire shape of the 8x8 position array.
type Board = [8][8]json.RawMessage

// Envelope carries only the discriminator; used to route inbound frames.
type Envelope struct {
	Type string `json:"type"`
}

var ErrNoType = errors.New("frame has no type")

// PeekType returns the type of a raw inbound frame.
func PeekType(raw []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", err
	}
	t := strings.TrimSpace(env.Type)
	if t == "" {
		return "", ErrNoType
	}
	return t, nil
}

// Server -> client

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type PlayerInfo struct {
	Type        string `json:"type"`
	PlayerColor int    `json:"playerColor"`
	Username    string `json:"username"`
}

type GameStart struct {
	Type         string `json:"type"`
	OpponentName string `json:"opponentName"`
}

type GameState struct {
	Type            string            `json:"type"`
	PieceList       []json.RawMessage `json:"pieceList"`
	PositionArray   Board             `json:"positionArray"`
	Turn            int               `json:"turn"`
	FirstTurnMove   bool              `json:"firstTurnMove"`
	SimpleMoveMade  bool              `json:"simpleMoveMade"`
	StartedJumping  bool              `json:"startedJumping"`
	FirstMovedPiece json.RawMessage   `json:"firstMovedPiece"`
	MovePath        []json.RawMessage `json:"movePath"`
}

type InitBoard struct {
	Type          string            `json:"type"`
	PieceList     []json.RawMessage `json:"pieceList"`
	PositionArray Board             `json:"positionArray"`
	Turn          int               `json:"turn"`
}

type GameEnd struct {
	Type        string `json:"type"`
	Winner      int    `json:"winner"`
	WinnerColor string `json:"winnerColor"`
}

type OpponentDisconnected struct {
	Type string `json:"type"`
}

// Client -> server. Pointer and nil-able fields distinguish absent values so the
// server can apply defaults.

type InitBoardRequest struct {
	PieceList     []json.RawMessage `json:"pieceList"`
	PositionArray *Board            `json:"positionArray"`
	Turn          *int              `json:"turn"`
}

type MoveRequest struct {
	PieceList       []json.RawMessage `json:"pieceList"`
	PositionArray   *Board            `json:"positionArray"`
	MovePath        []json.RawMessage `json:"movePath"`
	Turn            *int              `json:"turn"`
	FirstTurnMove   *bool             `json:"firstTurnMove"`
	SimpleMoveMade  *bool             `json:"simpleMoveMade"`
	StartedJumping  *bool             `json:"startedJumping"`
	FirstMovedPiece json.RawMessage   `json:"firstMovedPiece"`
}
