package table

import (
	"context"
	"errors"

	"github.com/park285/dama-table/internal/domain"
	"github.com/park285/dama-table/internal/obslog"
	"github.com/park285/dama-table/internal/store"
	"github.com/park285/dama-table/pkg/tabledto"
	"go.uber.org/zap"
)

var (
	ErrSessionFull      = errors.New("table is full or finished")
	ErrUnknownSession   = errors.New("table does not exist")
	ErrStoreUnavailable = errors.New("table store unavailable")
	ErrRoomClosed       = errors.New("room closed")
	ErrNotParticipant   = errors.New("connection is not seated at this table")
)

// Sender delivers a frame to one connection without blocking.
type Sender interface {
	Send(frame any) bool
}

// Admission describes a verified connection asking for a seat.
type Admission struct {
	ConnID     string
	IdentityID string
	Name       string
	// Status is the persisted table status read before admission.
	Status domain.Status
	Conn   Sender
}

// Participant is one seated connection.
type Participant struct {
	ConnID     string
	IdentityID string
	Name       string
	Slot       int
	conn       Sender
}

// Room is one live table. All state below ops is owned by the run loop.
type Room struct {
	id   string
	reg  *Registry
	log  *zap.Logger
	ops  chan func()
	done chan struct{}

	seats  [2]*Participant
	snap   domain.Snapshot
	loaded bool
	closed bool
}

func newRoom(id string, reg *Registry) *Room {
	return &Room{
		id:   id,
		reg:  reg,
		log:  obslog.With(zap.String("table_id", id)),
		ops:  make(chan func()),
		done: make(chan struct{}),
	}
}

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) run() {
	defer close(r.done)
	for op := range r.ops {
		op()
		if r.closed {
			return
		}
	}
}

// do runs fn on the room loop and waits for it. The ops channel is unbuffered,
// so a handed-off op always runs.
func (r *Room) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case r.ops <- func() { fn(); close(ran) }:
	case <-r.done:
		return ErrRoomClosed
	}
	<-ran
	return nil
}

func (r *Room) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.reg.storeTimeout)
}

func (r *Room) count() int {
	n := 0
	for _, p := range r.seats {
		if p != nil {
			n++
		}
	}
	return n
}

func (r *Room) seatOf(connID string) (int, bool) {
	for i, p := range r.seats {
		if p != nil && p.ConnID == connID {
			return i, true
		}
	}
	return 0, false
}

// shutdown marks the room closed; the loop exits after the current op.
func (r *Room) shutdown() {
	r.closed = true
	r.reg.remove(r.id, r)
}

// Join seats a connection: playerInfo and the current gameState go to it, and
// when the second seat fills the game starts for both.
func (r *Room) Join(a Admission) (Participant, error) {
	var (
		seated Participant
		err    error
	)
	if derr := r.do(func() { seated, err = r.join(a) }); derr != nil {
		return Participant{}, derr
	}
	return seated, err
}

func (r *Room) join(a Admission) (Participant, error) {
	if r.count() >= 2 || a.Status.Finished() {
		if r.count() == 0 {
			r.shutdown()
		}
		return Participant{}, ErrSessionFull
	}
	if !r.loaded {
		if err := r.load(); err != nil {
			if r.count() == 0 {
				r.shutdown()
			}
			return Participant{}, err
		}
	}

	slot := domain.SideBlack
	if r.seats[domain.SideBlack] != nil {
		slot = domain.SideWhite
	}
	p := &Participant{ConnID: a.ConnID, IdentityID: a.IdentityID, Name: a.Name, Slot: slot, conn: a.Conn}
	r.seats[slot] = p
	r.log.Info("player_joined", zap.String("conn_id", p.ConnID), zap.String("user_id", p.IdentityID), zap.Int("slot", slot))

	r.sendTo(p, tabledto.PlayerInfo{Type: tabledto.TypePlayerInfo, PlayerColor: slot, Username: p.Name})
	r.sendTo(p, gameStateFrame(r.snap))

	if r.count() == 2 {
		r.setStatus(domain.StatusPlaying)
		black, white := r.seats[domain.SideBlack], r.seats[domain.SideWhite]
		r.sendTo(black, tabledto.GameStart{Type: tabledto.TypeGameStart, OpponentName: white.Name})
		r.sendTo(white, tabledto.GameStart{Type: tabledto.TypeGameStart, OpponentName: black.Name})
		r.broadcast(gameStateFrame(r.snap))
		r.log.Info("game_started", zap.String("black", black.Name), zap.String("white", white.Name))
	}
	return *p, nil
}

func (r *Room) load() error {
	ctx, cancel := r.storeCtx()
	defer cancel()
	rec, err := r.reg.store.Load(ctx, r.id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownSession
		}
		r.reg.metrics.StoreError("load")
		r.log.Warn("snapshot_load_error", zap.Error(err))
		return ErrStoreUnavailable
	}
	r.snap = rec.Snapshot.Clone()
	r.loaded = true
	return nil
}

// Leave removes a connection. The remaining player, if any, is told and the
// table reopens; otherwise the table is deleted and the room shuts down.
func (r *Room) Leave(connID string) error {
	var err error
	if derr := r.do(func() { err = r.leave(connID) }); derr != nil {
		return derr
	}
	return err
}

func (r *Room) leave(connID string) error {
	slot, ok := r.seatOf(connID)
	if !ok {
		return ErrNotParticipant
	}
	r.seats[slot] = nil
	r.log.Info("player_left", zap.String("conn_id", connID), zap.Int("slot", slot))

	if r.count() > 0 {
		r.broadcast(tabledto.OpponentDisconnected{Type: tabledto.TypeOpponentDisconnected})
		r.setStatus(domain.StatusOpen)
		return nil
	}

	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := r.reg.store.Delete(ctx, r.id); err != nil {
		r.reg.metrics.StoreError("delete")
		r.log.Warn("table_delete_error", zap.Error(err))
	}
	r.shutdown()
	r.log.Info("table_closed")
	return nil
}

// InitBoard replaces pieces, grid and turn, then relays them to everyone.
func (r *Room) InitBoard(connID string, req tabledto.InitBoardRequest) error {
	var err error
	if derr := r.do(func() { err = r.initBoard(connID, req) }); derr != nil {
		return derr
	}
	return err
}

func (r *Room) initBoard(connID string, req tabledto.InitBoardRequest) error {
	if _, ok := r.seatOf(connID); !ok {
		return ErrNotParticipant
	}
	r.snap.PieceList = orEmpty(req.PieceList)
	r.snap.PositionArray = gridOrEmpty(req.PositionArray)
	r.snap.Turn = intOr(req.Turn, 0)
	r.snap.Normalize()

	r.save()
	r.broadcast(tabledto.InitBoard{
		Type:          tabledto.TypeInitBoard,
		PieceList:     r.snap.PieceList,
		PositionArray: tabledto.Board(r.snap.PositionArray),
		Turn:          r.snap.Turn,
	})
	return nil
}

// Move replaces the whole snapshot, relays it, then checks whether a side has
// run out of pieces.
func (r *Room) Move(connID string, req tabledto.MoveRequest) error {
	var err error
	if derr := r.do(func() { err = r.move(connID, req) }); derr != nil {
		return derr
	}
	return err
}

func (r *Room) move(connID string, req tabledto.MoveRequest) error {
	if _, ok := r.seatOf(connID); !ok {
		return ErrNotParticipant
	}
	r.snap = domain.Snapshot{
		PieceList:       orEmpty(req.PieceList),
		PositionArray:   gridOrEmpty(req.PositionArray),
		Turn:            intOr(req.Turn, 0),
		FirstTurnMove:   boolOr(req.FirstTurnMove, true),
		SimpleMoveMade:  boolOr(req.SimpleMoveMade, false),
		StartedJumping:  boolOr(req.StartedJumping, false),
		FirstMovedPiece: req.FirstMovedPiece,
		MovePath:        orEmpty(req.MovePath),
	}
	r.snap.Normalize()

	r.save()
	r.broadcast(gameStateFrame(r.snap))

	winner, over := r.snap.Winner()
	if !over {
		return nil
	}
	r.broadcast(tabledto.GameEnd{
		Type:        tabledto.TypeGameEnd,
		Winner:      winner,
		WinnerColor: r.reg.catalog.SideLabel(winner),
	})
	r.setStatus(domain.StatusFinished)
	r.reg.metrics.GameFinished()
	r.log.Info("game_finished", zap.Int("winner", winner))
	return nil
}

// Snapshot returns a copy of the live snapshot once it has been loaded.
func (r *Room) Snapshot() (domain.Snapshot, bool) {
	var (
		snap domain.Snapshot
		ok   bool
	)
	if err := r.do(func() {
		if r.loaded {
			snap, ok = r.snap.Clone(), true
		}
	}); err != nil {
		return domain.Snapshot{}, false
	}
	return snap, ok
}

// Players lists the seated participants in slot order.
func (r *Room) Players() []Participant {
	var out []Participant
	_ = r.do(func() {
		for _, p := range r.seats {
			if p != nil {
				out = append(out, *p)
			}
		}
	})
	return out
}

func (r *Room) save() {
	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := r.reg.store.SaveSnapshot(ctx, r.id, r.snap); err != nil {
		r.reg.metrics.StoreError("save_snapshot")
		r.log.Warn("snapshot_save_error", zap.Error(err))
	}
}

func (r *Room) setStatus(s domain.Status) {
	ctx, cancel := r.storeCtx()
	defer cancel()
	if err := r.reg.store.SetStatus(ctx, r.id, s); err != nil {
		r.reg.metrics.StoreError("set_status")
		r.log.Warn("status_save_error", zap.String("status", string(s)), zap.Error(err))
	}
}

func (r *Room) sendTo(p *Participant, frame any) {
	if p == nil || p.conn == nil {
		return
	}
	if !p.conn.Send(frame) {
		r.reg.metrics.Dropped("send_queue_full")
		r.log.Warn("frame_dropped", zap.String("conn_id", p.ConnID))
		return
	}
	r.reg.metrics.Relayed(frameType(frame))
}

func (r *Room) broadcast(frame any) {
	for _, p := range r.seats {
		r.sendTo(p, frame)
	}
}
