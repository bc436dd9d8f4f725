package table

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/dama-table/internal/domain"
	"github.com/park285/dama-table/internal/store"
	"github.com/park285/dama-table/pkg/tabledto"
)

func TestRoomOverRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	ctx := context.Background()
	st := store.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer st.Close()
	if err := st.Create(ctx, "T9", domain.DefaultSnapshot()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	g := NewRegistry(st)
	a, b := &fakeConn{}, &fakeConn{}
	r, _, err := g.Join("T9", Admission{ConnID: "a", Name: "Alice", Status: domain.StatusOpen, Conn: a})
	if err != nil {
		t.Fatalf("Join A: %v", err)
	}
	if _, _, err := g.Join("T9", Admission{ConnID: "b", Name: "Bob", Status: domain.StatusOpen, Conn: b}); err != nil {
		t.Fatalf("Join B: %v", err)
	}
	if got := mr.HGet("table:T9", "status"); got != string(domain.StatusPlaying) {
		t.Fatalf("status field = %q", got)
	}

	turn := 4
	if err := r.Move("a", tabledto.MoveRequest{PieceList: pieces(0, 0), Turn: &turn}); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got := mr.HGet("table:T9", "status"); got != string(domain.StatusFinished) {
		t.Fatalf("status field = %q", got)
	}
	rec, err := st.Load(ctx, "T9")
	if err != nil || rec.Snapshot.Turn != 4 || len(rec.Snapshot.PieceList) != 2 {
		t.Fatalf("stored snapshot = %+v, %v", rec, err)
	}

	_ = r.Leave("a")
	_ = r.Leave("b")
	if _, err := st.Status(ctx, "T9"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("table should be gone, got %v", err)
	}
}
