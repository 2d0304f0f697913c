package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/content"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
)

type discard struct{}

func (discard) Send(string, domain.Event) {}

func (discard) Enqueue(domain.MatchSummary) bool { return true }

func TestRoomStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRoomStore(newClient(mr), time.Minute)
	pools := memory.NewPoolRepository(memory.NewStaticPoolLoader(content.Bank()), time.Minute)
	service := app.NewMatchService(store, pools, discard{}, discard{})
	service.Connect(domain.Connection{ID: "c1", Name: "Alice"})

	snap, err := service.CreateRoom(context.Background(), "c1", domain.RoomConfig{
		Mode: domain.ModeSignature{Subject: domain.SubjectEnglish, Grade: 4, TotalQuestions: 10},
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	key := "quizduel:room:" + snap.Code
	if !mr.Exists(key) {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Fatalf("expected ttl of a minute, got %s", ttl)
	}

	service.Disconnect("c1")
	if mr.Exists(key) {
		t.Fatalf("expected redis key to be removed")
	}
	if store.Len() != 0 {
		t.Fatalf("expected no rooms, got %d", store.Len())
	}
}

func TestRoomStoreRefusesReservedCode(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	// Another instance already holds "AAAA"; the next draw yields "BBBB".
	if err := mr.Set("quizduel:room:AAAA", "1"); err != nil {
		t.Fatalf("seed key: %v", err)
	}
	store := NewRoomStore(newClient(mr), time.Minute)
	pools := memory.NewPoolRepository(memory.NewStaticPoolLoader(content.Bank()), time.Minute)
	service := app.NewMatchService(store, pools, discard{}, discard{},
		app.WithCodeSource(&stepReader{chunks: [][]byte{{0, 0, 0, 0}, {1, 1, 1, 1}}}))
	service.Connect(domain.Connection{ID: "c1", Name: "Alice"})

	snap, err := service.CreateRoom(context.Background(), "c1", domain.RoomConfig{
		Mode: domain.ModeSignature{Subject: domain.SubjectMath, Grade: 1, TotalQuestions: 10},
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if snap.Code != "BBBB" {
		t.Fatalf("expected reserved code to be skipped, got %s", snap.Code)
	}
}

type stepReader struct {
	chunks [][]byte
}

func (r *stepReader) Read(p []byte) (int, error) {
	chunk := r.chunks[0]
	if len(r.chunks) > 1 {
		r.chunks = r.chunks[1:]
	}
	return copy(p, chunk), nil
}
