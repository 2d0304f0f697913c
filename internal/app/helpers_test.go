package app_test

import (
	"sync"
	"testing"
	"time"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/content"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type notifier struct {
	mu     sync.Mutex
	events map[string][]domain.Event
}

func newNotifier() *notifier {
	return &notifier{events: make(map[string][]domain.Event)}
}

func (n *notifier) Send(connID string, event domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[connID] = append(n.events[connID], event)
}

func (n *notifier) of(connID, typ string) []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Event
	for _, e := range n.events[connID] {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type sinkFunc func(domain.MatchSummary) bool

func (f sinkFunc) Enqueue(s domain.MatchSummary) bool { return f(s) }

func noTimers(time.Duration, func()) func() { return func() {} }

func mathMode(total int) domain.ModeSignature {
	return domain.ModeSignature{Subject: domain.SubjectMath, Grade: 1, TotalQuestions: total}
}

type harness struct {
	service  *app.MatchService
	rooms    *memory.RoomStore
	clock    *clock
	notifier *notifier
}

func newHarness(t *testing.T, sink app.OutcomeSink) *harness {
	t.Helper()
	h := &harness{rooms: memory.NewRoomStore(), clock: newClock(), notifier: newNotifier()}
	if sink == nil {
		sink = sinkFunc(func(domain.MatchSummary) bool { return true })
	}
	pools := memory.NewPoolRepository(memory.NewStaticPoolLoader(content.Bank()), time.Minute)
	h.service = app.NewMatchService(h.rooms, pools, h.notifier, sink,
		app.WithClock(h.clock.Now),
		app.WithScheduler(noTimers),
	)
	return h
}

func (h *harness) connect(id string, account *domain.Account) domain.Connection {
	conn := domain.Connection{ID: id, Name: id, Account: account}
	h.service.Connect(conn)
	return conn
}
