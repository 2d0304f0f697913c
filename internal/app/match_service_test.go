package app_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/content"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
	"quiz-duel-service/internal/quizgen"
)

func TestCreateAndJoinRoom(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.connect("a", nil)
	h.connect("b", nil)
	h.connect("c", nil)

	snap, err := h.service.CreateRoom(ctx, "a", domain.RoomConfig{Mode: mathMode(10)})
	require.NoError(t, err)
	assert.Len(t, snap.Code, app.CodeLength)
	assert.Equal(t, domain.PhaseForming, snap.Phase)

	joined, err := h.service.JoinRoom(ctx, "b", " "+snap.Code+" ")
	require.NoError(t, err)
	assert.Len(t, joined.Players, 2)
	assert.Equal(t, domain.PhaseReadyCheck, joined.Phase)

	_, err = h.service.JoinRoom(ctx, "c", snap.Code)
	assert.ErrorIs(t, err, domain.ErrRoomFull)
	after, err := h.service.Snapshot(snap.Code)
	require.NoError(t, err)
	assert.Len(t, after.Players, 2)

	_, err = h.service.JoinRoom(ctx, "c", "ZZZZ")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestCreateRoomValidatesMode(t *testing.T) {
	h := newHarness(t, nil)
	h.connect("a", nil)

	_, err := h.service.CreateRoom(context.Background(), "a", domain.RoomConfig{Mode: domain.ModeSignature{Subject: "art", Grade: 1, TotalQuestions: 10}})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = h.service.CreateRoom(context.Background(), "ghost", domain.RoomConfig{Mode: mathMode(10)})
	assert.ErrorIs(t, err, app.ErrUnknownConnection)
	assert.Zero(t, h.rooms.Len())
}

func TestUpdateRoomConfig(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.connect("a", nil)
	h.connect("b", nil)

	snap, err := h.service.CreateRoom(ctx, "a", domain.RoomConfig{Mode: mathMode(10)})
	require.NoError(t, err)

	english := domain.ModeSignature{Subject: domain.SubjectEnglish, Grade: 3, TotalQuestions: 10}
	updated, err := h.service.UpdateRoomConfig(ctx, "a", strings.ToLower(snap.Code), english)
	require.NoError(t, err)
	assert.Equal(t, english, updated.Mode)

	_, err = h.service.UpdateRoomConfig(ctx, "a", snap.Code, domain.ModeSignature{Subject: "art", Grade: 1, TotalQuestions: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	_, err = h.service.UpdateRoomConfig(ctx, "b", snap.Code, mathMode(10))
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
	_, err = h.service.UpdateRoomConfig(ctx, "a", "ZZZZ", mathMode(10))
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	after, err := h.service.Snapshot(snap.Code)
	require.NoError(t, err)
	assert.Equal(t, english, after.Mode)
}

func TestConnectionHoldsOneRoom(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.connect("a", nil)

	first, err := h.service.CreateRoom(ctx, "a", domain.RoomConfig{Mode: mathMode(10)})
	require.NoError(t, err)
	second, err := h.service.CreateRoom(ctx, "a", domain.RoomConfig{Mode: mathMode(20)})
	require.NoError(t, err)

	assert.Equal(t, 1, h.rooms.Len())
	_, err = h.service.Snapshot(first.Code)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	code, ok := h.service.RoomOf("a")
	assert.True(t, ok)
	assert.Equal(t, second.Code, code)
}

func TestCodeCollisionRegenerates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	// The first two draws map to "AAAA", every later one to "BBBB".
	src := &repeatReader{chunks: [][]byte{{0, 0, 0, 0}, {0, 0, 0, 0}, {1, 1, 1, 1}}}
	pools := memory.NewPoolRepository(memory.NewStaticPoolLoader(content.Bank()), time.Minute)
	h.service = app.NewMatchService(h.rooms, pools, h.notifier, sinkFunc(func(domain.MatchSummary) bool { return true }),
		app.WithCodeSource(src), app.WithScheduler(noTimers))
	h.connect("a", nil)
	h.connect("b", nil)

	first, err := h.service.CreateRoom(ctx, "a", domain.RoomConfig{Mode: mathMode(10)})
	require.NoError(t, err)
	assert.Equal(t, "AAAA", first.Code)

	second, err := h.service.CreateRoom(ctx, "b", domain.RoomConfig{Mode: mathMode(10)})
	require.NoError(t, err)
	assert.Equal(t, "BBBB", second.Code)
}

type repeatReader struct {
	chunks [][]byte
}

func (r *repeatReader) Read(p []byte) (int, error) {
	chunk := r.chunks[0]
	if len(r.chunks) > 1 {
		r.chunks = r.chunks[1:]
	}
	return copy(p, chunk), nil
}

func TestQueuePairsIntoDuoRoom(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.connect("a", nil)
	h.connect("b", nil)
	h.connect("c", nil)

	require.NoError(t, h.service.JoinQueue(ctx, "a", mathMode(10)))
	require.NoError(t, h.service.JoinQueue(ctx, "c", mathMode(20)))
	assert.Zero(t, h.rooms.Len())

	require.NoError(t, h.service.JoinQueue(ctx, "b", mathMode(10)))
	matchedA := h.notifier.of("a", domain.EventQueueMatched)
	matchedB := h.notifier.of("b", domain.EventQueueMatched)
	require.Len(t, matchedA, 1)
	require.Len(t, matchedB, 1)
	code := matchedA[0].Payload.(domain.QueueMatchedPayload).Code
	assert.Equal(t, code, matchedB[0].Payload.(domain.QueueMatchedPayload).Code)

	snap, err := h.service.Snapshot(code)
	require.NoError(t, err)
	assert.False(t, snap.Solo)
	assert.Len(t, snap.Players, 2)
	assert.Empty(t, h.notifier.of("c", domain.EventQueueMatched))
}

func TestDisconnectLeavesQueue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.connect("a", nil)
	h.connect("b", nil)

	require.NoError(t, h.service.JoinQueue(ctx, "a", mathMode(10)))
	h.service.Disconnect("a")
	require.NoError(t, h.service.JoinQueue(ctx, "b", mathMode(10)))

	assert.Zero(t, h.rooms.Len())
	assert.True(t, h.service.Queue().Queued("b"))
	h.service.LeaveQueue("b")
	assert.False(t, h.service.Queue().Queued("b"))
}

// hookedContent runs onLoad before serving a pool, standing in for a slow
// content backend during which connections can drop.
type hookedContent struct {
	app.ContentSource
	onLoad func()
}

func (c *hookedContent) QuestionsFor(ctx context.Context, category domain.Category) ([]domain.Question, error) {
	if c.onLoad != nil {
		c.onLoad()
	}
	return c.ContentSource.QuestionsFor(ctx, category)
}

func TestPairingAbortsWhenSideDisconnectsDuringLoad(t *testing.T) {
	for _, gone := range []string{"a", "b"} {
		t.Run(gone+" leaves", func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, nil)
			src := &hookedContent{ContentSource: memory.NewPoolRepository(memory.NewStaticPoolLoader(content.Bank()), time.Minute)}
			h.service = app.NewMatchService(h.rooms, src, h.notifier, sinkFunc(func(domain.MatchSummary) bool { return true }),
				app.WithScheduler(noTimers))
			h.connect("a", nil)
			h.connect("b", nil)
			h.connect("c", nil)
			live := map[string]string{"a": "b", "b": "a"}[gone]

			require.NoError(t, h.service.JoinQueue(ctx, "a", mathMode(10)))
			src.onLoad = func() {
				src.onLoad = nil
				h.service.Disconnect(gone)
			}
			require.NoError(t, h.service.JoinQueue(ctx, "b", mathMode(10)))

			assert.Zero(t, h.rooms.Len(), "no partial room is left behind")
			assert.Empty(t, h.notifier.of(live, domain.EventQueueMatched))
			_, inRoom := h.service.RoomOf(live)
			assert.False(t, inRoom)
			assert.True(t, h.service.Queue().Queued(live))
			assert.False(t, h.service.Queue().Queued(gone))
			assert.Equal(t, 1, h.service.Queue().Waiting(mathMode(10)))

			require.NoError(t, h.service.JoinQueue(ctx, "c", mathMode(10)))
			matched := h.notifier.of(live, domain.EventQueueMatched)
			require.Len(t, matched, 1)
			snap, err := h.service.Snapshot(matched[0].Payload.(domain.QueueMatchedPayload).Code)
			require.NoError(t, err)
			assert.Len(t, snap.Players, 2)
			assert.Equal(t, live, snap.Players[0].ID, "the requeued entry is paired first")
		})
	}
}

func TestDisconnectForfeitThroughService(t *testing.T) {
	ctx := context.Background()
	var summaries []domain.MatchSummary
	h := newHarness(t, sinkFunc(func(s domain.MatchSummary) bool {
		summaries = append(summaries, s)
		return true
	}))
	h.connect("a", nil)
	h.connect("b", nil)

	snap, err := h.service.CreateRoom(ctx, "a", domain.RoomConfig{Mode: mathMode(10)})
	require.NoError(t, err)
	_, err = h.service.JoinRoom(ctx, "b", snap.Code)
	require.NoError(t, err)
	require.NoError(t, h.service.SetReady("a", snap.Code, true))
	require.NoError(t, h.service.SetReady("b", snap.Code, true))
	h.clock.Advance(3 * time.Second)

	h.service.Disconnect("a")

	require.Len(t, summaries, 1)
	assert.Equal(t, domain.ReasonDisconnect, summaries[0].Reason)
	assert.Equal(t, "b", summaries[0].WinnerConnID)
	after, err := h.service.Snapshot(snap.Code)
	require.NoError(t, err)
	assert.Len(t, after.Players, 1)
}

func TestSoloDisconnectTearsDownRoom(t *testing.T) {
	ctx := context.Background()
	recorded := 0
	h := newHarness(t, sinkFunc(func(domain.MatchSummary) bool { recorded++; return true }))
	h.connect("a", &domain.Account{ID: "acc-a"})

	snap, err := h.service.CreateRoom(ctx, "a", domain.RoomConfig{Mode: mathMode(10), Solo: true})
	require.NoError(t, err)
	assert.True(t, snap.Started, "solo rooms start on registration")
	h.clock.Advance(3 * time.Second)

	h.service.Disconnect("a")
	assert.Zero(t, recorded)
	assert.Zero(t, h.rooms.Len())
}

func TestEndToEndDuo(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	ledger := memory.NewLedger()
	recorder := app.NewRecorder(ledger, h.notifier, nil, 8)
	pools := memory.NewPoolRepository(memory.NewStaticPoolLoader(content.Bank()), time.Minute)
	h.service = app.NewMatchService(h.rooms, pools, h.notifier, recorder,
		app.WithClock(h.clock.Now),
		app.WithScheduler(noTimers),
	)

	accA := &domain.Account{ID: "acc-a", Username: "alice"}
	accB := &domain.Account{ID: "acc-b", Username: "bob"}
	h.connect("a", accA)
	h.connect("b", accB)

	mode := mathMode(10)
	snap, err := h.service.CreateRoom(ctx, "a", domain.RoomConfig{Mode: mode})
	require.NoError(t, err)
	_, err = h.service.JoinRoom(ctx, "b", snap.Code)
	require.NoError(t, err)

	readyAt := h.clock.Now()
	require.NoError(t, h.service.SetReady("a", snap.Code, true))
	require.NoError(t, h.service.SetReady("b", snap.Code, true))

	countdown := h.notifier.of("a", domain.EventCountdown)
	require.Len(t, countdown, 1)
	assert.Equal(t, readyAt.Add(3000*time.Millisecond).UnixMilli(), countdown[0].Payload.(domain.CountdownPayload).StartAt)

	questions := h.notifier.of("b", domain.EventQuestions)
	require.Len(t, questions, 1)
	payload := questions[0].Payload.(domain.QuestionsPayload)
	require.Len(t, payload.Questions, 10)

	pool := content.Bank()[mode.Category()]
	answers := quizgen.Generate(pool, quizgen.FilterFor(mode), 10, payload.Seed)
	for i, q := range answers {
		require.Equal(t, q.ID, payload.Questions[i].ID)
	}

	h.clock.Advance(3 * time.Second)
	for i, q := range answers {
		ack, err := h.service.SubmitAnswer("a", snap.Code, i, q.Answer)
		require.NoError(t, err)
		assert.True(t, ack.Correct)
		h.clock.Advance(300 * time.Millisecond)

		ack, err = h.service.SubmitAnswer("b", snap.Code, i, q.Answer)
		require.NoError(t, err)
		assert.True(t, ack.Correct)
		h.clock.Advance(300 * time.Millisecond)
	}

	finish := h.notifier.of("b", domain.EventFinished)
	require.Len(t, finish, 1)
	result := finish[0].Payload.(domain.FinishPayload)
	require.NotNil(t, result.WinnerID)
	assert.Equal(t, "a", *result.WinnerID)
	assert.Equal(t, domain.ReasonCompleted, result.Reason)
	assert.Equal(t, 10, result.Scores["a"].Correct)
	assert.Equal(t, 10, result.Scores["b"].Correct)

	require.NoError(t, recorder.Close(ctx))

	ratingA, ok := ledger.Rating("acc-a", mode.Key())
	require.True(t, ok)
	assert.Equal(t, 1, ratingA.GamesPlayed)
	assert.Equal(t, 1, ratingA.Wins)
	assert.Equal(t, 0, ratingA.Losses)

	ratingB, ok := ledger.Rating("acc-b", mode.Key())
	require.True(t, ok)
	assert.Equal(t, 1, ratingB.GamesPlayed)
	assert.Equal(t, 0, ratingB.Wins)
	assert.Equal(t, 1, ratingB.Losses)

	records := ledger.Matches()
	require.Len(t, records, 1)
	require.NotNil(t, records[0].WinnerAccountID)
	assert.Equal(t, "acc-a", *records[0].WinnerAccountID)
	assert.Equal(t, "math:g1:semall:q10", records[0].ModeKey)

	assert.Equal(t, []string{domain.BadgeFastFinish, domain.BadgeFirstWin, domain.BadgePerfectGame}, ledger.Badges("acc-a"))
	assert.Equal(t, []string{domain.BadgeFastFinish, domain.BadgePerfectGame}, ledger.Badges("acc-b"))
	assert.Len(t, h.notifier.of("a", domain.EventBadgeGranted), 3)
	assert.Len(t, h.notifier.of("b", domain.EventBadgeGranted), 2)
}
