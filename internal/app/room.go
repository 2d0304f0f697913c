package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/quizgen"
)

// roomDeps are the collaborators a room needs; the service shares one set across rooms.
type roomDeps struct {
	now      func() time.Time
	timings  Timings
	notifier Notifier
	sink     OutcomeSink
	schedule Scheduler
	seeds    func() uint32
	log      *zap.Logger
}

type participant struct {
	conn         domain.Connection
	ready        bool
	correct      int
	answered     int
	lastSubmitAt time.Time
	completedAt  time.Time
}

func (p *participant) reset() {
	p.ready = false
	p.correct = 0
	p.answered = 0
	p.lastSubmitAt = time.Time{}
	p.completedAt = time.Time{}
}

// Room is one match context. Every mutation runs under mu, and events are
// emitted after the in-memory state has changed.
type Room struct {
	code string
	deps roomDeps

	mu           sync.Mutex
	cfg          domain.RoomConfig
	pool         []domain.Question
	participants map[string]*participant
	order        []string
	closed       bool

	started   bool
	finished  bool
	cycle     int
	matchID   string
	seed      uint32
	questions []domain.Question
	startAt   time.Time
	endAt     time.Time
	budget    time.Duration
	cancel    func()
}

func newRoom(code string, cfg domain.RoomConfig, pool []domain.Question, deps roomDeps) *Room {
	return &Room{
		code:         code,
		pool:         pool,
		deps:         deps,
		cfg:          cfg,
		participants: make(map[string]*participant, 2),
	}
}

// Code returns the public room code.
func (r *Room) Code() string {
	return r.code
}

// IsEmpty reports whether the room has no participants.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants) == 0
}

// Snapshot returns the current public state.
func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) required() int {
	if r.cfg.Solo {
		return 1
	}
	return 2
}

func (r *Room) active() bool {
	return r.started && !r.finished
}

// register adds the creator or a matchmade participant. Solo participants are
// readied on arrival.
func (r *Room) register(conn domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.addLocked(conn); err != nil {
		return err
	}
	if r.cfg.Solo {
		r.participants[conn.ID].ready = true
		if r.maybeStartLocked() {
			return nil
		}
	}
	r.broadcastLocked()
	return nil
}

// Join adds a participant through an explicit room join. An idle solo room is
// converted into a duo room; a solo room mid-match is full.
func (r *Room) Join(conn domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.ErrRoomNotFound
	}
	if _, ok := r.participants[conn.ID]; ok {
		return nil
	}
	if r.cfg.Solo {
		if r.active() {
			return domain.ErrRoomFull
		}
		r.cfg.Solo = false
		for _, p := range r.participants {
			p.ready = false
		}
	}
	if err := r.addLocked(conn); err != nil {
		return err
	}
	r.broadcastLocked()
	return nil
}

func (r *Room) addLocked(conn domain.Connection) error {
	if r.closed {
		return domain.ErrRoomNotFound
	}
	if _, ok := r.participants[conn.ID]; ok {
		return nil
	}
	if len(r.participants) >= r.required() {
		return domain.ErrRoomFull
	}
	r.participants[conn.ID] = &participant{conn: conn}
	r.order = append(r.order, conn.ID)
	return nil
}

// SetReady toggles a participant's ready flag and starts the play cycle once
// every required participant is ready. Toggles during a running cycle are ignored.
func (r *Room) SetReady(connID string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[connID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if r.active() {
		return nil
	}
	p.ready = ready
	if ready && r.finished {
		r.finished = false
	}
	if r.maybeStartLocked() {
		return nil
	}
	r.broadcastLocked()
	return nil
}

// UpdateConfig swaps the mode of an idle room for one of its participants.
// Ready flags are cleared so everyone confirms the new mode.
func (r *Room) UpdateConfig(connID string, mode domain.ModeSignature, pool []domain.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.ErrRoomNotFound
	}
	if _, ok := r.participants[connID]; !ok {
		return domain.ErrParticipantNotFound
	}
	if r.active() {
		return domain.ErrMatchInProgress
	}
	r.cfg.Mode = mode
	r.pool = pool
	r.finished = false
	for _, p := range r.participants {
		p.ready = false
	}
	r.broadcastLocked()
	return nil
}

func (r *Room) maybeStartLocked() bool {
	if r.started || len(r.participants) != r.required() {
		return false
	}
	for _, p := range r.participants {
		if !p.ready {
			return false
		}
	}
	r.startLocked()
	return true
}

func (r *Room) startLocked() {
	now := r.deps.now()
	total := r.cfg.Mode.TotalQuestions

	r.cycle++
	r.started = true
	r.finished = false
	r.matchID = uuid.NewString()
	r.seed = r.deps.seeds()
	r.questions = quizgen.Generate(r.pool, quizgen.FilterFor(r.cfg.Mode), total, r.seed)
	r.budget = r.deps.timings.Budget(total)
	r.startAt = now.Add(r.deps.timings.LeadTime)
	r.endAt = r.startAt.Add(r.budget)
	for _, p := range r.participants {
		p.correct, p.answered = 0, 0
		p.lastSubmitAt, p.completedAt = time.Time{}, time.Time{}
	}

	cycle := r.cycle
	r.cancel = r.deps.schedule(r.endAt.Sub(now), func() { r.expire(cycle) })

	r.deps.log.Info("match started",
		zap.String("room", r.code),
		zap.String("match_id", r.matchID),
		zap.Uint32("seed", r.seed),
		zap.String("mode", r.cfg.Mode.Key()),
	)

	r.sendAllLocked(domain.Event{Type: domain.EventCountdown, Payload: domain.CountdownPayload{StartAt: r.startAt.UnixMilli()}})
	r.sendAllLocked(domain.Event{Type: domain.EventQuestions, Payload: domain.QuestionsPayload{
		Seed:         r.seed,
		Questions:    quizgen.Prompts(r.questions),
		TimeLimitSec: int(r.budget / time.Second),
	}})
	r.broadcastLocked()
}

// Submit adjudicates one answer. Submissions must arrive inside
// [startAt, endAt], in cursor order, and outside the debounce window.
// A late submission finishes the cycle by timeout.
func (r *Room) Submit(connID string, questionIndex int, raw string) (domain.AnswerAck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok {
		return domain.AnswerAck{}, domain.ErrParticipantNotFound
	}
	if !r.active() {
		return domain.AnswerAck{}, domain.ErrMatchNotActive
	}
	now := r.deps.now()
	if now.Before(r.startAt) {
		return domain.AnswerAck{}, domain.ErrTooEarly
	}
	if now.After(r.endAt) {
		r.finishLocked(domain.ReasonTimeout, "")
		return domain.AnswerAck{}, domain.ErrTooLate
	}
	if questionIndex != p.answered || p.answered >= len(r.questions) {
		return domain.AnswerAck{}, domain.ErrOutOfOrder
	}
	if !p.lastSubmitAt.IsZero() && now.Sub(p.lastSubmitAt) < r.deps.timings.Debounce {
		return domain.AnswerAck{}, domain.ErrRateLimited
	}

	correct := r.questions[questionIndex].Matches(raw, r.deps.timings.MaxAnswerLen)
	if correct {
		p.correct++
	}
	p.answered++
	p.lastSubmitAt = now
	if p.answered >= len(r.questions) {
		p.completedAt = now
	}

	ack := domain.AnswerAck{QuestionIndex: questionIndex, Correct: correct}
	r.deps.notifier.Send(connID, domain.Event{Type: domain.EventAnswerAck, Payload: ack})
	r.broadcastLocked()

	if r.allCompletedLocked() {
		r.finishLocked(domain.ReasonCompleted, "")
	}
	return ack, nil
}

// Timeout handles a client-reported deadline. The server re-validates it against
// the end instant; early signals are rejected.
func (r *Room) Timeout(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[connID]; !ok {
		return domain.ErrParticipantNotFound
	}
	if !r.active() {
		return nil
	}
	if r.deps.now().Before(r.endAt) {
		return domain.ErrTooEarly
	}
	r.finishLocked(domain.ReasonTimeout, "")
	return nil
}

// expire is the server-side deadline check scheduled at start.
func (r *Room) expire(cycle int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cycle != cycle || r.closed {
		return
	}
	r.finishLocked(domain.ReasonTimeout, "")
}

// Leave removes a participant. A duo cycle in progress is forfeited to the
// remaining participant first; a solo cycle is dropped without a record.
// It reports whether the room is now empty, in which case it is closed.
func (r *Room) Leave(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[connID]; !ok {
		return len(r.participants) == 0
	}

	if r.active() {
		if r.cfg.Solo {
			r.abortLocked()
		} else {
			r.finishLocked(domain.ReasonDisconnect, r.opponentLocked(connID))
		}
	}

	delete(r.participants, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if len(r.participants) == 0 {
		r.abortLocked()
		r.closed = true
		return true
	}
	r.broadcastLocked()
	return false
}

func (r *Room) opponentLocked(connID string) string {
	for _, id := range r.order {
		if id != connID {
			return id
		}
	}
	return ""
}

func (r *Room) abortLocked() {
	r.stopTimerLocked()
	r.started = false
	r.questions = nil
	r.seed = 0
	r.startAt, r.endAt = time.Time{}, time.Time{}
}

func (r *Room) stopTimerLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Room) allCompletedLocked() bool {
	if len(r.participants) < r.required() {
		return false
	}
	for _, p := range r.participants {
		if p.answered < len(r.questions) {
			return false
		}
	}
	return true
}

// finishLocked ends the running play cycle once. It emits the finish event,
// hands the summary to the recorder, then resets progress for the next cycle.
// The finished flag stays set until a participant readies again.
func (r *Room) finishLocked(reason domain.FinishReason, override string) bool {
	if !r.active() {
		return false
	}
	r.finished = true
	r.stopTimerLocked()

	now := r.deps.now()
	summary := r.summaryLocked(reason, override, now)

	var winner *string
	if summary.WinnerConnID != "" {
		id := summary.WinnerConnID
		winner = &id
	}
	scores := make(map[string]domain.ScoreView, len(summary.Participants))
	for _, p := range summary.Participants {
		scores[p.ConnID] = domain.ScoreView{Correct: p.Correct, Answered: p.Answered, CompletedAt: unixMilli(p.CompletedAt)}
	}
	r.sendAllLocked(domain.Event{Type: domain.EventFinished, Payload: domain.FinishPayload{
		WinnerID: winner,
		Reason:   reason,
		Scores:   scores,
	}})

	r.deps.log.Info("match finished",
		zap.String("room", r.code),
		zap.String("match_id", summary.MatchID),
		zap.String("reason", string(reason)),
		zap.String("winner", summary.WinnerConnID),
	)

	if r.shouldRecord(summary) && !r.deps.sink.Enqueue(summary) {
		r.deps.log.Error("outcome not queued", zap.String("match_id", summary.MatchID))
	}

	for _, p := range r.participants {
		p.reset()
	}
	r.started = false
	r.questions = nil
	r.seed = 0
	r.startAt, r.endAt = time.Time{}, time.Time{}
	r.broadcastLocked()
	return true
}

func (r *Room) shouldRecord(summary domain.MatchSummary) bool {
	if !summary.Solo {
		return true
	}
	for _, p := range summary.Participants {
		if p.Account != nil {
			return true
		}
	}
	return false
}

func (r *Room) summaryLocked(reason domain.FinishReason, override string, now time.Time) domain.MatchSummary {
	results := make([]domain.ParticipantResult, 0, len(r.order))
	for _, id := range r.order {
		p := r.participants[id]
		results = append(results, domain.ParticipantResult{
			ConnID:       id,
			Name:         p.conn.Name,
			Account:      p.conn.Account,
			Correct:      p.correct,
			Answered:     p.answered,
			LastSubmitAt: p.lastSubmitAt,
			CompletedAt:  p.completedAt,
		})
	}

	winner := override
	if winner == "" && !r.cfg.Solo {
		winner = resolveWinner(results)
	}

	return domain.MatchSummary{
		MatchID:        r.matchID,
		RoomCode:       r.code,
		Mode:           r.cfg.Mode,
		Solo:           r.cfg.Solo,
		Seed:           r.seed,
		Reason:         reason,
		WinnerConnID:   winner,
		StartedAt:      r.startAt,
		FinishedAt:     now,
		TimeBudget:     r.budget,
		TotalQuestions: len(r.questions),
		Participants:   results,
	}
}

// resolveWinner compares exactly two participants: more correct answers win,
// then the earlier last submission. A participant who never submitted ranks
// behind one who did. Anything else is a draw.
func resolveWinner(results []domain.ParticipantResult) string {
	if len(results) != 2 {
		return ""
	}
	a, b := results[0], results[1]
	switch {
	case a.Correct > b.Correct:
		return a.ConnID
	case b.Correct > a.Correct:
		return b.ConnID
	}
	switch {
	case a.LastSubmitAt.IsZero() && b.LastSubmitAt.IsZero():
		return ""
	case b.LastSubmitAt.IsZero():
		return a.ConnID
	case a.LastSubmitAt.IsZero():
		return b.ConnID
	case a.LastSubmitAt.Before(b.LastSubmitAt):
		return a.ConnID
	case b.LastSubmitAt.Before(a.LastSubmitAt):
		return b.ConnID
	}
	return ""
}

func (r *Room) phaseLocked(now time.Time) domain.Phase {
	switch {
	case r.active() && now.Before(r.startAt):
		return domain.PhaseCountdown
	case r.active():
		return domain.PhaseActive
	case r.finished:
		return domain.PhaseFinished
	case len(r.participants) < r.required():
		return domain.PhaseForming
	}
	return domain.PhaseReadyCheck
}

func (r *Room) snapshotLocked() domain.RoomSnapshot {
	players := make([]domain.PlayerView, 0, len(r.order))
	for _, id := range r.order {
		p := r.participants[id]
		players = append(players, domain.PlayerView{
			ID:            id,
			Name:          p.conn.Name,
			Authenticated: p.conn.Account != nil,
			Ready:         p.ready,
			Correct:       p.correct,
			Index:         p.answered,
		})
	}
	snap := domain.RoomSnapshot{
		Code:     r.code,
		Phase:    r.phaseLocked(r.deps.now()),
		Mode:     r.cfg.Mode,
		Solo:     r.cfg.Solo,
		Started:  r.started,
		Finished: r.finished,
		Players:  players,
	}
	if r.active() {
		snap.StartAt = unixMilli(r.startAt)
	}
	return snap
}

func (r *Room) broadcastLocked() {
	r.sendAllLocked(domain.Event{Type: domain.EventRoomState, Payload: r.snapshotLocked()})
}

func (r *Room) sendAllLocked(event domain.Event) {
	for _, id := range r.order {
		r.deps.notifier.Send(id, event)
	}
}

func unixMilli(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
