package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	randv2 "math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"quiz-duel-service/internal/domain"
)

// ErrUnknownConnection is returned for operations from a connection that never connected.
var ErrUnknownConnection = errors.New("unknown connection")

// Option customises a MatchService.
type Option func(*MatchService)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *MatchService) { s.deps.now = now }
}

// WithTimings overrides the gameplay constants.
func WithTimings(t Timings) Option {
	return func(s *MatchService) { s.deps.timings = t }
}

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *MatchService) { s.deps.log = log }
}

// WithScheduler replaces time.AfterFunc for server-side deadlines.
func WithScheduler(schedule Scheduler) Option {
	return func(s *MatchService) { s.deps.schedule = schedule }
}

// WithSeedSource replaces the random seed draw of each play cycle.
func WithSeedSource(seeds func() uint32) Option {
	return func(s *MatchService) { s.deps.seeds = seeds }
}

// WithCodeSource replaces the entropy used for room codes.
func WithCodeSource(src io.Reader) Option {
	return func(s *MatchService) { s.codes = src }
}

// MatchService is the boundary of the match engine: every inbound client
// action enters here and is routed to the owning room.
type MatchService struct {
	rooms   RoomRepository
	content ContentSource
	queue   *Matchmaker
	codes   io.Reader
	deps    roomDeps

	mu        sync.Mutex
	conns     map[string]domain.Connection
	connRooms map[string]string
}

func NewMatchService(rooms RoomRepository, content ContentSource, notifier Notifier, sink OutcomeSink, opts ...Option) *MatchService {
	s := &MatchService{
		rooms:   rooms,
		content: content,
		codes:   rand.Reader,
		deps: roomDeps{
			now:      time.Now,
			timings:  DefaultTimings(),
			notifier: notifier,
			sink:     sink,
			schedule: afterFunc,
			seeds:    randv2.Uint32,
			log:      zap.NewNop(),
		},
		conns:     make(map[string]domain.Connection),
		connRooms: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queue = NewMatchmaker(s.Live)
	return s
}

// Connect registers a live connection.
func (s *MatchService) Connect(conn domain.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn.ID] = conn
}

// Live reports whether connID is still connected.
func (s *MatchService) Live(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conns[connID]
	return ok
}

// RoomOf returns the code of the room connID is in.
func (s *MatchService) RoomOf(connID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.connRooms[connID]
	return code, ok
}

// Queue exposes the matchmaking queue.
func (s *MatchService) Queue() *Matchmaker {
	return s.queue
}

// CreateRoom opens a room with connID as its first participant. A connection
// sits in at most one room, so any previous room is left first.
func (s *MatchService) CreateRoom(ctx context.Context, connID string, cfg domain.RoomConfig) (domain.RoomSnapshot, error) {
	conn, ok := s.connection(connID)
	if !ok {
		return domain.RoomSnapshot{}, ErrUnknownConnection
	}
	if err := cfg.Mode.Validate(); err != nil {
		return domain.RoomSnapshot{}, err
	}
	room, err := s.openRoom(ctx, cfg)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}

	s.queue.Leave(connID)
	s.leaveRoom(connID)
	if err := room.register(conn); err != nil {
		s.rooms.DeleteIfEmpty(room.Code())
		return domain.RoomSnapshot{}, err
	}
	s.assign(connID, room.Code())
	return room.Snapshot(), nil
}

// JoinRoom adds connID to an existing room by code.
func (s *MatchService) JoinRoom(_ context.Context, connID, code string) (domain.RoomSnapshot, error) {
	conn, ok := s.connection(connID)
	if !ok {
		return domain.RoomSnapshot{}, ErrUnknownConnection
	}
	code = NormalizeCode(code)
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	if current, ok := s.RoomOf(connID); ok && current == code {
		return room.Snapshot(), nil
	}

	if err := room.Join(conn); err != nil {
		return domain.RoomSnapshot{}, err
	}
	s.queue.Leave(connID)
	s.leaveRoom(connID)
	s.assign(connID, code)
	return room.Snapshot(), nil
}

// JoinQueue enqueues connID for mode and forms a duo room when a partner waits.
func (s *MatchService) JoinQueue(ctx context.Context, connID string, mode domain.ModeSignature) error {
	conn, ok := s.connection(connID)
	if !ok {
		return ErrUnknownConnection
	}
	if err := mode.Validate(); err != nil {
		return err
	}
	s.leaveRoom(connID)

	pair, ok := s.queue.Join(QueueEntry{Conn: conn, Mode: mode})
	if !ok {
		return nil
	}
	return s.pairUp(ctx, pair)
}

// LeaveQueue removes connID from matchmaking; absent entries are ignored.
func (s *MatchService) LeaveQueue(connID string) {
	s.queue.Leave(connID)
}

func (s *MatchService) pairUp(ctx context.Context, pair [2]QueueEntry) error {
	room, err := s.openRoom(ctx, domain.RoomConfig{Mode: pair[0].Mode})
	if err != nil {
		s.deps.log.Error("matchmaking room", zap.String("mode", pair[0].Mode.Key()), zap.Error(err))
		for _, e := range pair {
			s.deps.notifier.Send(e.Conn.ID, domain.Event{Type: domain.EventError, Payload: domain.ErrorPayload{Message: err.Error()}})
		}
		return err
	}

	// Loading the pool may block; a side that disconnected meanwhile aborts
	// the pairing before anyone is registered.
	if !s.Live(pair[0].Conn.ID) || !s.Live(pair[1].Conn.ID) {
		s.abortPairing(room, pair)
		return nil
	}

	for i, e := range pair {
		s.leaveRoom(e.Conn.ID)
		if err := room.register(e.Conn); err != nil {
			s.deps.log.Error("register matched connection", zap.String("conn_id", e.Conn.ID), zap.Error(err))
			for _, done := range pair[:i] {
				s.leaveRoom(done.Conn.ID)
			}
			s.abortPairing(room, pair)
			return nil
		}
		s.assign(e.Conn.ID, room.Code())
	}

	for _, e := range pair {
		if !s.Live(e.Conn.ID) {
			// Disconnected after registration; Disconnect may have missed the room.
			s.leaveRoom(e.Conn.ID)
			continue
		}
		s.deps.notifier.Send(e.Conn.ID, domain.Event{Type: domain.EventQueueMatched, Payload: domain.QueueMatchedPayload{Code: room.Code()}})
	}
	s.deps.log.Info("queue matched",
		zap.String("room", room.Code()),
		zap.String("mode", pair[0].Mode.Key()),
	)
	return nil
}

// abortPairing drops an unused room and puts live entries back at the head of
// the queue, oldest first.
func (s *MatchService) abortPairing(room *Room, pair [2]QueueEntry) {
	s.rooms.DeleteIfEmpty(room.Code())
	for i := len(pair) - 1; i >= 0; i-- {
		if s.Live(pair[i].Conn.ID) {
			s.queue.Requeue(pair[i])
		}
	}
	s.deps.log.Debug("pairing aborted", zap.String("mode", pair[0].Mode.Key()))
}

// SetReady toggles the ready flag of connID in the room with code.
func (s *MatchService) SetReady(connID, code string, ready bool) error {
	room, err := s.room(code)
	if err != nil {
		return err
	}
	return room.SetReady(connID, ready)
}

// UpdateRoomConfig changes the mode of an idle room connID sits in. The new
// category's pool is loaded before the room is touched.
func (s *MatchService) UpdateRoomConfig(ctx context.Context, connID, code string, mode domain.ModeSignature) (domain.RoomSnapshot, error) {
	if err := mode.Validate(); err != nil {
		return domain.RoomSnapshot{}, err
	}
	room, err := s.room(code)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	pool, err := s.loadPool(ctx, mode.Category())
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	if err := room.UpdateConfig(connID, mode, pool); err != nil {
		return domain.RoomSnapshot{}, err
	}
	return room.Snapshot(), nil
}

// SubmitAnswer adjudicates one answer of connID.
func (s *MatchService) SubmitAnswer(connID, code string, questionIndex int, answer string) (domain.AnswerAck, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.AnswerAck{}, err
	}
	return room.Submit(connID, questionIndex, answer)
}

// Timeout handles a client-reported deadline for the room with code.
func (s *MatchService) Timeout(connID, code string) error {
	room, err := s.room(code)
	if err != nil {
		return err
	}
	return room.Timeout(connID)
}

// Snapshot returns the public state of a room.
func (s *MatchService) Snapshot(code string) (domain.RoomSnapshot, error) {
	room, err := s.room(code)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return room.Snapshot(), nil
}

// Disconnect unregisters connID and removes it from the queue and its room.
func (s *MatchService) Disconnect(connID string) {
	s.mu.Lock()
	delete(s.conns, connID)
	s.mu.Unlock()

	s.queue.Leave(connID)
	s.leaveRoom(connID)
}

func (s *MatchService) loadPool(ctx context.Context, category domain.Category) ([]domain.Question, error) {
	pool, err := s.content.QuestionsFor(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load questions for %s: %w", category, err)
	}
	if len(pool) == 0 {
		return nil, domain.ErrEmptyPool
	}
	return pool, nil
}

func (s *MatchService) openRoom(ctx context.Context, cfg domain.RoomConfig) (*Room, error) {
	pool, err := s.loadPool(ctx, cfg.Mode.Category())
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := NewRoomCode(s.codes)
		if err != nil {
			return nil, err
		}
		room := newRoom(code, cfg, pool, s.deps)
		if s.rooms.Insert(room) {
			return room, nil
		}
	}
	return nil, domain.ErrCodeSpaceExhausted
}

func (s *MatchService) leaveRoom(connID string) {
	s.mu.Lock()
	code, ok := s.connRooms[connID]
	delete(s.connRooms, connID)
	s.mu.Unlock()
	if !ok {
		return
	}

	room, ok := s.rooms.Get(code)
	if !ok {
		return
	}
	if room.Leave(connID) {
		s.rooms.DeleteIfEmpty(code)
		s.deps.log.Debug("room closed", zap.String("room", code))
	}
}

func (s *MatchService) room(code string) (*Room, error) {
	room, ok := s.rooms.Get(NormalizeCode(code))
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (s *MatchService) connection(connID string) (domain.Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.conns[connID]
	return conn, ok
}

func (s *MatchService) assign(connID, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connRooms[connID] = code
}
