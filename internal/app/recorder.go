package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"quiz-duel-service/internal/domain"
)

// ErrAlreadyRecorded is returned when a summary with the same match id was recorded before.
var ErrAlreadyRecorded = errors.New("match already recorded")

const (
	recordTimeout = 10 * time.Second
	seenCapacity  = 4096
)

// Recorder persists finished play cycles off the gameplay path. Summaries are
// queued by Enqueue and written by a single worker goroutine.
type Recorder struct {
	ledger   Ledger
	notifier Notifier
	log      *zap.Logger

	queue chan domain.MatchSummary
	done  chan struct{}

	mu       sync.Mutex
	closed   bool
	seen     map[string]struct{}
	seenList []string
}

// NewRecorder starts the recorder worker. size bounds the backlog.
func NewRecorder(ledger Ledger, notifier Notifier, log *zap.Logger, size int) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	if size <= 0 {
		size = DefaultTimings().RecorderQueue
	}
	r := &Recorder{
		ledger:   ledger,
		notifier: notifier,
		log:      log,
		queue:    make(chan domain.MatchSummary, size),
		done:     make(chan struct{}),
		seen:     make(map[string]struct{}),
	}
	go r.run()
	return r
}

// Enqueue hands a summary to the worker without blocking. A full or closed
// queue drops the summary and reports false.
func (r *Recorder) Enqueue(summary domain.MatchSummary) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.log.Error("recorder closed, outcome dropped", zap.String("match_id", summary.MatchID))
		return false
	}
	select {
	case r.queue <- summary:
		return true
	default:
		r.log.Error("recorder queue full, outcome dropped",
			zap.String("match_id", summary.MatchID),
			zap.Int("capacity", cap(r.queue)),
		)
		return false
	}
}

// Close stops accepting summaries and waits for the backlog to drain.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain recorder: %w", ctx.Err())
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for summary := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if _, err := r.Record(ctx, summary); err != nil && !errors.Is(err, ErrAlreadyRecorded) {
			r.log.Error("record match", zap.String("match_id", summary.MatchID), zap.Error(err))
		}
		cancel()
	}
}

// Record writes the match record, then ratings and badges. Only the match
// record write is reported as an error; rating and badge failures are logged.
func (r *Recorder) Record(ctx context.Context, summary domain.MatchSummary) (domain.MatchRecord, error) {
	if !r.markSeen(summary.MatchID) {
		return domain.MatchRecord{}, ErrAlreadyRecorded
	}

	for _, p := range summary.Participants {
		if p.Account == nil {
			continue
		}
		if err := r.ledger.UpsertAccount(ctx, *p.Account); err != nil {
			r.log.Warn("upsert account", zap.String("account_id", p.Account.ID), zap.Error(err))
		}
	}

	record := BuildRecord(summary)
	if err := r.ledger.CreateMatchRecord(ctx, record); err != nil {
		return domain.MatchRecord{}, fmt.Errorf("create match record: %w", err)
	}

	var streaks map[string]int
	if !summary.Solo {
		r.updateRatings(ctx, summary, record.ModeKey)
		streaks = r.updateStreaks(ctx, summary)
	}
	r.grantBadges(ctx, summary, streaks)
	return record, nil
}

// updateStreaks returns the post-match win streak keyed by connection id.
// Participants whose streak could not be written are left out.
func (r *Recorder) updateStreaks(ctx context.Context, summary domain.MatchSummary) map[string]int {
	streaks := make(map[string]int, len(summary.Participants))
	for _, p := range summary.Participants {
		if p.Account == nil {
			continue
		}
		won := summary.WinnerConnID != "" && summary.WinnerConnID == p.ConnID
		streak, err := r.ledger.UpdateStreak(ctx, p.Account.ID, won)
		if err != nil {
			r.log.Error("update streak",
				zap.String("match_id", summary.MatchID),
				zap.String("account_id", p.Account.ID),
				zap.Error(err),
			)
			continue
		}
		streaks[p.ConnID] = streak
	}
	return streaks
}

func (r *Recorder) updateRatings(ctx context.Context, summary domain.MatchSummary, modeKey string) {
	for _, p := range summary.Participants {
		if p.Account == nil {
			continue
		}
		delta := domain.RatingDelta{Games: 1}
		switch {
		case summary.WinnerConnID == "":
		case summary.WinnerConnID == p.ConnID:
			delta.Wins = 1
		default:
			delta.Losses = 1
		}
		if _, err := r.ledger.UpsertRating(ctx, p.Account.ID, modeKey, delta); err != nil {
			r.log.Error("upsert rating",
				zap.String("match_id", summary.MatchID),
				zap.String("account_id", p.Account.ID),
				zap.Error(err),
			)
		}
	}
}

func (r *Recorder) grantBadges(ctx context.Context, summary domain.MatchSummary, streaks map[string]int) {
	for _, p := range summary.Participants {
		if p.Account == nil {
			continue
		}
		codes := EarnedBadges(summary, p)
		if streaks[p.ConnID] >= domain.StreakBadgeLength {
			codes = append(codes, domain.BadgeStreak3)
		}
		for _, code := range codes {
			granted, err := r.ledger.GrantBadgeOnce(ctx, p.Account.ID, code)
			if err != nil {
				r.log.Warn("grant badge", zap.String("account_id", p.Account.ID), zap.String("badge", code), zap.Error(err))
				continue
			}
			if granted {
				r.notifier.Send(p.ConnID, domain.Event{Type: domain.EventBadgeGranted, Payload: domain.BadgePayload{Code: code}})
			}
		}
	}
}

// EarnedBadges lists the badge conditions p met in summary.
func EarnedBadges(summary domain.MatchSummary, p domain.ParticipantResult) []string {
	var codes []string
	if summary.WinnerConnID != "" && summary.WinnerConnID == p.ConnID {
		codes = append(codes, domain.BadgeFirstWin)
	}
	if summary.TotalQuestions > 0 && p.Correct == summary.TotalQuestions {
		codes = append(codes, domain.BadgePerfectGame)
	}
	if !p.CompletedAt.IsZero() && summary.TimeBudget > 0 && p.CompletedAt.Sub(summary.StartedAt) <= summary.TimeBudget/2 {
		codes = append(codes, domain.BadgeFastFinish)
	}
	return codes
}

// BuildRecord converts a summary into its persisted form.
func BuildRecord(summary domain.MatchSummary) domain.MatchRecord {
	record := domain.MatchRecord{
		ID:             summary.MatchID,
		RoomCode:       summary.RoomCode,
		ModeKey:        summary.Mode.Key(),
		Subject:        summary.Mode.Subject,
		Grade:          summary.Mode.Grade,
		Semester:       summary.Mode.Semester,
		TotalQuestions: summary.Mode.TotalQuestions,
		Solo:           summary.Solo,
		Seed:           int64(summary.Seed),
		Reason:         summary.Reason,
		CreatedAt:      summary.FinishedAt,
		Participants:   make([]domain.RecordParticipant, 0, len(summary.Participants)),
	}
	for _, p := range summary.Participants {
		rp := domain.RecordParticipant{
			ConnID:       p.ConnID,
			Name:         p.Name,
			Correct:      p.Correct,
			Answered:     p.Answered,
			LastSubmitAt: timePtr(p.LastSubmitAt),
			CompletedAt:  timePtr(p.CompletedAt),
		}
		if p.Account != nil {
			id := p.Account.ID
			rp.AccountID = &id
			if record.CreatedByAccountID == nil {
				record.CreatedByAccountID = &id
			}
			if p.ConnID == summary.WinnerConnID {
				record.WinnerAccountID = &id
			}
		}
		record.Participants = append(record.Participants, rp)
	}
	return record
}

func (r *Recorder) markSeen(matchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[matchID]; ok {
		return false
	}
	r.seen[matchID] = struct{}{}
	r.seenList = append(r.seenList, matchID)
	if len(r.seenList) > seenCapacity {
		delete(r.seen, r.seenList[0])
		r.seenList = r.seenList[1:]
	}
	return true
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
