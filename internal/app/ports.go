package app

import (
	"context"
	"time"

	"quiz-duel-service/internal/domain"
)

// RoomRepository abstracts where live rooms are registered (in-memory, Redis-backed, etc).
type RoomRepository interface {
	// Insert registers room under its code and reports false if the code is taken.
	Insert(room *Room) bool
	Get(code string) (*Room, bool)
	DeleteIfEmpty(code string)
	Len() int
}

// ContentSource provides the question pool of a category.
type ContentSource interface {
	QuestionsFor(ctx context.Context, category domain.Category) ([]domain.Question, error)
}

// Notifier delivers events to a single connection. Send must not block: it is
// called while a room lock is held.
type Notifier interface {
	Send(connID string, event domain.Event)
}

// OutcomeSink accepts finished play cycles for asynchronous recording.
type OutcomeSink interface {
	Enqueue(summary domain.MatchSummary) bool
}

// Ledger persists match outcomes and derived per-account state.
type Ledger interface {
	UpsertAccount(ctx context.Context, account domain.Account) error
	CreateMatchRecord(ctx context.Context, record domain.MatchRecord) error
	UpsertRating(ctx context.Context, accountID, modeKey string, delta domain.RatingDelta) (domain.Rating, error)
	// UpdateStreak extends the account's duo win streak on a win and resets it
	// otherwise. It returns the streak after the update.
	UpdateStreak(ctx context.Context, accountID string, won bool) (int, error)
	// GrantBadgeOnce reports true only when the badge was newly granted.
	GrantBadgeOnce(ctx context.Context, accountID, code string) (bool, error)
}

// Standings answers read-side queries over the ledger.
type Standings interface {
	Leaderboard(ctx context.Context, modeKey string, limit int) ([]domain.LeaderboardEntry, error)
	RatingsFor(ctx context.Context, accountID string) ([]domain.Rating, error)
	MatchesFor(ctx context.Context, accountID string, limit int) ([]domain.MatchRecord, error)
	// BadgesFor lists an account's badges, most recently earned first.
	BadgesFor(ctx context.Context, accountID string) ([]domain.EarnedBadge, error)
}

// Scheduler runs fn after d and returns a function that cancels it.
type Scheduler func(d time.Duration, fn func()) (cancel func())

func afterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
