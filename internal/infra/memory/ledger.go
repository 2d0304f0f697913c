package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"quiz-duel-service/internal/domain"
)

type ratingKey struct {
	accountID string
	modeKey   string
}

// Ledger keeps match records, ratings and badges in process memory. It
// implements app.Ledger and app.Standings for tests and database-less runs.
type Ledger struct {
	clock func() time.Time

	mu       sync.RWMutex
	accounts map[string]domain.Account
	matches  []domain.MatchRecord
	matchIDs map[string]struct{}
	ratings  map[ratingKey]domain.Rating
	badges   map[string]map[string]time.Time
	streaks  map[string]int
}

func NewLedger() *Ledger {
	return &Ledger{
		clock:    time.Now,
		accounts: make(map[string]domain.Account),
		matchIDs: make(map[string]struct{}),
		ratings:  make(map[ratingKey]domain.Rating),
		badges:   make(map[string]map[string]time.Time),
		streaks:  make(map[string]int),
	}
}

func (l *Ledger) UpsertAccount(_ context.Context, account domain.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[account.ID] = account
	return nil
}

func (l *Ledger) CreateMatchRecord(_ context.Context, record domain.MatchRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.matchIDs[record.ID]; ok {
		return fmt.Errorf("match %s already stored", record.ID)
	}
	l.matchIDs[record.ID] = struct{}{}
	l.matches = append(l.matches, record)
	return nil
}

func (l *Ledger) UpsertRating(_ context.Context, accountID, modeKey string, delta domain.RatingDelta) (domain.Rating, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ratingKey{accountID: accountID, modeKey: modeKey}
	rating, ok := l.ratings[key]
	if !ok {
		rating = domain.Rating{AccountID: accountID, ModeKey: modeKey}
	}
	rating.GamesPlayed += delta.Games
	rating.Wins += delta.Wins
	rating.Losses += delta.Losses
	rating.UpdatedAt = l.clock()
	l.ratings[key] = rating
	return rating, nil
}

func (l *Ledger) UpdateStreak(_ context.Context, accountID string, won bool) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !won {
		l.streaks[accountID] = 0
		return 0, nil
	}
	l.streaks[accountID]++
	return l.streaks[accountID], nil
}

func (l *Ledger) GrantBadgeOnce(_ context.Context, accountID, code string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	owned, ok := l.badges[accountID]
	if !ok {
		owned = make(map[string]time.Time)
		l.badges[accountID] = owned
	}
	if _, had := owned[code]; had {
		return false, nil
	}
	owned[code] = l.clock()
	return true, nil
}

// Leaderboard ranks a mode by wins descending, then games played ascending.
func (l *Ledger) Leaderboard(_ context.Context, modeKey string, limit int) ([]domain.LeaderboardEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var rows []domain.Rating
	for key, r := range l.ratings {
		if key.modeKey == modeKey {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Wins != rows[j].Wins {
			return rows[i].Wins > rows[j].Wins
		}
		if rows[i].GamesPlayed != rows[j].GamesPlayed {
			return rows[i].GamesPlayed < rows[j].GamesPlayed
		}
		return rows[i].AccountID < rows[j].AccountID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		account, ok := l.accounts[r.AccountID]
		if !ok {
			account = domain.Account{ID: r.AccountID}
		}
		out = append(out, domain.LeaderboardEntry{
			Account:     account,
			GamesPlayed: r.GamesPlayed,
			Wins:        r.Wins,
			Losses:      r.Losses,
		})
	}
	return out, nil
}

// RatingsFor returns an account's ratings, most recently updated first.
func (l *Ledger) RatingsFor(_ context.Context, accountID string) ([]domain.Rating, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Rating
	for key, r := range l.ratings {
		if key.accountID == accountID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ModeKey < out[j].ModeKey
	})
	return out, nil
}

// MatchesFor returns the newest records an account took part in.
func (l *Ledger) MatchesFor(_ context.Context, accountID string, limit int) ([]domain.MatchRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.MatchRecord
	for i := len(l.matches) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if hasAccount(l.matches[i], accountID) {
			out = append(out, l.matches[i])
		}
	}
	return out, nil
}

// Matches returns every stored record in insertion order.
func (l *Ledger) Matches() []domain.MatchRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.MatchRecord(nil), l.matches...)
}

// Rating returns the stored rating for an account and mode.
func (l *Ledger) Rating(accountID, modeKey string) (domain.Rating, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.ratings[ratingKey{accountID: accountID, modeKey: modeKey}]
	return r, ok
}

// Badges lists the badge codes an account owns, sorted.
func (l *Ledger) Badges(accountID string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	codes := make([]string, 0, len(l.badges[accountID]))
	for code := range l.badges[accountID] {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// BadgesFor lists an account's badges, most recently earned first.
func (l *Ledger) BadgesFor(_ context.Context, accountID string) ([]domain.EarnedBadge, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.EarnedBadge, 0, len(l.badges[accountID]))
	for code, at := range l.badges[accountID] {
		out = append(out, domain.EarnedBadge{Code: code, EarnedAt: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].EarnedAt.After(out[j].EarnedAt)
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func hasAccount(record domain.MatchRecord, accountID string) bool {
	for _, p := range record.Participants {
		if p.AccountID != nil && *p.AccountID == accountID {
			return true
		}
	}
	return false
}
