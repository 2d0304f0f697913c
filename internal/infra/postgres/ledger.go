package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-duel-service/internal/domain"
)

// Ledger persists accounts, match records, ratings and badges. It implements
// app.Ledger and app.Standings.
type Ledger struct {
	db    *bun.DB
	clock func() time.Time
}

func NewLedger(db *bun.DB) *Ledger {
	return &Ledger{db: db, clock: time.Now}
}

func (l *Ledger) UpsertAccount(ctx context.Context, account domain.Account) error {
	m := &accountModel{
		ID:        account.ID,
		Username:  account.Username,
		Nickname:  account.Nickname,
		UpdatedAt: l.clock(),
	}
	_, err := l.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("nickname = EXCLUDED.nickname").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", account.ID, err)
	}
	return nil
}

func (l *Ledger) CreateMatchRecord(ctx context.Context, record domain.MatchRecord) error {
	if _, err := l.db.NewInsert().Model(newMatchRecordModel(record)).Exec(ctx); err != nil {
		return fmt.Errorf("insert match record %s: %w", record.ID, err)
	}
	return nil
}

// UpsertRating adds delta to the (account, mode) row in a single statement.
func (l *Ledger) UpsertRating(ctx context.Context, accountID, modeKey string, delta domain.RatingDelta) (domain.Rating, error) {
	m := &ratingModel{
		AccountID:   accountID,
		ModeKey:     modeKey,
		GamesPlayed: delta.Games,
		Wins:        delta.Wins,
		Losses:      delta.Losses,
		UpdatedAt:   l.clock(),
	}
	_, err := l.db.NewInsert().Model(m).
		On("CONFLICT (account_id, mode_key) DO UPDATE").
		Set("games_played = r.games_played + EXCLUDED.games_played").
		Set("wins = r.wins + EXCLUDED.wins").
		Set("losses = r.losses + EXCLUDED.losses").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.Rating{}, fmt.Errorf("upsert rating %s/%s: %w", accountID, modeKey, err)
	}
	return m.rating(), nil
}

// UpdateStreak bumps or resets accounts.win_streak in place. A missing account
// row is an error since UpsertAccount always runs first.
func (l *Ledger) UpdateStreak(ctx context.Context, accountID string, won bool) (int, error) {
	var streak int
	err := l.db.NewUpdate().
		Model((*accountModel)(nil)).
		Set("win_streak = CASE WHEN ? THEN a.win_streak + 1 ELSE 0 END", won).
		Where("a.id = ?", accountID).
		Returning("win_streak").
		Scan(ctx, &streak)
	if err != nil {
		return 0, fmt.Errorf("update streak %s: %w", accountID, err)
	}
	return streak, nil
}

// GrantBadgeOnce reports whether the badge was newly granted.
func (l *Ledger) GrantBadgeOnce(ctx context.Context, accountID, code string) (bool, error) {
	res, err := l.db.NewInsert().
		Model(&userBadgeModel{AccountID: accountID, BadgeCode: code, GrantedAt: l.clock()}).
		On("CONFLICT (account_id, badge_code) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("grant badge %s to %s: %w", code, accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Leaderboard ranks a mode by wins descending, then games played ascending.
func (l *Ledger) Leaderboard(ctx context.Context, modeKey string, limit int) ([]domain.LeaderboardEntry, error) {
	var rows []leaderboardRow
	q := l.db.NewSelect().
		TableExpr("ratings AS r").
		ColumnExpr("r.account_id, a.username, a.nickname, r.games_played, r.wins, r.losses").
		Join("LEFT JOIN accounts AS a ON a.id = r.account_id").
		Where("r.mode_key = ?", modeKey).
		OrderExpr("r.wins DESC, r.games_played ASC, r.account_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("leaderboard %s: %w", modeKey, err)
	}

	out := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.LeaderboardEntry{
			Account:     domain.Account{ID: r.AccountID, Username: r.Username, Nickname: r.Nickname},
			GamesPlayed: r.GamesPlayed,
			Wins:        r.Wins,
			Losses:      r.Losses,
		})
	}
	return out, nil
}

// RatingsFor returns an account's ratings, most recently updated first.
func (l *Ledger) RatingsFor(ctx context.Context, accountID string) ([]domain.Rating, error) {
	var rows []ratingModel
	err := l.db.NewSelect().Model(&rows).
		Where("r.account_id = ?", accountID).
		OrderExpr("r.updated_at DESC, r.mode_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("ratings for %s: %w", accountID, err)
	}
	out := make([]domain.Rating, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.rating())
	}
	return out, nil
}

// MatchesFor returns the newest records an account took part in.
func (l *Ledger) MatchesFor(ctx context.Context, accountID string, limit int) ([]domain.MatchRecord, error) {
	filter, err := json.Marshal([]map[string]string{{"accountId": accountID}})
	if err != nil {
		return nil, err
	}
	var rows []matchRecordModel
	q := l.db.NewSelect().Model(&rows).
		Where("m.participants @> ?::jsonb", string(filter)).
		OrderExpr("m.created_at DESC, m.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("matches for %s: %w", accountID, err)
	}
	out := make([]domain.MatchRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

// BadgesFor lists an account's badges, most recently earned first.
func (l *Ledger) BadgesFor(ctx context.Context, accountID string) ([]domain.EarnedBadge, error) {
	var rows []userBadgeModel
	err := l.db.NewSelect().Model(&rows).
		Where("b.account_id = ?", accountID).
		OrderExpr("b.granted_at DESC, b.badge_code ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("badges for %s: %w", accountID, err)
	}
	out := make([]domain.EarnedBadge, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.EarnedBadge{Code: r.BadgeCode, EarnedAt: r.GrantedAt})
	}
	return out, nil
}

// SeedQuestions upserts a question bank into the questions table and returns
// the number of rows written.
func SeedQuestions(ctx context.Context, db bun.IDB, bank map[domain.Category][]domain.Question) (int, error) {
	var rows []questionModel
	for category, pool := range bank {
		for _, q := range pool {
			rows = append(rows, questionModel{
				ID:       q.ID,
				Subject:  category.Subject,
				Grade:    category.Grade,
				Semester: q.Semester,
				UnitCode: q.Unit,
				Prompt:   q.Prompt,
				Answer:   q.Answer,
				Kind:     string(q.Kind),
				Tags:     q.Tags,
			})
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}

	_, err := db.NewInsert().Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("subject = EXCLUDED.subject").
		Set("grade = EXCLUDED.grade").
		Set("semester = EXCLUDED.semester").
		Set("unit_code = EXCLUDED.unit_code").
		Set("prompt = EXCLUDED.prompt").
		Set("answer = EXCLUDED.answer").
		Set("kind = EXCLUDED.kind").
		Set("tags = EXCLUDED.tags").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed questions: %w", err)
	}
	return len(rows), nil
}
