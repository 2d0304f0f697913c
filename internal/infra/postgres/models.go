package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"quiz-duel-service/internal/domain"
)

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID       string   `bun:"id,pk"`
	Subject  string   `bun:"subject,notnull"`
	Grade    int      `bun:"grade,notnull"`
	Semester int      `bun:"semester,notnull"`
	UnitCode string   `bun:"unit_code,notnull"`
	Prompt   string   `bun:"prompt,notnull"`
	Answer   string   `bun:"answer,notnull"`
	Kind     string   `bun:"kind,notnull"`
	Tags     []string `bun:"tags,array"`
}

type accountModel struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID        string    `bun:"id,pk"`
	Username  string    `bun:"username,notnull"`
	Nickname  string    `bun:"nickname,notnull"`
	WinStreak int       `bun:"win_streak,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type matchRecordModel struct {
	bun.BaseModel `bun:"table:match_records,alias:m"`

	ID                 string                     `bun:"id,pk"`
	RoomCode           string                     `bun:"room_code,notnull"`
	ModeKey            string                     `bun:"mode_key,notnull"`
	Subject            string                     `bun:"subject,notnull"`
	Grade              int                        `bun:"grade,notnull"`
	Semester           int                        `bun:"semester,notnull"`
	TotalQuestions     int                        `bun:"total_questions,notnull"`
	Solo               bool                       `bun:"solo,notnull"`
	Seed               int64                      `bun:"seed,notnull"`
	Reason             string                     `bun:"reason,notnull"`
	WinnerAccountID    *string                    `bun:"winner_account_id"`
	CreatedByAccountID *string                    `bun:"created_by_account_id"`
	Participants       []domain.RecordParticipant `bun:"participants,type:jsonb"`
	CreatedAt          time.Time                  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type ratingModel struct {
	bun.BaseModel `bun:"table:ratings,alias:r"`

	AccountID   string    `bun:"account_id,pk"`
	ModeKey     string    `bun:"mode_key,pk"`
	GamesPlayed int       `bun:"games_played,notnull"`
	Wins        int       `bun:"wins,notnull"`
	Losses      int       `bun:"losses,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type userBadgeModel struct {
	bun.BaseModel `bun:"table:user_badges,alias:b"`

	AccountID string    `bun:"account_id,pk"`
	BadgeCode string    `bun:"badge_code,pk"`
	GrantedAt time.Time `bun:"granted_at,nullzero,notnull,default:current_timestamp"`
}

type leaderboardRow struct {
	AccountID   string `bun:"account_id"`
	Username    string `bun:"username"`
	Nickname    string `bun:"nickname"`
	GamesPlayed int    `bun:"games_played"`
	Wins        int    `bun:"wins"`
	Losses      int    `bun:"losses"`
}

func newMatchRecordModel(r domain.MatchRecord) *matchRecordModel {
	return &matchRecordModel{
		ID:                 r.ID,
		RoomCode:           r.RoomCode,
		ModeKey:            r.ModeKey,
		Subject:            r.Subject,
		Grade:              r.Grade,
		Semester:           r.Semester,
		TotalQuestions:     r.TotalQuestions,
		Solo:               r.Solo,
		Seed:               r.Seed,
		Reason:             string(r.Reason),
		WinnerAccountID:    r.WinnerAccountID,
		CreatedByAccountID: r.CreatedByAccountID,
		Participants:       r.Participants,
		CreatedAt:          r.CreatedAt,
	}
}

func (m matchRecordModel) record() domain.MatchRecord {
	return domain.MatchRecord{
		ID:                 m.ID,
		RoomCode:           m.RoomCode,
		ModeKey:            m.ModeKey,
		Subject:            m.Subject,
		Grade:              m.Grade,
		Semester:           m.Semester,
		TotalQuestions:     m.TotalQuestions,
		Solo:               m.Solo,
		Seed:               m.Seed,
		Reason:             domain.FinishReason(m.Reason),
		WinnerAccountID:    m.WinnerAccountID,
		CreatedByAccountID: m.CreatedByAccountID,
		Participants:       m.Participants,
		CreatedAt:          m.CreatedAt,
	}
}

func (m ratingModel) rating() domain.Rating {
	return domain.Rating{
		AccountID:   m.AccountID,
		ModeKey:     m.ModeKey,
		GamesPlayed: m.GamesPlayed,
		Wins:        m.Wins,
		Losses:      m.Losses,
		UpdatedAt:   m.UpdatedAt,
	}
}
