package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Subjects served by the content source.
const (
	SubjectMath    = "math"
	SubjectEnglish = "english"
)

// AnswerKind selects how a raw answer is compared against the key.
type AnswerKind string

const (
	// KindNumeric answers compare exactly after trimming.
	KindNumeric AnswerKind = "numeric"
	// KindLexical answers compare case-insensitively after trimming.
	KindLexical AnswerKind = "lexical"
)

// Question is an immutable prompt/answer pair with classification metadata.
// The answer never leaves the server.
type Question struct {
	ID       string     `json:"id"`
	Prompt   string     `json:"prompt"`
	Answer   string     `json:"answer"`
	Unit     string     `json:"unitCode"`
	Semester int        `json:"semester"`
	Tags     []string   `json:"tags"`
	Kind     AnswerKind `json:"kind"`
}

// Prompt is the client-facing view of a question.
type Prompt struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
}

// Category selects a question pool.
type Category struct {
	Subject string `json:"subject"`
	Grade   int    `json:"grade"`
}

func (c Category) String() string {
	return fmt.Sprintf("%s:g%d", c.Subject, c.Grade)
}

// ModeSignature is the exact-match key for matchmaking and ratings.
// Semester 0 means both semesters.
type ModeSignature struct {
	Subject        string   `json:"subject"`
	Grade          int      `json:"grade"`
	Semester       int      `json:"semester"`
	TotalQuestions int      `json:"totalQuestions"`
	ExcludeUnits   []string `json:"excludeUnitCodes,omitempty"`
}

// Category returns the pool selector of the signature.
func (m ModeSignature) Category() Category {
	return Category{Subject: m.Subject, Grade: m.Grade}
}

// Key renders the signature as a stable string, e.g. "math:g1:semall:q10".
func (m ModeSignature) Key() string {
	sem := "all"
	if m.Semester != 0 {
		sem = fmt.Sprint(m.Semester)
	}
	key := fmt.Sprintf("%s:g%d:sem%s:q%d", m.Subject, m.Grade, sem, m.TotalQuestions)
	if len(m.ExcludeUnits) > 0 {
		units := append([]string(nil), m.ExcludeUnits...)
		sort.Strings(units)
		key += ":x=" + strings.Join(units, ",")
	}
	return key
}

// Validate checks the signature against the supported content.
func (m ModeSignature) Validate() error {
	if m.Subject != SubjectMath && m.Subject != SubjectEnglish {
		return fmt.Errorf("%w: unknown subject %q", ErrInvalidConfig, m.Subject)
	}
	if m.Grade < 1 || m.Grade > 6 {
		return fmt.Errorf("%w: grade %d out of range", ErrInvalidConfig, m.Grade)
	}
	if m.Semester < 0 || m.Semester > 2 {
		return fmt.Errorf("%w: semester %d out of range", ErrInvalidConfig, m.Semester)
	}
	if m.TotalQuestions < 1 || m.TotalQuestions > 50 {
		return fmt.Errorf("%w: question count %d out of range", ErrInvalidConfig, m.TotalQuestions)
	}
	return nil
}

// RoomConfig is set at creation and may be amended until the match starts.
type RoomConfig struct {
	Mode ModeSignature `json:"mode"`
	Solo bool          `json:"solo"`
}

// Account is a durable, authenticated user reference.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

// Connection identifies one live transport connection.
type Connection struct {
	ID      string
	Name    string
	Account *Account
}

// Phase is the derived lifecycle state of a room.
type Phase string

const (
	PhaseForming    Phase = "forming"
	PhaseReadyCheck Phase = "ready-check"
	PhaseCountdown  Phase = "countdown"
	PhaseActive     Phase = "active"
	PhaseFinished   Phase = "finished"
)

// FinishReason explains why a play cycle ended.
type FinishReason string

const (
	ReasonCompleted  FinishReason = "completed"
	ReasonTimeout    FinishReason = "timeout"
	ReasonDisconnect FinishReason = "disconnect"
)

// PlayerView is a snapshot-friendly view of a participant.
type PlayerView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Authenticated bool   `json:"authenticated"`
	Ready         bool   `json:"ready"`
	Correct       int    `json:"correct"`
	Index         int    `json:"index"`
}

// RoomSnapshot captures the full public state of a room.
type RoomSnapshot struct {
	Code     string        `json:"code"`
	Phase    Phase         `json:"phase"`
	Mode     ModeSignature `json:"mode"`
	Solo     bool          `json:"solo"`
	Started  bool          `json:"started"`
	Finished bool          `json:"finished"`
	StartAt  *int64        `json:"startAt"`
	Players  []PlayerView  `json:"players"`
}

// AnswerAck is the private result of an accepted submission.
type AnswerAck struct {
	QuestionIndex int  `json:"questionIndex"`
	Correct       bool `json:"correct"`
}

// ParticipantResult is one participant's final state in a play cycle.
type ParticipantResult struct {
	ConnID       string    `json:"connId"`
	Name         string    `json:"name"`
	Account      *Account  `json:"account,omitempty"`
	Correct      int       `json:"correct"`
	Answered     int       `json:"answered"`
	LastSubmitAt time.Time `json:"lastSubmitAt"`
	CompletedAt  time.Time `json:"completedAt"`
}

// MatchSummary is the in-memory outcome of one play cycle, handed to the recorder.
type MatchSummary struct {
	MatchID        string
	RoomCode       string
	Mode           ModeSignature
	Solo           bool
	Seed           uint32
	Reason         FinishReason
	WinnerConnID   string
	StartedAt      time.Time
	FinishedAt     time.Time
	TimeBudget     time.Duration
	TotalQuestions int
	Participants   []ParticipantResult
}

// Winner returns the winning participant, if any.
func (s MatchSummary) Winner() (ParticipantResult, bool) {
	if s.WinnerConnID == "" {
		return ParticipantResult{}, false
	}
	for _, p := range s.Participants {
		if p.ConnID == s.WinnerConnID {
			return p, true
		}
	}
	return ParticipantResult{}, false
}

// RecordParticipant is the persisted form of a participant result.
type RecordParticipant struct {
	ConnID       string     `json:"connId"`
	AccountID    *string    `json:"accountId"`
	Name         string     `json:"name"`
	Correct      int        `json:"correct"`
	Answered     int        `json:"answered"`
	LastSubmitAt *time.Time `json:"lastSubmitAt"`
	CompletedAt  *time.Time `json:"completedAt"`
}

// MatchRecord is the append-only persisted snapshot of a completed play cycle.
type MatchRecord struct {
	ID                 string              `json:"id"`
	RoomCode           string              `json:"roomCode"`
	ModeKey            string              `json:"modeKey"`
	Subject            string              `json:"subject"`
	Grade              int                 `json:"grade"`
	Semester           int                 `json:"semester"`
	TotalQuestions     int                 `json:"totalQuestions"`
	Solo               bool                `json:"solo"`
	Seed               int64               `json:"seed"`
	Reason             FinishReason        `json:"reason"`
	WinnerAccountID    *string             `json:"winnerAccountId"`
	CreatedByAccountID *string             `json:"createdByAccountId"`
	Participants       []RecordParticipant `json:"participants"`
	CreatedAt          time.Time           `json:"createdAt"`
}

// Rating is the per-account, per-mode aggregate.
type Rating struct {
	AccountID   string    `json:"accountId"`
	ModeKey     string    `json:"modeKey"`
	GamesPlayed int       `json:"gamesPlayed"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RatingDelta is added to a rating row.
type RatingDelta struct {
	Games  int
	Wins   int
	Losses int
}

// RatingTotals sums ratings across modes.
type RatingTotals struct {
	GamesPlayed int `json:"gamesPlayed"`
	Wins        int `json:"wins"`
	Losses      int `json:"losses"`
}

// Badge codes granted by the outcome recorder.
const (
	BadgeFirstWin    = "FIRST_WIN"
	BadgePerfectGame = "PERFECT_GAME"
	BadgeFastFinish  = "FAST_FINISH"
	BadgeStreak3     = "STREAK_3"
)

// StreakBadgeLength is the number of consecutive duo wins that earns BadgeStreak3.
const StreakBadgeLength = 3

// EarnedBadge is a badge an account owns.
type EarnedBadge struct {
	Code     string    `json:"code"`
	EarnedAt time.Time `json:"earnedAt"`
}

// LeaderboardEntry is one ranked rating row of a mode.
type LeaderboardEntry struct {
	Account     Account `json:"user"`
	GamesPlayed int     `json:"gamesPlayed"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
}

// Totals sums ratings across modes.
func Totals(ratings []Rating) RatingTotals {
	var t RatingTotals
	for _, r := range ratings {
		t.GamesPlayed += r.GamesPlayed
		t.Wins += r.Wins
		t.Losses += r.Losses
	}
	return t
}
