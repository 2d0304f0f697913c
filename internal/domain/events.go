package domain

// Outbound event types.
const (
	EventRoomState    = "room:state"
	EventCountdown    = "game:countdown"
	EventQuestions    = "game:questions"
	EventAnswerAck    = "game:answer"
	EventFinished     = "game:finish"
	EventBadgeGranted = "badge:granted"
	EventQueueMatched = "queue:matched"
	EventError        = "error:toast"
)

// Event is one outbound message for a connection.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// CountdownPayload announces the server-authoritative start instant (unix ms).
type CountdownPayload struct {
	StartAt int64 `json:"startAt"`
}

// QuestionsPayload carries the prompt-only question list of a play cycle.
type QuestionsPayload struct {
	Seed         uint32   `json:"seed"`
	Questions    []Prompt `json:"questions"`
	TimeLimitSec int      `json:"timeLimitSec"`
}

// ScoreView is one participant's final score in a finish event.
type ScoreView struct {
	Correct     int    `json:"correct"`
	Answered    int    `json:"answered"`
	CompletedAt *int64 `json:"completedAt"`
}

// FinishPayload announces the end of a play cycle.
type FinishPayload struct {
	WinnerID *string              `json:"winnerId"`
	Reason   FinishReason         `json:"reason"`
	Scores   map[string]ScoreView `json:"scores"`
}

// BadgePayload notifies a participant of a newly earned badge.
type BadgePayload struct {
	Code string `json:"code"`
}

// QueueMatchedPayload tells a queued connection which room it was paired into.
type QueueMatchedPayload struct {
	Code string `json:"code"`
}

// ErrorPayload reports a client protocol error.
type ErrorPayload struct {
	Message string `json:"message"`
}
