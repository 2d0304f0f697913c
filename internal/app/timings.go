package app

import "time"

// Timings groups every gameplay constant so tests can override them.
type Timings struct {
	// LeadTime separates the all-ready trigger from the first accepted answer.
	LeadTime time.Duration
	// Debounce is the minimum gap between two submissions of one participant.
	Debounce time.Duration
	// MaxAnswerLen caps raw answers, in runes, before comparison.
	MaxAnswerLen int
	// Budgets maps a total question count to the wall-clock budget of the whole play cycle.
	Budgets map[int]time.Duration
	// PerQuestion is used for counts missing from Budgets.
	PerQuestion time.Duration
	// RecorderQueue bounds the outcome recorder backlog.
	RecorderQueue int
}

func DefaultTimings() Timings {
	return Timings{
		LeadTime:      3 * time.Second,
		Debounce:      250 * time.Millisecond,
		MaxAnswerLen:  32,
		Budgets:       map[int]time.Duration{10: 60 * time.Second, 20: 120 * time.Second},
		PerQuestion:   6 * time.Second,
		RecorderQueue: 64,
	}
}

// Budget returns the time budget for a cycle of total questions.
func (t Timings) Budget(total int) time.Duration {
	if d, ok := t.Budgets[total]; ok {
		return d
	}
	return t.PerQuestion * time.Duration(total)
}
