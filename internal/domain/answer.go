package domain

import "strings"

// NormalizeAnswer trims raw input and caps it at maxLen runes.
func NormalizeAnswer(raw string, maxLen int) string {
	s := strings.TrimSpace(raw)
	if maxLen > 0 {
		if r := []rune(s); len(r) > maxLen {
			s = strings.TrimSpace(string(r[:maxLen]))
		}
	}
	return s
}

// Matches compares a raw submission against the answer key.
func (q Question) Matches(raw string, maxLen int) bool {
	got := NormalizeAnswer(raw, maxLen)
	want := strings.TrimSpace(q.Answer)
	if got == "" {
		return false
	}
	switch q.Kind {
	case KindLexical:
		return strings.ToLower(got) == strings.ToLower(want)
	default:
		return got == want
	}
}

// View strips the answer key.
func (q Question) View() Prompt {
	return Prompt{ID: q.ID, Prompt: q.Prompt}
}
