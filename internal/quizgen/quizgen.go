// Package quizgen produces reproducible question sequences from a shared seed.
//
// Every participant of a room receives the same ordered prompts because the
// permutation depends only on the pool, the filter and the seed.
package quizgen

import "quiz-duel-service/internal/domain"

// Filter narrows a pool before shuffling.
type Filter struct {
	// Semester restricts the pool to one term; 0 keeps both.
	Semester int
	// Exclude drops questions whose unit code or any tag is listed.
	Exclude []string
}

// FilterFor derives the generator filter from a mode signature.
func FilterFor(mode domain.ModeSignature) Filter {
	return Filter{Semester: mode.Semester, Exclude: mode.ExcludeUnits}
}

// Generate returns exactly count questions drawn from pool.
// A filter that empties the pool falls back to the unfiltered pool, and a count
// larger than the pool wraps around the shuffled order.
func Generate(pool []domain.Question, filter Filter, count int, seed uint32) []domain.Question {
	if count <= 0 || len(pool) == 0 {
		return nil
	}

	candidates := apply(pool, filter)
	if len(candidates) == 0 {
		candidates = append([]domain.Question(nil), pool...)
	}

	shuffle(candidates, seed)

	out := make([]domain.Question, count)
	for i := range out {
		out[i] = candidates[i%len(candidates)]
	}
	return out
}

// Prompts strips the answer keys from a generated sequence.
func Prompts(questions []domain.Question) []domain.Prompt {
	out := make([]domain.Prompt, len(questions))
	for i, q := range questions {
		out[i] = q.View()
	}
	return out
}

func apply(pool []domain.Question, filter Filter) []domain.Question {
	excluded := make(map[string]struct{}, len(filter.Exclude))
	for _, e := range filter.Exclude {
		excluded[e] = struct{}{}
	}

	out := make([]domain.Question, 0, len(pool))
	for _, q := range pool {
		if filter.Semester != 0 && q.Semester != filter.Semester {
			continue
		}
		if isExcluded(q, excluded) {
			continue
		}
		out = append(out, q)
	}
	return out
}

func isExcluded(q domain.Question, excluded map[string]struct{}) bool {
	if len(excluded) == 0 {
		return false
	}
	if _, ok := excluded[q.Unit]; ok {
		return true
	}
	for _, tag := range q.Tags {
		if _, ok := excluded[tag]; ok {
			return true
		}
	}
	return false
}

// shuffle is a Fisher–Yates pass driven by mulberry32.
func shuffle(items []domain.Question, seed uint32) {
	rng := newMulberry32(seed)
	for i := len(items) - 1; i > 0; i-- {
		j := int(rng.float() * float64(i+1))
		items[i], items[j] = items[j], items[i]
	}
}
