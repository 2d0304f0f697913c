// Package content holds the built-in question bank.
//
// Every grade of both subjects carries 40 questions split across two semesters,
// with unit codes of the form M<grade>-<semester>-<unit> and E<grade>-<semester>-<unit>.
package content

import (
	"fmt"
	"sort"

	"quiz-duel-service/internal/domain"
)

const perGrade = 40

// Bank returns a freshly built copy of the full question bank keyed by category.
func Bank() map[domain.Category][]domain.Question {
	bank := make(map[domain.Category][]domain.Question, 12)
	for grade := 1; grade <= 6; grade++ {
		bank[domain.Category{Subject: domain.SubjectMath, Grade: grade}] = mathGrade(grade)
		bank[domain.Category{Subject: domain.SubjectEnglish, Grade: grade}] = englishGrade(grade)
	}
	return bank
}

// Categories lists the bank categories in a stable order.
func Categories() []domain.Category {
	bank := Bank()
	out := make([]domain.Category, 0, len(bank))
	for c := range bank {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		return out[i].Grade < out[j].Grade
	})
	return out
}

type builder struct {
	prefix string
	grade  int
	out    []domain.Question
}

func newBuilder(prefix string, grade int) *builder {
	return &builder{prefix: prefix, grade: grade, out: make([]domain.Question, 0, perGrade)}
}

func (b *builder) full() bool { return len(b.out) >= perGrade }

func (b *builder) add(prompt, answer string, semester, unit int, kind domain.AnswerKind, tags ...string) {
	if b.full() {
		return
	}
	b.out = append(b.out, domain.Question{
		ID:       fmt.Sprintf("%s%d-%03d", lower(b.prefix), b.grade, len(b.out)+1),
		Prompt:   prompt,
		Answer:   answer,
		Unit:     fmt.Sprintf("%s%d-%d-%02d", b.prefix, b.grade, semester, unit),
		Semester: semester,
		Tags:     tags,
		Kind:     kind,
	})
}

func lower(prefix string) string {
	if prefix == "M" {
		return "m"
	}
	return "e"
}
