package content

import (
	"fmt"

	"quiz-duel-service/internal/domain"
)

func mathGrade(grade int) []domain.Question {
	b := newBuilder("M", grade)
	num := func(prompt string, answer, semester, unit int, tags ...string) {
		b.add(prompt, fmt.Sprint(answer), semester, unit, domain.KindNumeric, tags...)
	}

	switch grade {
	case 1:
		for _, a := range []int{1, 2, 6, 7} {
			sem := 1
			if a > 5 {
				sem = 2
			}
			for c := 1; c <= 10; c++ {
				num(fmt.Sprintf("%d + %d = ?", a, c), a+c, sem, sem, "add")
			}
		}
	case 2:
		for a := 12; len(b.out) < 20; a += 2 {
			c := 11 + a%9
			num(fmt.Sprintf("%d + %d = ?", a, c), a+c, 1, 1, "add")
		}
		for a := 30; !b.full(); a += 3 {
			c := min(a-1, 7+a%13)
			num(fmt.Sprintf("%d - %d = ?", a, c), a-c, 2, 1, "sub")
		}
	case 3:
		for a := 2; a <= 9 && len(b.out) < 28; a++ {
			for c := 2; c <= 9 && len(b.out) < 28; c++ {
				num(fmt.Sprintf("%d × %d = ?", a, c), a*c, 1, 1, "mul")
			}
		}
		divisions := [][2]int{{12, 2}, {18, 3}, {20, 4}, {35, 5}, {42, 6}, {56, 7}, {48, 8}, {63, 9}, {36, 4}, {54, 6}, {72, 8}, {81, 9}}
		for _, d := range divisions {
			num(fmt.Sprintf("%d ÷ %d = ?", d[0], d[1]), d[0]/d[1], 2, 1, "div")
		}
	case 4:
		for a := 120; len(b.out) < 10; a += 3 {
			c := 100 + (a*7)%80
			num(fmt.Sprintf("%d + %d = ?", a, c), a+c, 1, 1, "add", "multi-digit")
		}
		for a := 300; len(b.out) < 20; a += 4 {
			c := 120 + (a*5)%100
			num(fmt.Sprintf("%d - %d = ?", a, c), a-c, 1, 2, "sub", "multi-digit")
		}
		for !b.full() {
			a := 12 + len(b.out)%18
			c := 3 + len(b.out)%7
			num(fmt.Sprintf("%d × %d = ?", a, c), a*c, 2, 1, "mul")
			num(fmt.Sprintf("%d ÷ %d = ?", a*c, c), a, 2, 2, "div")
		}
	case 5:
		for a := 1200; len(b.out) < 20; a += 37 {
			c := 900 + (a*11)%700
			num(fmt.Sprintf("%d + %d = ?", a, c), a+c, 1, 1, "add", "multi-digit")
		}
		// Decimals are kept in tenths so answers stay exact.
		for !b.full() {
			n := len(b.out)
			x := (10+n%30)*10 + n%10
			y := (10+n%7)*10 + (n+3)%10
			b.add(fmt.Sprintf("%s + %s = ?", tenths(x), tenths(y)), tenths(x+y), 2, 1, domain.KindNumeric, "decimal", "add")
			hi, lo := max(x, y), min(x, y)
			b.add(fmt.Sprintf("%s - %s = ?", tenths(hi), tenths(lo)), tenths(hi-lo), 2, 2, domain.KindNumeric, "decimal", "sub")
		}
	case 6:
		percents := []int{10, 20, 25, 50}
		for base := 80; len(b.out) < 20; base += 10 {
			p := percents[len(b.out)%len(percents)]
			if base*p%100 != 0 {
				continue
			}
			num(fmt.Sprintf("%d의 %d%% = ?", base, p), base*p/100, 1, 1, "percent")
		}
		for !b.full() {
			n := len(b.out)
			a, c, d := 50+n%50, 12+n%20, 3+n%7
			num(fmt.Sprintf("(%d + %d) × %d = ?", a, c, d), (a+c)*d, 2, 1, "mixed")
		}
	}
	return b.out
}

func tenths(v int) string {
	return fmt.Sprintf("%d.%d", v/10, v%10)
}
