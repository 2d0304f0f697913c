package app

import "math/rand/v2"

var (
	nameAdjectives = []string{"용감한", "똑똑한", "빠른", "상냥한", "멋진", "집중하는"}
	nameAnimals    = []string{"고양이", "토끼", "호랑이", "여우", "펭귄", "돌고래"}
)

// AnonymousName picks a display name for a connection without an account.
func AnonymousName() string {
	return nameAdjectives[rand.IntN(len(nameAdjectives))] + " " + nameAnimals[rand.IntN(len(nameAnimals))]
}
