package content

import (
	"fmt"

	"quiz-duel-service/internal/domain"
)

type word struct {
	ko, en string
	tags   []string
}

func w(ko, en string, tags ...string) word {
	return word{ko: ko, en: en, tags: append([]string{"vocab"}, tags...)}
}

var vocabulary = map[int][]word{
	1: {
		w("사과", "apple", "fruit"), w("고양이", "cat", "animal"), w("개", "dog", "animal"), w("물", "water", "nature"),
		w("책", "book", "school"), w("연필", "pencil", "school"), w("하나", "one", "number"), w("둘", "two", "number"),
		w("셋", "three", "number"), w("빨간색", "red", "color"), w("파란색", "blue", "color"), w("노란색", "yellow", "color"),
		w("초록색", "green", "color"), w("엄마", "mom", "family"), w("아빠", "dad", "family"), w("집", "house", "place"),
		w("문", "door", "object"), w("컵", "cup", "object"), w("모자", "hat", "clothing"), w("가방", "bag", "object"),
	},
	2: {
		w("토끼", "rabbit", "animal"), w("거북이", "turtle", "animal"), w("호랑이", "tiger", "animal"), w("사자", "lion", "animal"),
		w("원숭이", "monkey", "animal"), w("바나나", "banana", "fruit"), w("포도", "grape", "fruit"), w("딸기", "strawberry", "fruit"),
		w("학교", "school", "place"), w("선생님", "teacher", "people"), w("친구", "friend", "people"), w("봄", "spring", "season"),
		w("여름", "summer", "season"), w("가을", "fall", "season"), w("겨울", "winter", "season"), w("월요일", "monday", "day"),
		w("일요일", "sunday", "day"), w("책상", "desk", "object"), w("의자", "chair", "object"), w("창문", "window", "object"),
	},
	3: {
		w("도서관", "library", "place"), w("병원", "hospital", "place"), w("공항", "airport", "place"), w("식당", "restaurant", "place"),
		w("우산", "umbrella", "object"), w("지우개", "eraser", "school"), w("가위", "scissors", "object"), w("거울", "mirror", "object"),
		w("수요일", "wednesday", "day"), w("목요일", "thursday", "day"), w("금요일", "friday", "day"), w("토요일", "saturday", "day"),
		w("1월", "january", "month"), w("3월", "march", "month"), w("8월", "august", "month"), w("12월", "december", "month"),
		w("기린", "giraffe", "animal"), w("펭귄", "penguin", "animal"), w("돌고래", "dolphin", "animal"), w("다람쥐", "squirrel", "animal"),
	},
	4: {
		w("아침", "breakfast", "food"), w("점심", "lunch", "food"), w("저녁", "dinner", "food"), w("시간", "time"),
		w("날씨", "weather"), w("사과", "apple", "fruit"), w("오렌지", "orange", "fruit"), w("포크", "fork", "object"),
		w("숟가락", "spoon", "object"), w("접시", "plate", "object"), w("우유", "milk", "drink"), w("물", "water", "drink"),
		w("빨강", "red", "color"), w("파랑", "blue", "color"), w("초록", "green", "color"), w("노랑", "yellow", "color"),
		w("아름다운", "beautiful", "adj"), w("빠른", "fast", "adj"), w("느린", "slow", "adj"), w("조용한", "quiet", "adj"),
	},
	5: {
		w("환경", "environment"), w("미래", "future"), w("과학", "science"), w("역사", "history"),
		w("중요한", "important", "adj"), w("필요한", "necessary", "adj"), w("다른", "different", "adj"), w("비슷한", "similar", "adj"),
		w("문제", "problem"), w("해결", "solution"), w("연습", "practice"), w("경험", "experience"),
		w("선택", "choice"), w("계획", "plan"), w("여행", "travel"), w("건강", "health"),
		w("에너지", "energy"), w("인터넷", "internet"), w("기술", "technology"), w("안전", "safety"),
	},
	6: {
		w("정확한", "accurate", "adj"), w("가능한", "possible", "adj"), w("불가능한", "impossible", "adj"), w("정직한", "honest", "adj"),
		w("용기", "courage"), w("성공", "success"), w("실패", "failure"), w("목표", "goal"),
		w("도전", "challenge"), w("결과", "result"), w("관계", "relationship"), w("의견", "opinion"),
		w("토론", "discussion"), w("공정한", "fair", "adj"), w("불공정한", "unfair", "adj"), w("책임", "responsibility"),
		w("기회", "opportunity"), w("발명", "invention"), w("발견", "discovery"), w("지식", "knowledge"),
	},
}

// englishGrade cycles the grade's word list until the grade is full; the first
// half lands in semester 1.
func englishGrade(grade int) []domain.Question {
	b := newBuilder("E", grade)
	words := vocabulary[grade]
	for !b.full() {
		for _, item := range words {
			sem := 1
			if len(b.out) >= perGrade/2 {
				sem = 2
			}
			b.add(fmt.Sprintf("'%s'를 영어로 쓰세요", item.ko), item.en, sem, 1, domain.KindLexical, item.tags...)
		}
	}
	return b.out
}
