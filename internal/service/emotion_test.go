package service_test

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"dinory-ai/internal/service"
)

func newEmotionAnalyzer() *service.EmotionAnalyzer {
	return service.NewEmotionAnalyzer(rand.New(rand.NewSource(1)))
}

func TestAnalyzeEmotion(t *testing.T) {
	analyzer := newEmotionAnalyzer()

	cases := []struct {
		message string
		want    string
	}{
		{"오늘 정말 행복해요", "happy"},
		{"친구랑 놀아서 신나요", "happy"},
		{"강아지가 아파서 슬프고 눈물이 나요", "sad"},
		{"동생 때문에 너무 화나요", "angry"},
		{"천둥 소리가 무서워요", "scared"},
		{"내일 소풍이 너무 기대돼요", "excited"},
		{"오늘 많이 뛰어서 피곤해요", "tired"},
		{"공룡은 뭘 먹어요?", "neutral"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, analyzer.AnalyzeEmotion(tc.message), "message: %s", tc.message)
	}
}

func TestGreeting(t *testing.T) {
	analyzer := newEmotionAnalyzer()

	greeting := analyzer.Greeting()

	assert.NotEmpty(t, greeting)
}

func TestAnalyzerConcurrentUse(t *testing.T) {
	analyzer := newEmotionAnalyzer()

	// One analyzer serves all request goroutines; line picking must be safe
	// under the race detector.
	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.NotEmpty(t, analyzer.Greeting())
				assert.NotEmpty(t, analyzer.EmpathyResponse("happy"))
				assert.NotEmpty(t, analyzer.FollowupQuestion("sad"))
			}
		}()
	}
	wg.Wait()
}

func TestEmpathyResponse(t *testing.T) {
	analyzer := newEmotionAnalyzer()

	t.Run("Known emotion gets an empathetic line", func(t *testing.T) {
		assert.NotEmpty(t, analyzer.EmpathyResponse("sad"))
	})

	t.Run("Unknown emotion gets the neutral acknowledgement", func(t *testing.T) {
		assert.Equal(t, "네, 그렇군요!", analyzer.EmpathyResponse("confused"))
	})
}

func TestFollowupQuestion(t *testing.T) {
	analyzer := newEmotionAnalyzer()

	t.Run("Known emotion gets a matching question", func(t *testing.T) {
		assert.NotEmpty(t, analyzer.FollowupQuestion("angry"))
	})

	t.Run("Unknown emotion falls back to the neutral pool", func(t *testing.T) {
		assert.NotEmpty(t, analyzer.FollowupQuestion("scared"))
	})
}
