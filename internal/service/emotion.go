package service

import (
	"math/rand"
	"strings"
	"sync"
)

// EmotionAnalyzer does deterministic keyword emotion detection and serves
// the canned greeting/empathy/follow-up lines. No collaborator involved.
// rand.Rand is not safe for concurrent use, so line picking goes through
// the mutex; one analyzer serves all request goroutines.
type EmotionAnalyzer struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewEmotionAnalyzer creates an analyzer with the given random source for
// line picking. Pass a seeded source in tests.
func NewEmotionAnalyzer(r *rand.Rand) *EmotionAnalyzer {
	return &EmotionAnalyzer{rand: r}
}

var greetings = []string{
	"안녕하세요! 오늘 하루는 어땠나요?",
	"만나서 반가워요! 무슨 이야기를 하고 싶나요?",
	"안녕! 오늘은 어떤 재미있는 일이 있었나요?",
	"반가워요! 궁금한 게 있으면 무엇이든 물어보세요!",
	"안녕하세요! 함께 즐거운 이야기를 나눠봐요!",
}

// emotionKeywords is ordered: the first emotion whose keyword appears wins.
var emotionKeywords = []struct {
	emotion  string
	keywords []string
}{
	{"happy", []string{"기쁘", "행복", "좋아", "신나", "재밌", "웃겨", "즐거"}},
	{"sad", []string{"슬프", "우울", "속상", "아쉽", "눈물", "힘들"}},
	{"angry", []string{"화나", "짜증", "싫어", "미워", "분해"}},
	{"scared", []string{"무서", "두려", "겁나", "불안"}},
	{"excited", []string{"설레", "기대", "궁금", "신기"}},
	{"tired", []string{"피곤", "지쳐", "힘들", "졸려"}},
}

var empathyResponses = map[string][]string{
	"happy": {
		"정말 좋은 일이네요! 저도 기뻐요!",
		"와! 정말 기분 좋은 일이에요!",
		"함께 기뻐하니 더 좋네요!",
	},
	"sad": {
		"속상했겠어요. 괜찮으신가요?",
		"힘든 일이 있었나 봐요. 제가 들어줄게요.",
		"슬플 때는 이야기하면 조금 나아져요.",
	},
	"angry": {
		"많이 화가 났나 봐요. 무슨 일이 있었어요?",
		"화가 나는 건 당연해요. 천천히 이야기해봐요.",
		"짜증나는 일이 있었군요. 제가 들어줄게요.",
	},
	"scared": {
		"무서웠겠어요. 이제 괜찮아요.",
		"걱정하지 마세요. 함께 있을게요.",
		"두려운 마음이 들 때는 깊게 숨을 쉬어봐요.",
	},
	"excited": {
		"정말 설레는 일이네요!",
		"기대되는 일이 있나 봐요! 더 이야기해줘요!",
		"와! 정말 신나는 일이에요!",
	},
	"tired": {
		"많이 피곤하신가 봐요. 조금 쉬어요.",
		"힘든 하루였나 봐요. 수고했어요!",
		"무리하지 말고 푹 쉬세요.",
	},
}

var followupQuestions = map[string][]string{
	"happy": {
		"어떤 일이 있었는지 더 자세히 들려주실래요?",
		"그래서 어떻게 됐어요?",
		"정말 멋진 일이네요! 다른 재미있는 일도 있었나요?",
	},
	"sad": {
		"무슨 일이 있었는지 이야기하고 싶으세요?",
		"제가 도와줄 수 있는 일이 있을까요?",
		"이야기를 나누면 조금 나아질 거예요.",
	},
	"angry": {
		"어떤 일 때문에 화가 났어요?",
		"속상한 일을 이야기해보면 어떨까요?",
		"무슨 일이 있었는지 들려주세요.",
	},
	"neutral": {
		"오늘 하루는 어땠나요?",
		"더 이야기하고 싶은 게 있나요?",
		"궁금한 게 있으면 물어보세요!",
	},
}

func (a *EmotionAnalyzer) pick(n int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rand.Intn(n)
}

// Greeting returns a welcome line for a new chat session.
func (a *EmotionAnalyzer) Greeting() string {
	return greetings[a.pick(len(greetings))]
}

// AnalyzeEmotion maps a message to one of the known emotion tags,
// defaulting to "neutral".
func (a *EmotionAnalyzer) AnalyzeEmotion(message string) string {
	lower := strings.ToLower(message)
	for _, entry := range emotionKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return entry.emotion
			}
		}
	}
	return "neutral"
}

// EmpathyResponse returns an empathetic line for the detected emotion.
func (a *EmotionAnalyzer) EmpathyResponse(emotion string) string {
	responses, ok := empathyResponses[emotion]
	if !ok {
		return "네, 그렇군요!"
	}
	return responses[a.pick(len(responses))]
}

// FollowupQuestion returns a conversation-continuing question.
func (a *EmotionAnalyzer) FollowupQuestion(emotion string) string {
	questions, ok := followupQuestions[emotion]
	if !ok {
		questions = followupQuestions["neutral"]
	}
	return questions[a.pick(len(questions))]
}
