package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"dinory-ai/internal/ai"
	"dinory-ai/internal/models"
)

const dinoSystemPrompt = `당신은 아이들을 위한 친절하고 따뜻한 AI 친구 '디노'입니다.
다음 가이드라인을 따라주세요:

1. 항상 반말을 사용하고, 친근하게 대화하세요 (예: "~야", "~니?", "~어")
2. 아이의 감정을 이해하고 공감해주세요
3. 긍정적이고 교육적인 내용을 전달하세요
4. 복잡한 개념은 쉽게 설명해주세요
5. 아이가 궁금해하는 것에 대해 적극적으로 답변하세요
6. 안전하고 건전한 대화를 유지하세요
7. 짧고 간결하게 대화하세요 (1-3문장)`

const chatFallbackReply = "죄송해요, 잠시 후에 다시 이야기해요!"

var fallbackChatChoices = []string{"더 알려줘", "다른 이야기"}

// storyContext is the completed-story information bound to a chat session.
type storyContext struct {
	StoryTitle string
	StoryID    string
	Abilities  map[string]int
}

// chatTurn is one in-session exchange kept for prompt context.
type chatTurn struct {
	Role    string
	Content string
}

// StoryCompletionChat is the payload starting a chat from a finished story.
type StoryCompletionChat struct {
	SessionID  int64
	ChildID    int64
	ChildName  string
	StoryID    string
	StoryTitle string
	Abilities  map[string]int
	Choices    []models.ChoiceRecord
}

// ChatService generates memory-augmented replies in the Dino persona.
// In-session history is volatile; long-term memory comes from the
// retriever on every turn.
type ChatService struct {
	ai     ai.Client
	memory *MemoryRetriever
	logger *zap.Logger

	mu      sync.Mutex
	history map[int64][]chatTurn
	stories map[int64]storyContext
}

// NewChatService creates a chat service over the collaborators.
func NewChatService(aiClient ai.Client, memory *MemoryRetriever, logger *zap.Logger) *ChatService {
	return &ChatService{
		ai:      aiClient,
		memory:  memory,
		logger:  logger.Named("ChatService"),
		history: make(map[int64][]chatTurn),
		stories: make(map[int64]storyContext),
	}
}

// Chat produces a reply to the child's message. Generation failures are
// absorbed into a fixed apology line.
func (s *ChatService) Chat(ctx context.Context, sessionID, childID int64, message string) string {
	s.appendTurn(sessionID, chatTurn{Role: "user", Content: message})

	systemPrompt := s.buildSystemPrompt(ctx, sessionID, childID, message)

	messages := []ai.Message{{Role: "system", Content: systemPrompt}}
	for _, turn := range s.turns(sessionID) {
		messages = append(messages, ai.Message{Role: turn.Role, Content: turn.Content})
	}

	reply, err := s.ai.Generate(ctx, messages, ai.GenerationParams{
		Temperature: ai.Temp(0.7),
		MaxTokens:   ai.MaxTok(200),
	})
	if err != nil {
		if s.ai.Enabled() {
			s.logger.Warn("Chat generation failed", zap.Int64("session_id", sessionID), zap.Error(err))
		}
		return chatFallbackReply
	}

	s.appendTurn(sessionID, chatTurn{Role: "assistant", Content: reply})
	return reply
}

func (s *ChatService) buildSystemPrompt(ctx context.Context, sessionID, childID int64, currentMessage string) string {
	var b strings.Builder
	b.WriteString(dinoSystemPrompt)

	if story, ok := s.storyContext(sessionID); ok {
		fmt.Fprintf(&b, `

**동화 정보:**
- 동화 제목: '%s'
- 획득한 능력치:
%s

**중요 지침:**
- 아이가 "능력치", "능력", "스탯", "얻은 것" 등을 물어보면 위 능력치 정보를 정확히 알려주세요
- 동화 내용과 연관지어 대화하세요`, story.StoryTitle, formatAbilityLines(story.Abilities))
	}

	if childID > 0 {
		memoryContext := s.memory.GetRelevantContext(ctx, currentMessage, childID, sessionID)
		if memoryContext.Summary != "" {
			fmt.Fprintf(&b, `

**아이의 기억 (과거 기록):**
%s

**대화 지침:**
- 아이가 과거에 읽은 동화나 이전 대화를 물어보면 위 기록을 참고하세요
- "지난번에 뭐 읽었어?", "전에 무슨 얘기했지?" 같은 질문에 답변하세요
- 자연스럽게 과거 경험을 언급하며 대화를 이어가세요`, memoryContext.Summary)
		}
	}

	b.WriteString(`

**대화 가이드라인:**
1. 반말로 친근하게 대화하세요 (예: "~야", "~니?", "~어")
2. 아이의 감정을 이해하고 격려해주세요
3. 짧고 간결하게 1-2문장으로 대화하세요
4. 이모지를 적절히 사용하세요 (😊, 💙, ✨)
5. 아이의 생각과 감정을 더 이끌어내는 질문을 하세요`)

	return b.String()
}

// InitFromStory starts a chat session right after a story completion and
// returns Dino's opening message. A reused session id starts over: the
// previous transcript is dropped so old turns do not leak into the new
// story's prompt.
func (s *ChatService) InitFromStory(ctx context.Context, req StoryCompletionChat) string {
	s.mu.Lock()
	delete(s.history, req.SessionID)
	s.stories[req.SessionID] = storyContext{
		StoryTitle: req.StoryTitle,
		StoryID:    req.StoryID,
		Abilities:  req.Abilities,
	}
	s.mu.Unlock()

	prompt := fmt.Sprintf(`당신은 아이들을 위한 친절하고 따뜻한 AI 친구 '디노'입니다.

아이 '%s'가 방금 '%s' 동화를 완료했습니다.

**획득한 능력치:**
%s

**중요 지침:**
- 아이가 "능력치", "능력", "스탯", "얻은 것" 등을 물어보면 위 능력치 정보를 정확히 알려주세요
- 동화 내용과 연관지어 대화하세요

**첫 메시지 작성 시:**
- 동화가 어땠는지 먼저 물어보세요
- 동화 제목을 언급하지 말고 자연스럽게 "동화"라고 표현하세요
- 아이의 기분이나 생각을 물어보세요
- 반말로 짧게 1-2문장, 이모지를 적절히 사용하세요`, req.ChildName, req.StoryTitle, formatAbilityLines(req.Abilities))

	firstMessage, err := s.ai.Generate(ctx, []ai.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: "동화를 다 봤어요"},
	}, ai.GenerationParams{Temperature: ai.Temp(0.8), MaxTokens: ai.MaxTok(150)})
	if err != nil {
		if s.ai.Enabled() {
			s.logger.Warn("First message generation failed", zap.Int64("session_id", req.SessionID), zap.Error(err))
		}
		firstMessage = fmt.Sprintf("%s야, 동화 어땠어? 재미있었니? 지금 기분이 어때? 😊", req.ChildName)
	}

	s.appendTurn(req.SessionID, chatTurn{Role: "assistant", Content: firstMessage})
	return firstMessage
}

// GenerateChoices proposes 2-3 short reply options for the child plus
// Dino's read of the current emotion. Fallback is a canned pair.
func (s *ChatService) GenerateChoices(ctx context.Context, sessionID int64) ([]string, string) {
	turns := s.turns(sessionID)
	if len(turns) > 3 {
		turns = turns[len(turns)-3:]
	}
	var contextLines []string
	for _, turn := range turns {
		speaker := "AI"
		if turn.Role == "user" {
			speaker = "사용자"
		}
		contextLines = append(contextLines, fmt.Sprintf("%s: %s", speaker, turn.Content))
	}

	prompt := fmt.Sprintf(`대화 맥락:
%s

위 대화를 바탕으로:
1. 아이가 선택할 수 있는 자연스러운 대화 선택지 2-3개를 생성해주세요
2. 각 선택지는 짧고 간단해야 합니다 (5-10자)
3. 선택지는 대화를 이어가는 데 도움이 되어야 합니다
4. 현재 아이의 감정을 다음 중 하나로 판단해주세요: happy, sad, angry, neutral

응답 형식 (JSON):
{
    "choices": ["선택지1", "선택지2", "선택지3"],
    "emotion": "감정"
}`, strings.Join(contextLines, "\n"))

	raw, err := s.ai.Generate(ctx, []ai.Message{
		{Role: "system", Content: "당신은 아이와의 대화를 돕는 AI입니다. JSON 형식으로만 응답하세요."},
		{Role: "user", Content: prompt},
	}, ai.GenerationParams{Temperature: ai.Temp(0.7), MaxTokens: ai.MaxTok(200), JSONMode: true})
	if err == nil {
		var parsed struct {
			Choices []string `json:"choices"`
			Emotion string   `json:"emotion"`
		}
		if decodeErr := decodeModelJSON(raw, &parsed); decodeErr == nil && len(parsed.Choices) > 0 {
			emotion := parsed.Emotion
			if emotion == "" {
				emotion = "neutral"
			}
			if len(parsed.Choices) > 3 {
				parsed.Choices = parsed.Choices[:3]
			}
			return parsed.Choices, emotion
		}
	}

	if s.ai.Enabled() {
		s.logger.Warn("Choice generation failed, using canned choices", zap.Int64("session_id", sessionID))
	}
	return append([]string(nil), fallbackChatChoices...), "neutral"
}

// ClearHistory drops the in-session history and story context.
func (s *ChatService) ClearHistory(sessionID int64) {
	s.mu.Lock()
	delete(s.history, sessionID)
	delete(s.stories, sessionID)
	s.mu.Unlock()
}

func (s *ChatService) appendTurn(sessionID int64, turn chatTurn) {
	s.mu.Lock()
	s.history[sessionID] = append(s.history[sessionID], turn)
	s.mu.Unlock()
}

func (s *ChatService) turns(sessionID int64) []chatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chatTurn(nil), s.history[sessionID]...)
}

func (s *ChatService) storyContext(sessionID int64) (storyContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[sessionID]
	return story, ok
}

// formatAbilityLines renders English-keyed ability totals for prompts.
func formatAbilityLines(abilities map[string]int) string {
	var lines []string
	for _, ability := range models.AllAbilities {
		points := abilities[ability.EnglishName()]
		if points > 0 {
			lines = append(lines, fmt.Sprintf("  * %s: +%d점", ability, points))
		} else {
			lines = append(lines, fmt.Sprintf("  * %s: 0점", ability))
		}
	}
	return strings.Join(lines, "\n")
}
