package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dinory-ai/internal/ai"
	"dinory-ai/internal/models"
)

// Point tiers for ability inference. Strongest signal wins; two or more
// strong keyword hits promote to the very-good ceiling.
const (
	pointsWeak     = 8
	pointsMedium   = 10
	pointsStrong   = 12
	pointsVeryGood = 15
	customBonus    = 2
	pointsCap      = 17
)

// Classification is the result of scoring one choice text.
type Classification struct {
	IsNegative     bool               `json:"isNegative"`
	NegativeReason string             `json:"negativeReason,omitempty"`
	AbilityType    models.AbilityType `json:"abilityType,omitempty"`
	AbilityPoints  int                `json:"abilityPoints"`
	Feedback       string             `json:"feedback"`
}

// ClassifyOptions tune a single classification.
type ClassifyOptions struct {
	// Custom marks a choice the child typed themselves, which earns a
	// fixed bonus on top of the tier points.
	Custom bool
	// SceneContext is the current scene content, given to the model for
	// better inference. Unused by the deterministic path.
	SceneContext string
}

// ChoiceClassifier maps free-text choices to an ability and points. The
// negative-content screen always runs first and is always deterministic;
// ability inference prefers the model and falls back to keyword matching.
type ChoiceClassifier struct {
	ai     ai.Client
	logger *zap.Logger
}

// NewChoiceClassifier creates a classifier over the given collaborator.
func NewChoiceClassifier(aiClient ai.Client, logger *zap.Logger) *ChoiceClassifier {
	return &ChoiceClassifier{
		ai:     aiClient,
		logger: logger.Named("ChoiceClassifier"),
	}
}

// negativeTiers screens for disallowed content. Severity only changes the
// redirect message; any hit short-circuits with zero points.
var negativeTiers = []struct {
	severity string
	redirect string
	keywords []string
}{
	{
		severity: "strong",
		redirect: "그런 행동은 다른 사람을 아프게 할 수 있어요. 다른 방법을 생각해볼까요?",
		keywords: []string{"때려", "때리", "죽여", "죽이", "죽어버려", "괴롭", "발로 차", "찌를", "찔러", "불을 질러", "훔쳐", "훔치"},
	},
	{
		severity: "medium",
		redirect: "조금 더 친절한 방법이 있을 것 같아요. 같이 찾아볼까요?",
		keywords: []string{"싸울", "싸워", "뺏어", "뺏을", "놀려", "욕할", "욕해", "거짓말할", "무시할", "무시해", "버려버"},
	},
	{
		severity: "weak",
		redirect: "속상한 마음이 느껴져요. 마음을 표현하는 다른 말을 찾아볼까요?",
		keywords: []string{"바보", "멍청", "미워할", "꺼져", "저리 가"},
	},
}

// abilityKeywords drives the deterministic ability inference. Tier order
// inside each entry is strong, medium, weak.
var abilityKeywords = map[models.AbilityType][3][]string{
	models.AbilityCourage: {
		{"도전", "용감", "맞서", "극복"},
		{"무서", "두렵", "씩씩", "해낼"},
		{"먼저 나서", "시도"},
	},
	models.AbilityEmpathy: {
		{"위로", "공감", "마음을 이해"},
		{"슬퍼하", "괜찮은지", "눈물을 닦", "안아"},
		{"마음"},
	},
	models.AbilityCreativity: {
		{"새로운 방법", "상상", "발명", "아이디어"},
		{"만들어", "그려", "꾸며"},
		{"생각해"},
	},
	models.AbilityResponsibility: {
		{"책임", "약속을 지", "끝까지"},
		{"정리", "맡은", "스스로"},
		{"챙겨"},
	},
	models.AbilityFriendship: {
		{"친구를 도와", "함께 가", "손을 잡"},
		{"친구", "같이", "나눠"},
		{"놀자"},
	},
}

var tierFeedback = map[int]string{
	pointsVeryGood: "정말 멋진 선택이에요! 마음이 쑥쑥 자라고 있어요!",
	pointsStrong:   "훌륭한 선택이에요! 정말 잘했어요!",
	pointsMedium:   "좋은 선택이에요!",
	pointsWeak:     "괜찮은 선택이에요! 조금씩 해보는 거예요!",
}

// Classify scores one choice text. It never returns an error: the negative
// screen is deterministic and the ability stage degrades to keyword
// matching when the collaborator fails.
func (c *ChoiceClassifier) Classify(ctx context.Context, text string, opts ClassifyOptions) Classification {
	if negative, ok := c.screenNegative(text); ok {
		return negative
	}

	if result, err := c.classifyWithModel(ctx, text, opts); err == nil {
		return result
	} else if c.ai.Enabled() {
		c.logger.Warn("Model classification failed, using keyword fallback", zap.Error(err))
	}

	return c.classifyByKeywords(text, opts)
}

// screenNegative is stage 1. It runs before any collaborator call so that
// disallowed content never earns points regardless of availability.
func (c *ChoiceClassifier) screenNegative(text string) (Classification, bool) {
	lower := strings.ToLower(text)
	for _, tier := range negativeTiers {
		for _, keyword := range tier.keywords {
			if strings.Contains(lower, keyword) {
				return Classification{
					IsNegative:     true,
					NegativeReason: tier.severity,
					AbilityPoints:  0,
					Feedback:       tier.redirect,
				}, true
			}
		}
	}
	return Classification{}, false
}

func (c *ChoiceClassifier) classifyWithModel(ctx context.Context, text string, opts ClassifyOptions) (Classification, error) {
	sceneContext := opts.SceneContext
	if sceneContext == "" {
		sceneContext = "정보 없음"
	}

	prompt := fmt.Sprintf(`다음은 동화를 읽던 아이가 입력한 선택입니다.
이 선택을 분석하고 적절한 능력치와 피드백을 제공해주세요.

**아이의 선택:**
"%s"

**현재 씬:**
%s

**분석 기준:**
- 용기: 두려움을 극복하거나 도전하는 내용
- 공감: 다른 사람의 감정을 이해하는 내용
- 창의성: 새로운 생각이나 방법을 떠올리는 내용
- 책임감: 맡은 일을 끝까지 해내거나 약속을 지키는 내용
- 우정: 친구와의 관계를 중요하게 생각하는 내용

**출력 형식 (JSON):**
{
  "abilityType": "용기/공감/창의성/책임감/우정 중 하나",
  "abilityPoints": 8-15,
  "feedback": "아이에게 전할 긍정적인 피드백 (1-2문장)"
}

분석 결과를 JSON으로 출력해주세요.`, text, sceneContext)

	raw, err := c.ai.Generate(ctx, []ai.Message{
		{Role: "system", Content: "당신은 아이의 선택을 분석하는 교육 전문가입니다. JSON 형식으로만 응답하세요."},
		{Role: "user", Content: prompt},
	}, ai.GenerationParams{Temperature: ai.Temp(0.7), JSONMode: true})
	if err != nil {
		return Classification{}, err
	}

	var parsed struct {
		AbilityType   string `json:"abilityType"`
		AbilityPoints int    `json:"abilityPoints"`
		Feedback      string `json:"feedback"`
	}
	if err := decodeModelJSON(raw, &parsed); err != nil {
		return Classification{}, err
	}

	ability := models.AbilityType(parsed.AbilityType)
	if !ability.IsValid() {
		return Classification{}, fmt.Errorf("%w: unknown ability %q", models.ErrMalformedResponse, parsed.AbilityType)
	}

	points := parsed.AbilityPoints
	if points < pointsWeak {
		points = pointsWeak
	}
	if points > pointsVeryGood {
		points = pointsVeryGood
	}

	feedback := strings.TrimSpace(parsed.Feedback)
	if feedback == "" {
		feedback = tierFeedback[pointsMedium]
	}

	return Classification{
		AbilityType:   ability,
		AbilityPoints: applyBonus(points, opts.Custom),
		Feedback:      feedback,
	}, nil
}

// classifyByKeywords is the deterministic stage 2: same input always yields
// the same result.
func (c *ChoiceClassifier) classifyByKeywords(text string, opts ClassifyOptions) Classification {
	lower := strings.ToLower(text)

	best := models.AbilityFriendship
	bestPoints := 0
	for _, ability := range models.AllAbilities {
		points := scoreAbility(lower, abilityKeywords[ability])
		if points > bestPoints {
			best = ability
			bestPoints = points
		}
	}
	if bestPoints == 0 {
		bestPoints = pointsWeak
	}

	return Classification{
		AbilityType:   best,
		AbilityPoints: applyBonus(bestPoints, opts.Custom),
		Feedback:      tierFeedback[bestPoints],
	}
}

func scoreAbility(lower string, tiers [3][]string) int {
	strongHits := 0
	for _, keyword := range tiers[0] {
		if strings.Contains(lower, keyword) {
			strongHits++
		}
	}
	if strongHits >= 2 {
		return pointsVeryGood
	}
	if strongHits == 1 {
		return pointsStrong
	}
	for _, keyword := range tiers[1] {
		if strings.Contains(lower, keyword) {
			return pointsMedium
		}
	}
	for _, keyword := range tiers[2] {
		if strings.Contains(lower, keyword) {
			return pointsWeak
		}
	}
	return 0
}

func applyBonus(points int, custom bool) int {
	if custom {
		points += customBonus
	}
	if points > pointsCap {
		points = pointsCap
	}
	return points
}
