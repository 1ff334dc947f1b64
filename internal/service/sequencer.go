package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dinory-ai/internal/ai"
	"dinory-ai/internal/models"
)

// SceneInput carries everything the sequencer needs for one scene.
type SceneInput struct {
	Session         *models.StorySession
	SceneNumber     int
	PreviousChoices []models.ChoiceRecord
	// SeedTitle is the catalog title the caller started from. The
	// generated title must be distinct from it.
	SeedTitle string
	Emotion   string
	Interests []string
}

// SceneResult is a generated scene plus, for scene 1 only, the new story
// title and the protagonist descriptor.
type SceneResult struct {
	Scene               models.Scene
	Title               string
	CharacterDescriptor string
	// Fallback reports whether the deterministic template was used.
	Fallback bool
}

// SceneSequencer produces one scene at a time, enforcing the stage and
// ending policy. Generation failures never propagate: a deterministic
// template scene keeps the narrative moving.
type SceneSequencer struct {
	ai     ai.Client
	logger *zap.Logger
}

// NewSceneSequencer creates a sequencer over the given collaborator.
func NewSceneSequencer(aiClient ai.Client, logger *zap.Logger) *SceneSequencer {
	return &SceneSequencer{
		ai:     aiClient,
		logger: logger.Named("SceneSequencer"),
	}
}

// narrativeStage maps a scene number to its fixed stage instruction.
func narrativeStage(sceneNumber int) string {
	switch {
	case sceneNumber == 1:
		return "도입: 주인공과 배경을 소개하고 감정 상황을 제시하세요"
	case sceneNumber <= 3:
		return "전개(상승): 문제가 드러나고 긴장이 조금씩 커집니다"
	case sceneNumber <= 6:
		return "전개/절정: 문제를 해결하려는 시도와 중요한 사건이 일어납니다"
	case sceneNumber == models.MaxScenes-1:
		return "전환점: 가장 중요한 선택과 감정의 변화가 일어납니다"
	default:
		return "결말: 긍정적인 해결과 교훈으로 이야기를 마무리하세요. 선택지는 없습니다"
	}
}

// canonicalChoices is the fallback choice text per ability.
var canonicalChoices = map[models.AbilityType]string{
	models.AbilityCourage:        "용기를 내서 앞으로 나아가요",
	models.AbilityEmpathy:        "친구의 마음을 먼저 물어봐요",
	models.AbilityCreativity:     "새로운 방법을 떠올려봐요",
	models.AbilityResponsibility: "맡은 일을 끝까지 해내요",
	models.AbilityFriendship:     "친구와 함께 힘을 합쳐요",
}

// GenerateScene produces the scene with the given number. It never returns
// an error; collaborator failures select the deterministic fallback.
func (s *SceneSequencer) GenerateScene(ctx context.Context, input SceneInput) SceneResult {
	result, err := s.generateWithModel(ctx, input)
	if err == nil {
		return result
	}
	if s.ai.Enabled() {
		s.logger.Warn("Scene generation failed, using fallback scene",
			zap.Int("scene_number", input.SceneNumber),
			zap.String("story_id", input.Session.StoryID),
			zap.Error(err),
		)
	}
	return s.fallbackScene(input)
}

func (s *SceneSequencer) generateWithModel(ctx context.Context, input SceneInput) (SceneResult, error) {
	prompt := s.buildPrompt(input)

	raw, err := s.ai.Generate(ctx, []ai.Message{
		{Role: "system", Content: "당신은 어린이를 위한 창의적이고 따뜻한 동화 작가입니다. 아이의 감정을 이해하고 긍정적인 가치를 전달하는 이야기를 만듭니다. JSON 형식으로만 응답하세요."},
		{Role: "user", Content: prompt},
	}, ai.GenerationParams{Temperature: ai.Temp(0.8), MaxTokens: ai.MaxTok(1500), JSONMode: true})
	if err != nil {
		return SceneResult{}, err
	}

	var parsed struct {
		SceneNumber         int    `json:"sceneNumber"`
		Title               string `json:"title"`
		CharacterDescriptor string `json:"characterDescriptor"`
		Content             string `json:"content"`
		ImagePrompt         string `json:"imagePrompt"`
		Choices             []struct {
			ChoiceID      int    `json:"choiceId"`
			ChoiceText    string `json:"choiceText"`
			AbilityType   string `json:"abilityType"`
			AbilityPoints int    `json:"abilityPoints"`
		} `json:"choices"`
	}
	if err := decodeModelJSON(raw, &parsed); err != nil {
		return SceneResult{}, err
	}
	if strings.TrimSpace(parsed.Content) == "" {
		return SceneResult{}, fmt.Errorf("%w: scene without content", models.ErrMalformedResponse)
	}

	scene := models.Scene{
		SceneNumber: input.SceneNumber,
		Content:     strings.TrimSpace(parsed.Content),
		ImagePrompt: strings.TrimSpace(parsed.ImagePrompt),
		IsEnding:    input.SceneNumber == models.MaxScenes,
	}

	// The ending carries no choices regardless of what the model produced.
	if !scene.IsEnding {
		unused := models.UnusedAbilities(input.PreviousChoices)
		for i, choice := range parsed.Choices {
			if i == 3 {
				break
			}
			ability := models.AbilityType(choice.AbilityType)
			if !ability.IsValid() {
				ability = pickAbility(unused, i)
			}
			points := choice.AbilityPoints
			if points < pointsWeak || points > pointsVeryGood {
				points = pointsMedium
			}
			scene.Choices = append(scene.Choices, models.Choice{
				ChoiceID:      input.SceneNumber*10 + i + 1,
				ChoiceText:    strings.TrimSpace(choice.ChoiceText),
				AbilityType:   ability,
				AbilityPoints: points,
			})
		}
		if len(scene.Choices) == 0 {
			return SceneResult{}, fmt.Errorf("%w: non-ending scene without choices", models.ErrMalformedResponse)
		}
	}

	result := SceneResult{Scene: scene}
	if input.SceneNumber == 1 {
		result.Title = distinctTitle(strings.TrimSpace(parsed.Title), input.SeedTitle, input.Session.ChildName)
		result.CharacterDescriptor = strings.TrimSpace(parsed.CharacterDescriptor)
		if result.CharacterDescriptor == "" {
			result.CharacterDescriptor = fallbackDescriptor(input.Session.ChildName)
		}
	}
	return result, nil
}

func (s *SceneSequencer) buildPrompt(input SceneInput) string {
	var b strings.Builder
	childName := input.Session.ChildName
	if childName == "" {
		childName = "친구"
	}

	fmt.Fprintf(&b, "%s라는 아이를 위한 인터랙티브 동화의 %d번째 장면을 만들어주세요.\n\n", childName, input.SceneNumber)
	fmt.Fprintf(&b, "**아이 정보:**\n- 이름: %s\n", childName)
	if input.Emotion != "" {
		fmt.Fprintf(&b, "- 현재 감정: %s\n", input.Emotion)
	}
	if len(input.Interests) > 0 {
		fmt.Fprintf(&b, "- 관심사: %s\n", strings.Join(input.Interests, ", "))
	}

	fmt.Fprintf(&b, "\n**이야기 단계 (전체 %d장면 중 %d번째):**\n%s\n", models.MaxScenes, input.SceneNumber, narrativeStage(input.SceneNumber))

	if input.SceneNumber == 1 {
		fmt.Fprintf(&b, "\n**제목:** 원작 제목 '%s'과 다른 새로운 제목을 지어주세요.\n", input.SeedTitle)
		b.WriteString("**주인공 묘사:** characterDescriptor에 주인공의 외형을 짧은 문장으로 묘사해주세요. 모든 장면의 그림에서 똑같이 쓰입니다.\n")
	} else {
		if input.Session.Title != "" {
			fmt.Fprintf(&b, "\n**동화 제목:** %s\n", input.Session.Title)
		}
		if input.Session.CharacterDescriptor != "" {
			fmt.Fprintf(&b, "**주인공 묘사 (그대로 유지):** %s\n", input.Session.CharacterDescriptor)
		}
	}

	if len(input.PreviousChoices) > 0 {
		b.WriteString("\n**지금까지 아이가 고른 선택:**\n")
		for _, choice := range input.PreviousChoices {
			fmt.Fprintf(&b, "- 장면 %d: %s (%s)\n", choice.SceneNumber, choice.ChoiceText, choice.AbilityType)
		}
	}

	if input.SceneNumber < models.MaxScenes {
		b.WriteString("\n**선택지 요구사항:**\n")
		b.WriteString("1. 선택지 3개를 만들어주세요. 각 선택지는 장면에 나온 인물이나 사물과 연결된 구체적인 행동이어야 합니다.\n")
		if unused := models.UnusedAbilities(input.PreviousChoices); len(unused) > 0 {
			names := make([]string, len(unused))
			for i, a := range unused {
				names[i] = string(a)
			}
			fmt.Fprintf(&b, "2. 아직 나오지 않은 능력치(%s)를 우선적으로 선택지에 배정해주세요.\n", strings.Join(names, ", "))
		}
		b.WriteString(fmt.Sprintf("3. abilityType은 용기/공감/창의성/책임감/우정 중 하나, abilityPoints는 %d-%d입니다.\n", pointsWeak, pointsVeryGood))
	} else {
		b.WriteString("\n마지막 장면이므로 선택지 없이 이야기를 긍정적으로 마무리해주세요. choices는 빈 배열입니다.\n")
	}

	b.WriteString(`
**출력 형식 (JSON):**
{
  "sceneNumber": ` + fmt.Sprintf("%d", input.SceneNumber) + `,`)
	if input.SceneNumber == 1 {
		b.WriteString(`
  "title": "새 동화 제목",
  "characterDescriptor": "주인공 외형 묘사",`)
	}
	b.WriteString(`
  "content": "장면 내용 (3-5문장, 유아용 쉬운 문장)",
  "imagePrompt": "이미지 생성용 영어 프롬프트",
  "choices": [
    {"choiceId": 1, "choiceText": "선택지", "abilityType": "용기", "abilityPoints": 10}
  ]
}
`)
	return b.String()
}

// fallbackScene is the deterministic template used when generation fails.
func (s *SceneSequencer) fallbackScene(input SceneInput) SceneResult {
	childName := input.Session.ChildName
	if childName == "" {
		childName = "우리 친구"
	}

	title := input.Session.Title
	descriptor := input.Session.CharacterDescriptor
	if input.SceneNumber == 1 {
		title = distinctTitle(fmt.Sprintf("%s의 반짝이는 모험", childName), input.SeedTitle, childName)
		descriptor = fallbackDescriptor(input.Session.ChildName)
	}
	if title == "" {
		title = "반짝이는 모험"
	}

	var content string
	switch {
	case input.SceneNumber == 1:
		content = fmt.Sprintf("'%s' 이야기가 시작되었어요. %s는 오늘 아주 특별한 하루를 맞이했어요. 창밖에는 반짝이는 무언가가 %s를 부르고 있었어요.", title, childName, childName)
	case input.SceneNumber == models.MaxScenes:
		content = fmt.Sprintf("'%s' 이야기가 끝났어요. %s는 모험에서 소중한 것을 배웠고, 마음이 한 뼘 더 자랐답니다. 오늘 밤 %s는 행복한 꿈을 꿀 거예요.", title, childName, childName)
	default:
		content = fmt.Sprintf("'%s' 이야기가 계속되어요. %s는 씩씩하게 한 걸음 더 나아갔어요. 이번에는 어떤 일이 기다리고 있을까요?", title, childName)
	}
	if last := lastChoice(input.PreviousChoices); last != "" && input.SceneNumber > 1 {
		content = fmt.Sprintf("%s 지난번에 '%s'를 고른 덕분에 좋은 일이 생겼어요.", content, last)
	}

	scene := models.Scene{
		SceneNumber: input.SceneNumber,
		Content:     content,
		ImagePrompt: fmt.Sprintf("A cute child named %s, %s, scene %d, children's book illustration style, warm colors", childName, descriptor, input.SceneNumber),
		IsEnding:    input.SceneNumber == models.MaxScenes,
	}

	if !scene.IsEnding {
		unused := models.UnusedAbilities(input.PreviousChoices)
		for i := 0; i < 3; i++ {
			ability := pickAbility(unused, i)
			scene.Choices = append(scene.Choices, models.Choice{
				ChoiceID:      input.SceneNumber*10 + i + 1,
				ChoiceText:    canonicalChoices[ability],
				AbilityType:   ability,
				AbilityPoints: pointsMedium,
			})
		}
	}

	result := SceneResult{Scene: scene, Fallback: true}
	if input.SceneNumber == 1 {
		result.Title = title
		result.CharacterDescriptor = descriptor
	}
	return result
}

// pickAbility returns the i-th unused ability, continuing through the
// canonical order once unused abilities run out, without repeats.
func pickAbility(unused []models.AbilityType, i int) models.AbilityType {
	if i < len(unused) {
		return unused[i]
	}
	seen := make(map[models.AbilityType]bool, len(unused))
	for _, a := range unused {
		seen[a] = true
	}
	rest := make([]models.AbilityType, 0, len(models.AllAbilities))
	for _, a := range models.AllAbilities {
		if !seen[a] {
			rest = append(rest, a)
		}
	}
	idx := i - len(unused)
	if len(rest) == 0 {
		return models.AllAbilities[i%len(models.AllAbilities)]
	}
	return rest[idx%len(rest)]
}

func lastChoice(choices []models.ChoiceRecord) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[len(choices)-1].ChoiceText
}

// distinctTitle guarantees the generated title is not the seed title.
func distinctTitle(title, seed, childName string) string {
	normalize := func(s string) string {
		return strings.ToLower(strings.Join(strings.Fields(s), ""))
	}
	if title == "" {
		if childName == "" {
			childName = "친구"
		}
		title = fmt.Sprintf("%s의 반짝이는 모험", childName)
	}
	if normalize(title) == normalize(seed) {
		title = "새로 만나는 " + title
	}
	return title
}

func fallbackDescriptor(childName string) string {
	if childName == "" {
		childName = "아이"
	}
	return fmt.Sprintf("호기심 가득한 눈과 밝은 미소를 가진 씩씩한 아이 %s", childName)
}
