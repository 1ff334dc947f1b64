package models

import (
	"fmt"
	"time"
)

// MaxScenes is the fixed length of every story. Scene MaxScenes is the
// resolution and carries no choices.
const MaxScenes = 8

// Choice is a single option presented at the end of a scene.
type Choice struct {
	ChoiceID      int         `json:"choiceId"`
	ChoiceText    string      `json:"choiceText"`
	AbilityType   AbilityType `json:"abilityType"`
	AbilityPoints int         `json:"abilityPoints"`
}

// Scene is one generated step of the branching story.
type Scene struct {
	SceneNumber int      `json:"sceneNumber"`
	Content     string   `json:"content"`
	ImagePrompt string   `json:"imagePrompt"`
	Choices     []Choice `json:"choices"`
	IsEnding    bool     `json:"isEnding"`
}

// ChoiceRecord is a committed choice from an earlier scene, as reported by
// the caller or reconstructed from a completion record.
type ChoiceRecord struct {
	SceneNumber int         `json:"sceneNumber"`
	ChoiceText  string      `json:"choiceText"`
	AbilityType AbilityType `json:"abilityType"`
}

// StorySession is the per-story mutable state. It is owned by the session
// repository; all mutation goes through SessionRepository.Mutate so that
// concurrent submissions for the same session are serialized.
type StorySession struct {
	ID                  string              `json:"id"`
	StoryID             string              `json:"storyId"`
	ChildID             int64               `json:"childId"`
	ChildName           string              `json:"childName"`
	Title               string              `json:"title"`
	CharacterDescriptor string              `json:"characterDescriptor"`
	CurrentSceneNumber  int                 `json:"currentSceneNumber"`
	AbilityTotals       map[AbilityType]int `json:"abilityTotals"`
	SceneHistory        []Scene             `json:"sceneHistory"`
	Choices             []ChoiceRecord      `json:"choices"`
	Terminal            bool                `json:"terminal"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// NewStorySession creates an empty session positioned before scene 1.
func NewStorySession(id, storyID string, childID int64, childName string) *StorySession {
	now := time.Now().UTC()
	return &StorySession{
		ID:            id,
		StoryID:       storyID,
		ChildID:       childID,
		ChildName:     childName,
		AbilityTotals: make(map[AbilityType]int, len(AllAbilities)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AddAbility is the ability ledger: totals only ever grow.
func (s *StorySession) AddAbility(ability AbilityType, points int) error {
	if !ability.IsValid() {
		return fmt.Errorf("%w: unknown ability type %q", ErrValidation, ability)
	}
	if points < 0 {
		return fmt.Errorf("%w: negative ability points %d", ErrValidation, points)
	}
	if s.AbilityTotals == nil {
		s.AbilityTotals = make(map[AbilityType]int, len(AllAbilities))
	}
	s.AbilityTotals[ability] += points
	return nil
}

// Totals returns a copy of the ledger with every ability present, unseen
// abilities defaulting to 0.
func (s *StorySession) Totals() map[AbilityType]int {
	totals := make(map[AbilityType]int, len(AllAbilities))
	for _, a := range AllAbilities {
		totals[a] = s.AbilityTotals[a]
	}
	return totals
}

// CommitScene appends a generated scene and advances the scene counter.
func (s *StorySession) CommitScene(scene Scene) {
	s.SceneHistory = append(s.SceneHistory, scene)
	if scene.SceneNumber > s.CurrentSceneNumber {
		s.CurrentSceneNumber = scene.SceneNumber
	}
	if scene.SceneNumber == MaxScenes {
		s.Terminal = true
	}
	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy. Repositories hand out clones so callers can
// never mutate shared state outside Mutate.
func (s *StorySession) Clone() *StorySession {
	if s == nil {
		return nil
	}
	clone := *s
	clone.AbilityTotals = make(map[AbilityType]int, len(s.AbilityTotals))
	for k, v := range s.AbilityTotals {
		clone.AbilityTotals[k] = v
	}
	clone.SceneHistory = make([]Scene, len(s.SceneHistory))
	for i, sc := range s.SceneHistory {
		sceneCopy := sc
		sceneCopy.Choices = append([]Choice(nil), sc.Choices...)
		clone.SceneHistory[i] = sceneCopy
	}
	clone.Choices = append([]ChoiceRecord(nil), s.Choices...)
	return &clone
}

// SceneByNumber returns the committed scene with the given number, if any.
func (s *StorySession) SceneByNumber(number int) (Scene, bool) {
	for _, sc := range s.SceneHistory {
		if sc.SceneNumber == number {
			return sc, true
		}
	}
	return Scene{}, false
}

// UnusedAbilities returns the abilities that have not yet appeared among the
// session's committed choices, in canonical order.
func (s *StorySession) UnusedAbilities() []AbilityType {
	return UnusedAbilities(s.Choices)
}

// UnusedAbilities returns taxonomy entries absent from the given choices.
func UnusedAbilities(choices []ChoiceRecord) []AbilityType {
	seen := make(map[AbilityType]bool, len(AllAbilities))
	for _, c := range choices {
		seen[c.AbilityType] = true
	}
	var unused []AbilityType
	for _, a := range AllAbilities {
		if !seen[a] {
			unused = append(unused, a)
		}
	}
	return unused
}
