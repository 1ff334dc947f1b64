package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dinory-ai/internal/clients"
	"dinory-ai/internal/models"
	"dinory-ai/internal/repository"
)

// SceneParams is a caller request for one scene.
type SceneParams struct {
	StoryID         string
	ChildID         int64
	ChildName       string
	SeedTitle       string
	SceneNumber     int
	Emotion         string
	Interests       []string
	PreviousChoices []models.ChoiceRecord
}

// ScenePayload is the caller-facing scene result. Title and
// CharacterDescriptor are set for scene 1 only.
type ScenePayload struct {
	Scene               models.Scene
	Title               string
	CharacterDescriptor string
	AbilityTotals       map[models.AbilityType]int
	Terminal            bool
}

// ChoiceParams is a caller request to score and record one choice.
type ChoiceParams struct {
	StoryID      string
	ChildID      int64
	SceneNumber  int
	ChoiceText   string
	Custom       bool
	SceneContext string
}

// ChoiceResult pairs the classification with the updated ledger.
type ChoiceResult struct {
	Classification Classification
	AbilityTotals  map[models.AbilityType]int
}

// NarrativeService owns the story-session lifecycle: restore or rehydrate
// state, dispatch to the sequencer and classifier, persist results. It
// absorbs every collaborator failure; only caller-input validation
// failures propagate.
type NarrativeService struct {
	sessions   repository.SessionRepository
	characters *repository.CharacterStore
	sequencer  *SceneSequencer
	classifier *ChoiceClassifier
	history    clients.HistoryClient
	logger     *zap.Logger
}

// NewNarrativeService wires the orchestrator.
func NewNarrativeService(
	sessions repository.SessionRepository,
	characters *repository.CharacterStore,
	sequencer *SceneSequencer,
	classifier *ChoiceClassifier,
	history clients.HistoryClient,
	logger *zap.Logger,
) *NarrativeService {
	return &NarrativeService{
		sessions:   sessions,
		characters: characters,
		sequencer:  sequencer,
		classifier: classifier,
		history:    history,
		logger:     logger.Named("NarrativeService"),
	}
}

// sessionKey derives the store key. One child runs one session per story.
func sessionKey(childID int64, storyID string) string {
	return fmt.Sprintf("%d:%s", childID, storyID)
}

// GenerateScene serves one scene request. Requesting an already committed
// scene replays the stored scene; requesting past the next scene is a
// validation failure.
func (s *NarrativeService) GenerateScene(ctx context.Context, params SceneParams) (ScenePayload, error) {
	if params.SceneNumber < 1 || params.SceneNumber > models.MaxScenes {
		return ScenePayload{}, fmt.Errorf("%w: scene number %d out of range 1..%d", models.ErrValidation, params.SceneNumber, models.MaxScenes)
	}
	if params.StoryID == "" {
		return ScenePayload{}, fmt.Errorf("%w: missing story id", models.ErrValidation)
	}

	key := sessionKey(params.ChildID, params.StoryID)
	session, err := s.sessions.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, models.ErrSessionNotFound) {
			return ScenePayload{}, err
		}
		session, err = s.restoreSession(ctx, key, params)
		if err != nil {
			return ScenePayload{}, err
		}
	}

	// Replay: a committed scene is returned as stored, no regeneration.
	if stored, ok := session.SceneByNumber(params.SceneNumber); ok {
		return s.payload(session, stored), nil
	}
	if params.SceneNumber != session.CurrentSceneNumber+1 {
		return ScenePayload{}, fmt.Errorf("%w: scene %d requested but session is at scene %d",
			models.ErrValidation, params.SceneNumber, session.CurrentSceneNumber)
	}

	previousChoices := session.Choices
	if len(previousChoices) == 0 {
		previousChoices = params.PreviousChoices
	}

	result := s.sequencer.GenerateScene(ctx, SceneInput{
		Session:         session,
		SceneNumber:     params.SceneNumber,
		PreviousChoices: previousChoices,
		SeedTitle:       params.SeedTitle,
		Emotion:         params.Emotion,
		Interests:       params.Interests,
	})

	committed, err := s.sessions.Mutate(ctx, key, func(current *models.StorySession) error {
		// Another request may have committed this scene while we generated.
		if _, ok := current.SceneByNumber(params.SceneNumber); ok {
			return nil
		}
		if params.SceneNumber != current.CurrentSceneNumber+1 {
			return fmt.Errorf("%w: scene %d requested but session is at scene %d",
				models.ErrValidation, params.SceneNumber, current.CurrentSceneNumber)
		}
		if params.SceneNumber == 1 {
			current.Title = result.Title
			current.CharacterDescriptor = s.characters.Remember(params.StoryID, result.CharacterDescriptor)
		}
		current.CommitScene(result.Scene)
		return nil
	})
	if err != nil {
		return ScenePayload{}, err
	}

	scene, _ := committed.SceneByNumber(params.SceneNumber)
	s.logger.Info("Scene committed",
		zap.String("story_id", params.StoryID),
		zap.Int64("child_id", params.ChildID),
		zap.Int("scene_number", params.SceneNumber),
		zap.Bool("fallback", result.Fallback),
		zap.Bool("terminal", committed.Terminal),
	)
	return s.payload(committed, scene), nil
}

// restoreSession handles a missing in-process session: scene 1 starts
// fresh; later scenes are rehydrated from the durable completion record,
// falling back to the caller-supplied choice list when none matches.
func (s *NarrativeService) restoreSession(ctx context.Context, key string, params SceneParams) (*models.StorySession, error) {
	session := models.NewStorySession(key, params.StoryID, params.ChildID, params.ChildName)

	if params.SceneNumber == 1 {
		s.characters.Rebind(params.StoryID, "")
		if err := s.sessions.Save(ctx, session); err != nil {
			return nil, err
		}
		return session, nil
	}

	if completion, ok := s.findCompletion(ctx, params.ChildID, params.StoryID); ok {
		session.Title = completion.StoryTitle
		session.CharacterDescriptor = s.characters.Remember(params.StoryID, completion.CharacterDescriptor)
		session.Choices = completion.Choices
		for ability, points := range completion.AbilityDeltas() {
			if points > 0 {
				if err := session.AddAbility(ability, points); err != nil {
					return nil, err
				}
			}
		}
		s.logger.Info("Session rehydrated from completion record",
			zap.String("story_id", params.StoryID),
			zap.Int64("child_id", params.ChildID),
		)
	} else {
		// No durable record either: continue from the caller's view.
		session.Choices = params.PreviousChoices
		if descriptor, ok := s.characters.Lookup(params.StoryID); ok {
			session.CharacterDescriptor = descriptor
		}
		s.logger.Warn("Session lost and no completion record, continuing from caller state",
			zap.String("story_id", params.StoryID),
			zap.Int64("child_id", params.ChildID),
			zap.Int("scene_number", params.SceneNumber),
		)
	}

	session.CurrentSceneNumber = params.SceneNumber - 1
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *NarrativeService) findCompletion(ctx context.Context, childID int64, storyID string) (models.StoryCompletion, bool) {
	completions, err := s.history.GetStoryCompletions(ctx, childID, completionsLimit)
	if err != nil {
		s.logger.Warn("Completion lookup failed during rehydration", zap.Int64("child_id", childID), zap.Error(err))
		return models.StoryCompletion{}, false
	}
	for _, completion := range completions {
		if completion.StoryID == storyID {
			return completion, true
		}
	}
	return models.StoryCompletion{}, false
}

// SubmitChoice classifies the choice text and records it in the ledger.
// Negative content earns zero points but is still recorded as a turn.
// A lost session is restored the same way GenerateScene restores one, so
// a process restart never turns a valid submission into an error.
func (s *NarrativeService) SubmitChoice(ctx context.Context, params ChoiceParams) (ChoiceResult, error) {
	if params.ChoiceText == "" {
		return ChoiceResult{}, fmt.Errorf("%w: empty choice text", models.ErrValidation)
	}
	if params.SceneNumber < 1 || params.SceneNumber > models.MaxScenes {
		return ChoiceResult{}, fmt.Errorf("%w: scene number %d out of range 1..%d", models.ErrValidation, params.SceneNumber, models.MaxScenes)
	}

	key := sessionKey(params.ChildID, params.StoryID)
	if _, err := s.sessions.Get(ctx, key); err != nil {
		if !errors.Is(err, models.ErrSessionNotFound) {
			return ChoiceResult{}, err
		}
		if _, err := s.restoreSession(ctx, key, SceneParams{
			StoryID:     params.StoryID,
			ChildID:     params.ChildID,
			SceneNumber: params.SceneNumber,
		}); err != nil {
			return ChoiceResult{}, err
		}
	}

	classification := s.classifier.Classify(ctx, params.ChoiceText, ClassifyOptions{
		Custom:       params.Custom,
		SceneContext: params.SceneContext,
	})

	session, err := s.sessions.Mutate(ctx, key, func(current *models.StorySession) error {
		if !classification.IsNegative {
			if err := current.AddAbility(classification.AbilityType, classification.AbilityPoints); err != nil {
				return err
			}
			current.Choices = append(current.Choices, models.ChoiceRecord{
				SceneNumber: params.SceneNumber,
				ChoiceText:  params.ChoiceText,
				AbilityType: classification.AbilityType,
			})
		}
		return nil
	})
	if err != nil {
		return ChoiceResult{}, err
	}

	return ChoiceResult{
		Classification: classification,
		AbilityTotals:  session.Totals(),
	}, nil
}

// Session returns a snapshot of the story session.
func (s *NarrativeService) Session(ctx context.Context, childID int64, storyID string) (*models.StorySession, error) {
	return s.sessions.Get(ctx, sessionKey(childID, storyID))
}

func (s *NarrativeService) payload(session *models.StorySession, scene models.Scene) ScenePayload {
	payload := ScenePayload{
		Scene:         scene,
		AbilityTotals: session.Totals(),
		Terminal:      session.Terminal,
	}
	if scene.SceneNumber == 1 {
		payload.Title = session.Title
		payload.CharacterDescriptor = session.CharacterDescriptor
	}
	return payload
}
