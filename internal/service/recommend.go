package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"dinory-ai/internal/ai"
	"dinory-ai/internal/clients"
)

// StoryRecommendation is one catalog entry scored against the child's
// current emotion and interests.
type StoryRecommendation struct {
	StoryID       string                 `json:"storyId"`
	Title         string                 `json:"title"`
	MatchingScore int                    `json:"matchingScore"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// emotionQueryTerms expands an app emotion tag into search keywords.
var emotionQueryTerms = map[string]string{
	"기뻐요":  "기쁨 행복 즐거움 웃음 축하 신남 좋아함",
	"슬퍼요":  "슬픔 눈물 위로 공감 아픔 상처 헤어짐 그리움",
	"화나요":  "화남 분노 짜증 싸움 갈등 미안함 용서 화해",
	"무서워요": "두려움 공포 무서움 용기 극복 도전 강함",
	"신나요":  "신남 모험 탐험 재미 활기 에너지 활동",
	"피곤해요": "피곤 휴식 평온 편안 잠 쉼 여유",
}

const defaultSearchQuery = "아이 감정 공감 모험 우정 동화 이야기"

// dummyCatalog is returned when the index or embedding is unavailable.
var dummyCatalog = []StoryRecommendation{
	{
		StoryID:       "new_sibling",
		Title:         "새 동생과의 하루",
		MatchingScore: 96,
		Metadata:      map[string]interface{}{"classification": "가족", "readAge": "유아", "plotSummaryText": "새로운 가족을 맞이하며 배우는 공감"},
	},
	{
		StoryID:       "brave_little_star",
		Title:         "작은 별의 용기",
		MatchingScore: 93,
		Metadata:      map[string]interface{}{"classification": "용기", "readAge": "유아", "plotSummaryText": "두려움을 이겨내는 모험"},
	},
	{
		StoryID:       "forest_friends",
		Title:         "숲속 친구들",
		MatchingScore: 89,
		Metadata:      map[string]interface{}{"classification": "우정", "readAge": "유아", "plotSummaryText": "서로 돕는 친구들의 이야기"},
	},
	{
		StoryID:       "angry_rabbit",
		Title:         "화난 토끼의 하루",
		MatchingScore: 85,
		Metadata:      map[string]interface{}{"classification": "감정조절", "readAge": "유아", "plotSummaryText": "화를 다루는 법 배우기"},
	},
	{
		StoryID:       "magic_adventure",
		Title:         "마법의 모험",
		MatchingScore: 82,
		Metadata:      map[string]interface{}{"classification": "모험", "readAge": "유아", "plotSummaryText": "작은 마법사의 성장기"},
	},
}

// RecommendationService scores catalog stories against emotion and
// interests via the embedding index, with a fixed catalog fallback.
type RecommendationService struct {
	ai     ai.Client
	index  clients.VectorIndex
	logger *zap.Logger
}

// NewRecommendationService creates a recommendation service.
func NewRecommendationService(aiClient ai.Client, index clients.VectorIndex, logger *zap.Logger) *RecommendationService {
	return &RecommendationService{
		ai:     aiClient,
		index:  index,
		logger: logger.Named("RecommendationService"),
	}
}

// RecommendStories returns up to limit unique-titled recommendations,
// best match first. It never returns an error; degraded paths serve the
// fixed catalog.
func (s *RecommendationService) RecommendStories(ctx context.Context, emotion string, interests []string, limit int) []StoryRecommendation {
	if limit <= 0 {
		limit = 5
	}
	if !s.index.Enabled() {
		return dedupeByTitle(dummyCatalog, limit)
	}

	query := buildSearchQuery(emotion, interests)
	embedding, err := s.ai.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("Embedding failed, serving catalog fallback", zap.Error(err))
		return dedupeByTitle(dummyCatalog, limit)
	}

	// Over-fetch so title deduplication can still fill the limit.
	matches, err := s.index.Query(ctx, embedding, nil, limit*2)
	if err != nil {
		s.logger.Warn("Index query failed, serving catalog fallback", zap.Error(err))
		return dedupeByTitle(dummyCatalog, limit)
	}

	recommendations := make([]StoryRecommendation, 0, len(matches))
	for _, match := range matches {
		title := metadataString(match.Metadata, "title")
		if title == "" {
			title = "제목 없음"
		}
		recommendations = append(recommendations, StoryRecommendation{
			StoryID:       match.ID,
			Title:         title,
			MatchingScore: int(match.Score * 100),
			Metadata:      match.Metadata,
		})
	}

	s.logger.Debug("Recommendations retrieved",
		zap.String("query", query),
		zap.Int("raw", len(recommendations)),
	)
	return dedupeByTitle(recommendations, limit)
}

// StoryByID fetches a single catalog story from the index.
func (s *RecommendationService) StoryByID(ctx context.Context, storyID string) (StoryRecommendation, bool) {
	if !s.index.Enabled() {
		return StoryRecommendation{}, false
	}
	vectors, err := s.index.Fetch(ctx, []string{storyID})
	if err != nil || len(vectors) == 0 {
		return StoryRecommendation{}, false
	}
	vec := vectors[0]
	title := metadataString(vec.Metadata, "title")
	if title == "" {
		title = "제목 없음"
	}
	return StoryRecommendation{StoryID: vec.ID, Title: title, Metadata: vec.Metadata}, true
}

func buildSearchQuery(emotion string, interests []string) string {
	emotionText := emotionQueryTerms[emotion]
	if emotionText == "" {
		emotionText = emotion
	}
	query := strings.TrimSpace(emotionText + " " + strings.Join(interests, " ") + " 동화 이야기")
	if query == "동화 이야기" {
		return defaultSearchQuery
	}
	return query
}

// dedupeByTitle keeps the first occurrence of each title, preserving
// order, and bounds the result to limit.
func dedupeByTitle(items []StoryRecommendation, limit int) []StoryRecommendation {
	seen := make(map[string]bool, len(items))
	result := make([]StoryRecommendation, 0, limit)
	for _, item := range items {
		if seen[item.Title] {
			continue
		}
		seen[item.Title] = true
		result = append(result, item)
		if len(result) == limit {
			break
		}
	}
	return result
}
