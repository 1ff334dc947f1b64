package models

// ConversationTurn is one stored chat exchange from the backend's history
// endpoint, most-recent-first.
type ConversationTurn struct {
	SessionID int64  `json:"session_id"`
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	CreatedAt string `json:"created_at"`
}

// StoryCompletion is a finished-story record from the backend. Per-ability
// totals come in the backend's flattened total* fields.
type StoryCompletion struct {
	CompletionID        int64          `json:"completionId"`
	StoryID             string         `json:"storyId"`
	StoryTitle          string         `json:"storyTitle"`
	ChildName           string         `json:"childName"`
	CharacterDescriptor string         `json:"characterDescriptor"`
	TotalCourage        int            `json:"totalCourage"`
	TotalEmpathy        int            `json:"totalEmpathy"`
	TotalCreativity     int            `json:"totalCreativity"`
	TotalResponsibility int            `json:"totalResponsibility"`
	TotalFriendship     int            `json:"totalFriendship"`
	Choices             []ChoiceRecord `json:"choices"`
	CompletedAt         string         `json:"completedAt"`
}

// AbilityDeltas maps the flattened totals back onto the taxonomy.
func (c StoryCompletion) AbilityDeltas() map[AbilityType]int {
	return map[AbilityType]int{
		AbilityCourage:        c.TotalCourage,
		AbilityEmpathy:        c.TotalEmpathy,
		AbilityCreativity:     c.TotalCreativity,
		AbilityResponsibility: c.TotalResponsibility,
		AbilityFriendship:     c.TotalFriendship,
	}
}

// SimilarConversation is one semantic-search hit from the vector index.
type SimilarConversation struct {
	Message   string  `json:"message"`
	Response  string  `json:"response"`
	SessionID int64   `json:"session_id"`
	Score     float64 `json:"score"`
	CreatedAt string  `json:"created_at"`
}

// ConversationContext is the merged memory handed to the chat prompt. Built
// per request, never persisted.
type ConversationContext struct {
	RecentConversations  []ConversationTurn    `json:"recent_conversations"`
	SimilarConversations []SimilarConversation `json:"similar_conversations"`
	StoryCompletions     []StoryCompletion     `json:"story_completions"`
	Summary              string                `json:"summary"`
	ChildName            string                `json:"child_name,omitempty"`
}
