package model

import "time"

// MemoryKind enumerates the kinds of distilled long-term memories.
type MemoryKind string

const (
	MemoryKindPreference   MemoryKind = "preference"
	MemoryKindFact         MemoryKind = "fact"
	MemoryKindPattern      MemoryKind = "pattern"
	MemoryKindRelationship MemoryKind = "relationship"
)

// Valid reports whether k is one of the known memory kinds.
func (k MemoryKind) Valid() bool {
	switch k {
	case MemoryKindPreference, MemoryKindFact, MemoryKindPattern, MemoryKindRelationship:
		return true
	}
	return false
}

// Embedding dimensionality is a fixed contract per embedding space.
// Conversational turns and long-term memories use independent spaces
// and their vectors are not comparable to each other.
const (
	TurnEmbeddingDim   = 768
	MemoryEmbeddingDim = 1024
)

// Conversation is one logical assistant session.
type Conversation struct {
	ConversationID string                 `json:"conversationId"`
	SessionID      string                 `json:"sessionId"`
	UserID         string                 `json:"userId"`
	UserContact    *string                `json:"userContact,omitempty"`
	TurnCount      int                    `json:"turnCount"`
	Active         bool                   `json:"active"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreationTime   time.Time              `json:"creationTime"`
	LastActivity   time.Time              `json:"lastActivity"`
	UpdateTime     time.Time              `json:"updateTime"`
}

// Turn is one user/assistant exchange within a conversation.
// TurnNumber is assigned by the caller and is unique per conversation.
type Turn struct {
	TurnID         string                 `json:"turnId"`
	ConversationID string                 `json:"conversationId"`
	TurnNumber     int                    `json:"turnNumber"`
	UserMessage    string                 `json:"userMessage"`
	UserEmbedding  []float32              `json:"userEmbedding,omitempty"`
	Response       string                 `json:"response"`
	Intent         string                 `json:"intent"`
	Confidence     float64                `json:"confidence"`
	Agent          string                 `json:"agent,omitempty"`
	LatencyMs      int                    `json:"latencyMs"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreationTime   time.Time              `json:"creationTime"`
}

// TurnMatch is a turn returned by semantic conversation search.
type TurnMatch struct {
	TurnID         string    `json:"turnId"`
	ConversationID string    `json:"conversationId"`
	SessionID      string    `json:"sessionId"`
	TurnNumber     int       `json:"turnNumber"`
	UserMessage    string    `json:"userMessage"`
	Response       string    `json:"response"`
	Intent         string    `json:"intent"`
	Similarity     float64   `json:"similarity"`
	CreationTime   time.Time `json:"creationTime"`
}

// Memory is one distilled fact about a user, independent of any session.
// AccessCount and LastAccessed change only as a side effect of a
// similarity search that returns the row.
type Memory struct {
	MemoryID             string                 `json:"memoryId"`
	UserID               string                 `json:"userId"`
	Kind                 MemoryKind             `json:"kind"`
	Content              string                 `json:"content"`
	Embedding            []float32              `json:"embedding,omitempty"`
	Confidence           float64                `json:"confidence"`
	SourceConversationID *string                `json:"sourceConversationId,omitempty"`
	SourceTurnID         *string                `json:"sourceTurnId,omitempty"`
	AccessCount          int                    `json:"accessCount"`
	LastAccessed         *time.Time             `json:"lastAccessed,omitempty"`
	Active               bool                   `json:"active"`
	Metadata             map[string]interface{} `json:"metadata,omitempty"`
	CreationTime         time.Time              `json:"creationTime"`
}

// MemoryMatch is a memory returned by similarity search, carrying the
// similarity score for the query that matched it.
type MemoryMatch struct {
	MemoryID     string     `json:"memoryId"`
	Kind         MemoryKind `json:"kind"`
	Content      string     `json:"content"`
	Confidence   float64    `json:"confidence"`
	Similarity   float64    `json:"similarity"`
	CreationTime time.Time  `json:"creationTime"`
}

// Pattern is an aggregated behavioral statistic, unique per (user, type).
// Upserts merge: data and confidence are replaced, sample size accumulates.
type Pattern struct {
	PatternID    string                 `json:"patternId"`
	UserID       string                 `json:"userId"`
	PatternType  string                 `json:"patternType"`
	Data         map[string]interface{} `json:"data"`
	Confidence   float64                `json:"confidence"`
	SampleSize   int                    `json:"sampleSize"`
	CreationTime time.Time              `json:"creationTime"`
	UpdateTime   time.Time              `json:"updateTime"`
}

// AnalyticsEvent is one recorded metric observation. Append-only.
type AnalyticsEvent struct {
	EventID        string                 `json:"eventId"`
	ConversationID string                 `json:"conversationId"`
	TurnID         *string                `json:"turnId,omitempty"`
	Name           string                 `json:"name"`
	Value          float64                `json:"value"`
	Data           map[string]interface{} `json:"data,omitempty"`
	CreationTime   time.Time              `json:"creationTime"`
}

// SweepResult reports how many rows a retention sweep deactivated.
type SweepResult struct {
	ConversationsDeactivated int `json:"conversationsDeactivated"`
	MemoriesDeactivated      int `json:"memoriesDeactivated"`
}
