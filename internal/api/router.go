package api

import (
	"time"

	"github.com/gorilla/mux"

	"github.com/kennyhq/kenny-memory/internal/api/recovery"
	"github.com/kennyhq/kenny-memory/internal/services"
)

// RouterDeps carries the services the router mounts.
type RouterDeps struct {
	Conversations *services.ConversationService
	Memories      *services.MemoryService
	Patterns      *services.PatternService
	Analytics     *services.AnalyticsService
	Retention     *services.RetentionService

	// DefaultSweepAge is used when a sweep request does not specify an age.
	DefaultSweepAge time.Duration
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(deps RouterDeps) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware)

	healthHandler := NewHealthHandler()
	convHandler := NewConversationHandler(deps.Conversations)
	memHandler := NewMemoryHandler(deps.Memories)
	patternHandler := NewPatternHandler(deps.Patterns)
	analyticsHandler := NewAnalyticsHandler(deps.Analytics)
	adminHandler := NewAdminHandler(deps.Retention, deps.DefaultSweepAge)

	// Health
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	// Conversations and turns
	router.HandleFunc("/api/conversations", convHandler.CreateConversation).Methods("POST")
	router.HandleFunc("/api/conversations/search", convHandler.SearchConversations).Methods("POST")
	router.HandleFunc("/api/conversations/{sessionId}", convHandler.GetConversation).Methods("GET")
	router.HandleFunc("/api/conversations/{sessionId}/turns", convHandler.AppendTurn).Methods("POST")
	router.HandleFunc("/api/conversations/{sessionId}/turns/recent", convHandler.GetRecentContext).Methods("GET")

	// Long-term memories
	router.HandleFunc("/api/users/{userId}/memories", memHandler.CreateMemory).Methods("POST")
	router.HandleFunc("/api/users/{userId}/memories", memHandler.ListMemories).Methods("GET")
	router.HandleFunc("/api/memories/search", memHandler.SearchMemories).Methods("POST")

	// Patterns
	router.HandleFunc("/api/users/{userId}/patterns/{patternType}", patternHandler.UpsertPattern).Methods("PUT")
	router.HandleFunc("/api/users/{userId}/patterns", patternHandler.ListPatterns).Methods("GET")

	// Analytics
	router.HandleFunc("/api/analytics/events", analyticsHandler.RecordEvent).Methods("POST")

	// Operations
	router.HandleFunc("/api/admin/sweep", adminHandler.Sweep).Methods("POST")

	return router
}
