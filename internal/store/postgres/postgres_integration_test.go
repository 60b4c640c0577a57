package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/kennyhq/kenny-memory/internal/model"
	"github.com/kennyhq/kenny-memory/internal/store"
	"github.com/kennyhq/kenny-memory/internal/store/storetest"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("MEMORY_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEMORY_POSTGRES_DSN not set; skipping postgres store integration test")
	}
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("postgres open: %v", err)
	}
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func makePGStore(t *testing.T) store.Store {
	return NewWithDB(openTestDB(t))
}

func TestPostgresStore_Compliance(t *testing.T) {
	storetest.Run(t, makePGStore)
}

// Deleting a turn detaches its analytics events instead of cascading;
// events are only removed with their parent conversation.
func TestTurnDeleteDetachesAnalyticsEvents(t *testing.T) {
	db := openTestDB(t)
	s := NewWithDB(db)
	ctx := context.Background()

	conv, err := s.Conversations().Create(ctx, &model.Conversation{
		SessionID: "s-detach-" + uuid.New().String(), UserID: "u-detach",
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	turn, err := s.Turns().Append(ctx, &model.Turn{
		ConversationID: conv.ConversationID, TurnNumber: 1,
		UserMessage: "hi", Response: "hello",
	})
	if err != nil {
		t.Fatalf("append turn: %v", err)
	}
	ev, err := s.Analytics().Insert(ctx, &model.AnalyticsEvent{
		ConversationID: conv.ConversationID, TurnID: &turn.TurnID,
		Name: "response_latency", Value: 12,
	})
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM conversation_turns WHERE turn_id = $1`, turn.TurnID); err != nil {
		t.Fatalf("delete turn: %v", err)
	}

	var turnID sql.NullString
	if err := db.QueryRowContext(ctx,
		`SELECT turn_id FROM analytics_events WHERE event_id = $1`, ev.EventID).Scan(&turnID); err != nil {
		t.Fatalf("event vanished with its turn: %v", err)
	}
	if turnID.Valid {
		t.Fatalf("event still references deleted turn %s", turnID.String)
	}
}
