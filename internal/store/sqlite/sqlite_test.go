package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/kennyhq/kenny-memory/internal/model"
	"github.com/kennyhq/kenny-memory/internal/store"
	"github.com/kennyhq/kenny-memory/internal/store/storetest"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func makeLiteStore(t *testing.T) store.Store {
	return NewWithDB(openTestDB(t))
}

// The vec0 module must be available on every connection Open hands out;
// without it no embedding search can run at all.
func TestOpenProvidesVectorModule(t *testing.T) {
	db := openTestDB(t)
	var version string
	if err := db.QueryRow(`SELECT vec_version()`).Scan(&version); err != nil {
		t.Fatalf("vec_version: %v", err)
	}
	if version == "" {
		t.Fatalf("vec_version returned empty string")
	}
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, makeLiteStore)
}

// Deleting a turn detaches its analytics events instead of cascading;
// events are only removed with their parent conversation.
func TestTurnDeleteDetachesAnalyticsEvents(t *testing.T) {
	db := openTestDB(t)
	s := NewWithDB(db)
	ctx := context.Background()

	conv, err := s.Conversations().Create(ctx, &model.Conversation{
		SessionID: "s-detach", UserID: "u-detach",
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
		`DELETE FROM conversation_turns WHERE turn_id = ?`, turn.TurnID); err != nil {
		t.Fatalf("delete turn: %v", err)
	}

	var turnID sql.NullString
	if err := db.QueryRowContext(ctx,
		`SELECT turn_id FROM analytics_events WHERE event_id = ?`, ev.EventID).Scan(&turnID); err != nil {
		t.Fatalf("event vanished with its turn: %v", err)
	}
	if turnID.Valid {
		t.Fatalf("event still references deleted turn %s", turnID.String)
	}
}
