package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema applies the embedded DDL. Safe to run on every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// EnsureANNIndexes creates the ivfflat approximate-nearest-neighbor indexes
// over both embedding columns. The partition count trades recall against
// query latency and is configurable, so the indexes are built here rather
// than in the static schema. ivfflat refuses to build on an empty table,
// hence the row-existence guards.
func EnsureANNIndexes(ctx context.Context, db *sql.DB, lists int) error {
	if lists < 1 {
		return fmt.Errorf("ivfflat lists must be positive, got %d", lists)
	}
	stmts := []string{
		fmt.Sprintf(`DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_turns_embedding_cosine') THEN
    IF EXISTS (SELECT 1 FROM conversation_turns LIMIT 1) THEN
      EXECUTE 'CREATE INDEX idx_turns_embedding_cosine ON conversation_turns USING ivfflat (user_embedding vector_cosine_ops) WITH (lists = %d)';
    END IF;
  END IF;
END$$;`, lists),
		fmt.Sprintf(`DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_memories_embedding_cosine') THEN
    IF EXISTS (SELECT 1 FROM user_memories LIMIT 1) THEN
      EXECUTE 'CREATE INDEX idx_memories_embedding_cosine ON user_memories USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)';
    END IF;
  END IF;
END$$;`, lists),
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("create ann index: %w", err)
		}
	}
	return nil
}
