// Package sqlite implements the store on a single-file SQLite database
// with sqlite-vec virtual tables for embedding search. It backs the local
// build target where no Postgres is available.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	// The vec bindings embed a SQLite build with the vec0 module compiled
	// in. Importing go-sqlite3/embed as well would replace that binary with
	// the stock build and every vec0 statement would fail.
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/kennyhq/kenny-memory/internal/model"
	"github.com/kennyhq/kenny-memory/internal/store"
)

// timeLayout is fixed width and UTC, so stored timestamps compare
// correctly as strings.
const timeLayout = "2006-01-02 15:04:05.000000000"

// knnOverfetch widens the vec0 k so post-KNN filters (user, active,
// distance ceiling) still leave enough candidates. The KNN is global
// across users, so a user's qualifying rows beyond the top limit*4
// overall can still be missed when many users share the database. The
// local build target holds a single user's data, which keeps that
// recall bound acceptable.
const knnOverfetch = 4

// Open opens (creating if needed) the database at path and applies the
// schema, including the vec0 virtual tables.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	dsn := "file:" + path +
		"?_pragma=journal_mode(wal)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(vecSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a SQLite-backed store over an opened database.
func NewWithDB(db *sql.DB) store.Store { return &liteStore{db: db} }

type liteStore struct{ db *sql.DB }

func (s *liteStore) Conversations() store.Conversations { return &conversations{db: s.db} }
func (s *liteStore) Turns() store.Turns                 { return &turns{db: s.db} }
func (s *liteStore) Memories() store.Memories           { return &memories{db: s.db} }
func (s *liteStore) Patterns() store.Patterns           { return &patterns{db: s.db} }
func (s *liteStore) Analytics() store.Analytics         { return &analytics{db: s.db} }

func (s *liteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Conversations ---
type conversations struct{ db *sql.DB }

func (c *conversations) Create(ctx context.Context, m *model.Conversation) (*model.Conversation, error) {
	id := m.ConversationID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	metaJSON, _ := json.Marshal(m.Metadata)
	_, err := c.db.ExecContext(ctx, `
        INSERT INTO conversations
            (conversation_id, session_id, user_id, user_contact, metadata,
             creation_time, last_activity, update_time)
        VALUES (?,?,?,?,?,?,?,?)
    `, id, m.SessionID, m.UserID, m.UserContact, nullIfEmpty(metaJSON),
		fmtTime(now), fmtTime(now), fmtTime(now))
	if err != nil {
		return nil, mapError(err)
	}
	out := *m
	out.ConversationID = id
	out.Active = true
	out.TurnCount = 0
	out.CreationTime = now
	out.LastActivity = now
	out.UpdateTime = now
	return &out, nil
}

func (c *conversations) GetBySessionID(ctx context.Context, sessionID string) (*model.Conversation, error) {
	var out model.Conversation
	var meta sql.NullString
	var created, lastActivity, updated string
	row := c.db.QueryRowContext(ctx, `
        SELECT conversation_id, session_id, user_id, user_contact, turn_count, is_active,
               metadata, creation_time, last_activity, update_time
        FROM conversations WHERE session_id = ?
    `, sessionID)
	if err := row.Scan(&out.ConversationID, &out.SessionID, &out.UserID, &out.UserContact,
		&out.TurnCount, &out.Active, &meta, &created, &lastActivity, &updated); err != nil {
		return nil, mapError(err)
	}
	out.CreationTime = parseTime(created)
	out.LastActivity = parseTime(lastActivity)
	out.UpdateTime = parseTime(updated)
	if meta.Valid {
		_ = json.Unmarshal([]byte(meta.String), &out.Metadata)
	}
	return &out, nil
}

func (c *conversations) DeactivateInactiveSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
        UPDATE conversations SET is_active = 0, update_time = ?
        WHERE is_active AND last_activity < ?
        RETURNING session_id
    `, fmtTime(time.Now().UTC()), fmtTime(cutoff))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var sessionIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sessionIDs = append(sessionIDs, id)
	}
	return sessionIDs, rows.Err()
}

// --- Turns ---
type turns struct{ db *sql.DB }

func (t *turns) Append(ctx context.Context, m *model.Turn) (*model.Turn, error) {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	turnID := uuid.New().String()
	now := time.Now().UTC()
	metaJSON, _ := json.Marshal(m.Metadata)
	var rowid int64
	row := tx.QueryRowContext(ctx, `
        INSERT INTO conversation_turns
            (turn_id, conversation_id, turn_number, user_message, response,
             intent, confidence, agent, latency_ms, metadata, creation_time)
        VALUES (?,?,?,?,?,?,?,?,?,?,?)
        RETURNING rowid
    `, turnID, m.ConversationID, m.TurnNumber, m.UserMessage, m.Response,
		m.Intent, m.Confidence, nullIfEmptyStr(m.Agent), m.LatencyMs,
		nullIfEmpty(metaJSON), fmtTime(now))
	if err := row.Scan(&rowid); err != nil {
		return nil, mapError(err)
	}

	if len(m.UserEmbedding) > 0 {
		blob, err := sqlite_vec.SerializeFloat32(m.UserEmbedding)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_turns (turn_rowid, embedding) VALUES (?,?)`, rowid, blob); err != nil {
			return nil, mapError(err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
        UPDATE conversations
        SET last_activity = ?, turn_count = turn_count + 1, update_time = ?
        WHERE conversation_id = ?
    `, fmtTime(now), fmtTime(now), m.ConversationID); err != nil {
		return nil, mapError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError(err)
	}
	out := *m
	out.TurnID = turnID
	out.CreationTime = now
	return &out, nil
}

func (t *turns) Recent(ctx context.Context, conversationID string, limit int) ([]*model.Turn, error) {
	rows, err := t.db.QueryContext(ctx, `
        SELECT turn_id, conversation_id, turn_number, user_message, response,
               intent, confidence, agent, latency_ms, metadata, creation_time
        FROM conversation_turns
        WHERE conversation_id = ?
        ORDER BY turn_number DESC
        LIMIT ?
    `, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Turn
	for rows.Next() {
		var m model.Turn
		var meta, agent sql.NullString
		var created string
		if err := rows.Scan(&m.TurnID, &m.ConversationID, &m.TurnNumber, &m.UserMessage,
			&m.Response, &m.Intent, &m.Confidence, &agent, &m.LatencyMs, &meta, &created); err != nil {
			return nil, err
		}
		m.CreationTime = parseTime(created)
		if agent.Valid {
			m.Agent = agent.String
		}
		if meta.Valid {
			_ = json.Unmarshal([]byte(meta.String), &m.Metadata)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (t *turns) SearchBySimilarity(ctx context.Context, userID string, query []float32, threshold float64, limit int) ([]*model.TurnMatch, error) {
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, err
	}
	ceiling := 1 - threshold
	rows, err := t.db.QueryContext(ctx, `
        SELECT t.turn_id, t.conversation_id, c.session_id, t.turn_number,
               t.user_message, t.response, t.intent, v.distance, t.creation_time
        FROM vec_turns v
        JOIN conversation_turns t ON t.rowid = v.turn_rowid
        JOIN conversations c ON c.conversation_id = t.conversation_id
        WHERE v.embedding MATCH ?
          AND k = ?
          AND c.user_id = ?
        ORDER BY v.distance
    `, blob, limit*knnOverfetch, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.TurnMatch
	for rows.Next() {
		var m model.TurnMatch
		var distance float64
		var created string
		if err := rows.Scan(&m.TurnID, &m.ConversationID, &m.SessionID, &m.TurnNumber,
			&m.UserMessage, &m.Response, &m.Intent, &distance, &created); err != nil {
			return nil, err
		}
		if distance >= ceiling {
			continue
		}
		m.Similarity = 1 - distance
		m.CreationTime = parseTime(created)
		out = append(out, &m)
		if len(out) == limit {
			break
		}
	}
	return out, rows.Err()
}

// --- Memories ---
type memories struct{ db *sql.DB }

func (m *memories) Create(ctx context.Context, mm *model.Memory) (*model.Memory, error) {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	id := mm.MemoryID
	if id == "" {
		id = uuid.New().String()
	}
	confidence := mm.Confidence
	if confidence == 0 {
		confidence = 1.0
	}
	now := time.Now().UTC()
	metaJSON, _ := json.Marshal(mm.Metadata)
	var rowid int64
	row := tx.QueryRowContext(ctx, `
        INSERT INTO user_memories
            (memory_id, user_id, memory_kind, content, confidence_score,
             source_conversation_id, source_turn_id, metadata, creation_time)
        VALUES (?,?,?,?,?,?,?,?,?)
        RETURNING rowid
    `, id, mm.UserID, string(mm.Kind), mm.Content, confidence,
		mm.SourceConversationID, mm.SourceTurnID, nullIfEmpty(metaJSON), fmtTime(now))
	if err := row.Scan(&rowid); err != nil {
		return nil, mapError(err)
	}

	if len(mm.Embedding) > 0 {
		blob, err := sqlite_vec.SerializeFloat32(mm.Embedding)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_memories (memory_rowid, embedding) VALUES (?,?)`, rowid, blob); err != nil {
			return nil, mapError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError(err)
	}
	out := *mm
	out.MemoryID = id
	out.Confidence = confidence
	out.Active = true
	out.CreationTime = now
	return &out, nil
}

func (m *memories) ListByUser(ctx context.Context, userID string, kind *model.MemoryKind, limit int) ([]*model.Memory, error) {
	query := `
        SELECT memory_id, user_id, memory_kind, content, confidence_score,
               source_conversation_id, source_turn_id, access_count, last_accessed,
               is_active, metadata, creation_time
        FROM user_memories
        WHERE user_id = ? AND is_active`
	args := []interface{}{userID}
	if kind != nil {
		query += ` AND memory_kind = ?`
		args = append(args, string(*kind))
	}
	query += `
        ORDER BY (last_accessed IS NULL), last_accessed DESC, confidence_score DESC
        LIMIT ?`
	args = append(args, limit)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Memory
	for rows.Next() {
		var mm model.Memory
		var kindStr, created string
		var meta, lastAccessed sql.NullString
		if err := rows.Scan(&mm.MemoryID, &mm.UserID, &kindStr, &mm.Content, &mm.Confidence,
			&mm.SourceConversationID, &mm.SourceTurnID, &mm.AccessCount, &lastAccessed,
			&mm.Active, &meta, &created); err != nil {
			return nil, err
		}
		mm.Kind = model.MemoryKind(kindStr)
		mm.CreationTime = parseTime(created)
		if lastAccessed.Valid {
			t := parseTime(lastAccessed.String)
			mm.LastAccessed = &t
		}
		if meta.Valid {
			_ = json.Unmarshal([]byte(meta.String), &mm.Metadata)
		}
		out = append(out, &mm)
	}
	return out, rows.Err()
}

func (m *memories) SearchAndTouch(ctx context.Context, userID string, query []float32, threshold float64, limit int) ([]*model.MemoryMatch, error) {
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, err
	}
	ceiling := 1 - threshold

	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
        SELECT um.memory_id, um.memory_kind, um.content, um.confidence_score,
               v.distance, um.creation_time
        FROM vec_memories v
        JOIN user_memories um ON um.rowid = v.memory_rowid
        WHERE v.embedding MATCH ?
          AND k = ?
          AND um.user_id = ?
          AND um.is_active
        ORDER BY v.distance
    `, blob, limit*knnOverfetch, userID)
	if err != nil {
		return nil, err
	}
	var out []*model.MemoryMatch
	for rows.Next() {
		var mm model.MemoryMatch
		var kindStr, created string
		var distance float64
		if err := rows.Scan(&mm.MemoryID, &kindStr, &mm.Content, &mm.Confidence,
			&distance, &created); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if distance >= ceiling {
			continue
		}
		mm.Kind = model.MemoryKind(kindStr)
		mm.Similarity = 1 - distance
		mm.CreationTime = parseTime(created)
		out = append(out, &mm)
		if len(out) == limit {
			break
		}
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Touch exactly the rows being returned, inside the same transaction.
	if len(out) > 0 {
		placeholders := strings.Repeat("?,", len(out))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]interface{}, 0, len(out)+1)
		args = append(args, fmtTime(time.Now().UTC()))
		for _, mm := range out {
			args = append(args, mm.MemoryID)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
            UPDATE user_memories
            SET access_count = access_count + 1, last_accessed = ?
            WHERE memory_id IN (%s)
        `, placeholders), args...); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *memories) DeactivateStale(ctx context.Context, cutoff time.Time, confidenceFloor float64, accessFloor int) (int, error) {
	res, err := m.db.ExecContext(ctx, `
        UPDATE user_memories SET is_active = 0
        WHERE is_active
          AND creation_time < ?
          AND confidence_score < ?
          AND access_count < ?
    `, fmtTime(cutoff), confidenceFloor, accessFloor)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// --- Patterns ---
type patterns struct{ db *sql.DB }

func (p *patterns) Upsert(ctx context.Context, m *model.Pattern) (*model.Pattern, error) {
	id := uuid.New().String()
	dataJSON, err := json.Marshal(m.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern data: %v", model.ErrValidation, err)
	}
	now := fmtTime(time.Now().UTC())
	out := *m
	var created, updated string
	row := p.db.QueryRowContext(ctx, `
        INSERT INTO user_patterns
            (pattern_id, user_id, pattern_type, pattern_data, confidence_score, creation_time, update_time)
        VALUES (?,?,?,?,?,?,?)
        ON CONFLICT (user_id, pattern_type) DO UPDATE SET
            pattern_data     = excluded.pattern_data,
            confidence_score = excluded.confidence_score,
            sample_size      = user_patterns.sample_size + 1,
            update_time      = excluded.update_time
        RETURNING pattern_id, sample_size, creation_time, update_time
    `, id, m.UserID, m.PatternType, string(dataJSON), m.Confidence, now, now)
	if err := row.Scan(&out.PatternID, &out.SampleSize, &created, &updated); err != nil {
		return nil, mapError(err)
	}
	out.CreationTime = parseTime(created)
	out.UpdateTime = parseTime(updated)
	return &out, nil
}

func (p *patterns) ListByUser(ctx context.Context, userID string) ([]*model.Pattern, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT pattern_id, user_id, pattern_type, pattern_data, confidence_score,
               sample_size, creation_time, update_time
        FROM user_patterns WHERE user_id = ? ORDER BY pattern_type
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Pattern
	for rows.Next() {
		var m model.Pattern
		var data, created, updated string
		if err := rows.Scan(&m.PatternID, &m.UserID, &m.PatternType, &data, &m.Confidence,
			&m.SampleSize, &created, &updated); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(data), &m.Data)
		m.CreationTime = parseTime(created)
		m.UpdateTime = parseTime(updated)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- Analytics ---
type analytics struct{ db *sql.DB }

func (a *analytics) Insert(ctx context.Context, e *model.AnalyticsEvent) (*model.AnalyticsEvent, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	dataJSON, _ := json.Marshal(e.Data)
	_, err := a.db.ExecContext(ctx, `
        INSERT INTO analytics_events
            (event_id, conversation_id, turn_id, metric_name, metric_value, metric_data, creation_time)
        VALUES (?,?,?,?,?,?,?)
    `, id, e.ConversationID, e.TurnID, e.Name, e.Value, nullIfEmpty(dataJSON), fmtTime(now))
	if err != nil {
		return nil, mapError(err)
	}
	out := *e
	out.EventID = id
	out.CreationTime = now
	return &out, nil
}

// helpers

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullIfEmpty(b []byte) interface{} {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return string(b)
}

func nullIfEmptyStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", model.ErrConflict, msg)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %s", model.ErrForeignKey, msg)
	}
	return err
}
