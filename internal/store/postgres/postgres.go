package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kennyhq/kenny-memory/internal/model"
	"github.com/kennyhq/kenny-memory/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Conversations() store.Conversations { return &conversations{db: s.db} }
func (s *pgStore) Turns() store.Turns                 { return &turns{db: s.db} }
func (s *pgStore) Memories() store.Memories           { return &memories{db: s.db} }
func (s *pgStore) Patterns() store.Patterns           { return &patterns{db: s.db} }
func (s *pgStore) Analytics() store.Analytics         { return &analytics{db: s.db} }

// HealthPing implements health.HealthPinger for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Conversations ---
type conversations struct{ db *sql.DB }

func (c *conversations) Create(ctx context.Context, m *model.Conversation) (*model.Conversation, error) {
	id := m.ConversationID
	if id == "" {
		id = uuid.New().String()
	}
	metaJSON, _ := json.Marshal(m.Metadata)
	var created, lastActivity, updated time.Time
	row := c.db.QueryRowContext(ctx, `
        INSERT INTO conversations (conversation_id, session_id, user_id, user_contact, metadata)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING creation_time, last_activity, update_time
    `, id, m.SessionID, m.UserID, m.UserContact, nullIfEmpty(metaJSON))
	if err := row.Scan(&created, &lastActivity, &updated); err != nil {
		return nil, mapError(err)
	}
	out := *m
	out.ConversationID = id
	out.Active = true
	out.TurnCount = 0
	out.CreationTime = created
	out.LastActivity = lastActivity
	out.UpdateTime = updated
	return &out, nil
}

func (c *conversations) GetBySessionID(ctx context.Context, sessionID string) (*model.Conversation, error) {
	var out model.Conversation
	var meta sql.NullString
	row := c.db.QueryRowContext(ctx, `
        SELECT conversation_id, session_id, user_id, user_contact, turn_count, is_active,
               metadata, creation_time, last_activity, update_time
        FROM conversations WHERE session_id=$1
    `, sessionID)
	if err := row.Scan(&out.ConversationID, &out.SessionID, &out.UserID, &out.UserContact,
		&out.TurnCount, &out.Active, &meta, &out.CreationTime, &out.LastActivity, &out.UpdateTime); err != nil {
		return nil, mapError(err)
	}
	if meta.Valid {
		_ = json.Unmarshal([]byte(meta.String), &out.Metadata)
	}
	return &out, nil
}

func (c *conversations) DeactivateInactiveSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
        UPDATE conversations SET is_active = FALSE, update_time = now()
        WHERE is_active AND last_activity < $1
        RETURNING session_id
    `, cutoff)
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
	metaJSON, _ := json.Marshal(m.Metadata)
	var created time.Time
	row := tx.QueryRowContext(ctx, `
        INSERT INTO conversation_turns
            (turn_id, conversation_id, turn_number, user_message, user_embedding,
             response, intent, confidence, agent, latency_ms, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING creation_time
    `, turnID, m.ConversationID, m.TurnNumber, m.UserMessage, nullableVector(m.UserEmbedding),
		m.Response, m.Intent, m.Confidence, nullIfEmptyStr(m.Agent), m.LatencyMs, nullIfEmpty(metaJSON))
	if err := row.Scan(&created); err != nil {
		return nil, mapError(err)
	}

	// Parent bookkeeping rides in the same transaction so a failure on
	// either side rolls back both.
	if _, err := tx.ExecContext(ctx, `
        UPDATE conversations
        SET last_activity = $2, turn_count = turn_count + 1, update_time = now()
        WHERE conversation_id = $1
    `, m.ConversationID, created); err != nil {
		return nil, mapError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError(err)
	}
	out := *m
	out.TurnID = turnID
	out.CreationTime = created
	return &out, nil
}

func (t *turns) Recent(ctx context.Context, conversationID string, limit int) ([]*model.Turn, error) {
	rows, err := t.db.QueryContext(ctx, `
        SELECT turn_id, conversation_id, turn_number, user_message, response,
               intent, confidence, agent, latency_ms, metadata, creation_time
        FROM conversation_turns
        WHERE conversation_id = $1
        ORDER BY turn_number DESC
        LIMIT $2
    `, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Turn
	for rows.Next() {
		var m model.Turn
		var meta, agent sql.NullString
		if err := rows.Scan(&m.TurnID, &m.ConversationID, &m.TurnNumber, &m.UserMessage,
			&m.Response, &m.Intent, &m.Confidence, &agent, &m.LatencyMs, &meta, &m.CreationTime); err != nil {
			return nil, err
		}
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
	// The similarity floor is translated into a distance ceiling once so
	// the comparison stays in the index's native unit.
	ceiling := 1 - threshold
	rows, err := t.db.QueryContext(ctx, `
        SELECT t.turn_id, t.conversation_id, c.session_id, t.turn_number,
               t.user_message, t.response, t.intent,
               1 - (t.user_embedding <=> $2::vector) AS similarity,
               t.creation_time
        FROM conversation_turns t
        JOIN conversations c ON c.conversation_id = t.conversation_id
        WHERE c.user_id = $1
          AND t.user_embedding IS NOT NULL
          AND t.user_embedding <=> $2::vector < $3
        ORDER BY t.user_embedding <=> $2::vector
        LIMIT $4
    `, userID, vectorLiteral(query), ceiling, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.TurnMatch
	for rows.Next() {
		var m model.TurnMatch
		if err := rows.Scan(&m.TurnID, &m.ConversationID, &m.SessionID, &m.TurnNumber,
			&m.UserMessage, &m.Response, &m.Intent, &m.Similarity, &m.CreationTime); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- Memories ---
type memories struct{ db *sql.DB }

func (m *memories) Create(ctx context.Context, mm *model.Memory) (*model.Memory, error) {
	id := mm.MemoryID
	if id == "" {
		id = uuid.New().String()
	}
	confidence := mm.Confidence
	if confidence == 0 {
		confidence = 1.0
	}
	metaJSON, _ := json.Marshal(mm.Metadata)
	var created time.Time
	row := m.db.QueryRowContext(ctx, `
        INSERT INTO user_memories
            (memory_id, user_id, memory_kind, content, embedding, confidence_score,
             source_conversation_id, source_turn_id, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING creation_time
    `, id, mm.UserID, string(mm.Kind), mm.Content, nullableVector(mm.Embedding), confidence,
		mm.SourceConversationID, mm.SourceTurnID, nullIfEmpty(metaJSON))
	if err := row.Scan(&created); err != nil {
		return nil, mapError(err)
	}
	out := *mm
	out.MemoryID = id
	out.Confidence = confidence
	out.Active = true
	out.CreationTime = created
	return &out, nil
}

func (m *memories) ListByUser(ctx context.Context, userID string, kind *model.MemoryKind, limit int) ([]*model.Memory, error) {
	query := `
        SELECT memory_id, user_id, memory_kind, content, confidence_score,
               source_conversation_id, source_turn_id, access_count, last_accessed,
               is_active, metadata, creation_time
        FROM user_memories
        WHERE user_id = $1 AND is_active`
	args := []interface{}{userID}
	if kind != nil {
		query += ` AND memory_kind = $2`
		args = append(args, string(*kind))
	}
	query += fmt.Sprintf(`
        ORDER BY last_accessed DESC NULLS LAST, confidence_score DESC
        LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Memory
	for rows.Next() {
		var mm model.Memory
		var kindStr string
		var meta sql.NullString
		var lastAccessed sql.NullTime
		if err := rows.Scan(&mm.MemoryID, &mm.UserID, &kindStr, &mm.Content, &mm.Confidence,
			&mm.SourceConversationID, &mm.SourceTurnID, &mm.AccessCount, &lastAccessed,
			&mm.Active, &meta, &mm.CreationTime); err != nil {
			return nil, err
		}
		mm.Kind = model.MemoryKind(kindStr)
		if lastAccessed.Valid {
			t := lastAccessed.Time
			mm.LastAccessed = &t
		}
		if meta.Valid {
			_ = json.Unmarshal([]byte(meta.String), &mm.Metadata)
		}
		out = append(out, &mm)
	}
	return out, rows.Err()
}

// SearchAndTouch computes the matched set once and applies the access-stat
// update and the result projection from that same set, in one statement.
// A memory is never touched without being returned, and never returned
// without being touched.
func (m *memories) SearchAndTouch(ctx context.Context, userID string, query []float32, threshold float64, limit int) ([]*model.MemoryMatch, error) {
	ceiling := 1 - threshold
	rows, err := m.db.QueryContext(ctx, `
        WITH matched AS (
            SELECT memory_id, embedding <=> $2::vector AS distance
            FROM user_memories
            WHERE user_id = $1 AND is_active AND embedding IS NOT NULL
              AND embedding <=> $2::vector < $3
            ORDER BY distance
            LIMIT $4
        )
        UPDATE user_memories m
        SET access_count = m.access_count + 1, last_accessed = now()
        FROM matched
        WHERE m.memory_id = matched.memory_id
        RETURNING m.memory_id, m.memory_kind, m.content, m.confidence_score,
                  1 - matched.distance, m.creation_time
    `, userID, vectorLiteral(query), ceiling, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.MemoryMatch
	for rows.Next() {
		var mm model.MemoryMatch
		var kindStr string
		if err := rows.Scan(&mm.MemoryID, &kindStr, &mm.Content, &mm.Confidence,
			&mm.Similarity, &mm.CreationTime); err != nil {
			return nil, err
		}
		mm.Kind = model.MemoryKind(kindStr)
		out = append(out, &mm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// UPDATE ... RETURNING does not guarantee row order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out, nil
}

func (m *memories) DeactivateStale(ctx context.Context, cutoff time.Time, confidenceFloor float64, accessFloor int) (int, error) {
	res, err := m.db.ExecContext(ctx, `
        UPDATE user_memories SET is_active = FALSE
        WHERE is_active
          AND creation_time < $1
          AND confidence_score < $2
          AND access_count < $3
    `, cutoff, confidenceFloor, accessFloor)
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
	out := *m
	row := p.db.QueryRowContext(ctx, `
        INSERT INTO user_patterns (pattern_id, user_id, pattern_type, pattern_data, confidence_score)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (user_id, pattern_type) DO UPDATE SET
            pattern_data     = EXCLUDED.pattern_data,
            confidence_score = EXCLUDED.confidence_score,
            sample_size      = user_patterns.sample_size + 1,
            update_time      = now()
        RETURNING pattern_id, sample_size, creation_time, update_time
    `, id, m.UserID, m.PatternType, dataJSON, m.Confidence)
	if err := row.Scan(&out.PatternID, &out.SampleSize, &out.CreationTime, &out.UpdateTime); err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

func (p *patterns) ListByUser(ctx context.Context, userID string) ([]*model.Pattern, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT pattern_id, user_id, pattern_type, pattern_data, confidence_score,
               sample_size, creation_time, update_time
        FROM user_patterns WHERE user_id = $1 ORDER BY pattern_type
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Pattern
	for rows.Next() {
		var m model.Pattern
		var data []byte
		if err := rows.Scan(&m.PatternID, &m.UserID, &m.PatternType, &data, &m.Confidence,
			&m.SampleSize, &m.CreationTime, &m.UpdateTime); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(data, &m.Data)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- Analytics ---
type analytics struct{ db *sql.DB }

func (a *analytics) Insert(ctx context.Context, e *model.AnalyticsEvent) (*model.AnalyticsEvent, error) {
	id := uuid.New().String()
	dataJSON, _ := json.Marshal(e.Data)
	var created time.Time
	row := a.db.QueryRowContext(ctx, `
        INSERT INTO analytics_events (event_id, conversation_id, turn_id, metric_name, metric_value, metric_data)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING creation_time
    `, id, e.ConversationID, e.TurnID, e.Name, e.Value, nullIfEmpty(dataJSON))
	if err := row.Scan(&created); err != nil {
		return nil, mapError(err)
	}
	out := *e
	out.EventID = id
	out.CreationTime = created
	return &out, nil
}

// helpers

// vectorLiteral renders a float32 slice in pgvector's text format, e.g.
// "[0.1,0.2,0.3]", for binding as $n::vector.
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func nullableVector(v []float32) interface{} {
	if len(v) == 0 {
		return nil
	}
	return vectorLiteral(v)
}

func nullIfEmpty(b []byte) interface{} {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return b
}

func nullIfEmptyStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// mapError translates driver errors into the model's sentinel taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", model.ErrConflict, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", model.ErrForeignKey, pgErr.ConstraintName)
		}
	}
	return err
}
