package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    conversation_id TEXT PRIMARY KEY,
    session_id      TEXT NOT NULL UNIQUE,
    user_id         TEXT NOT NULL,
    user_contact    TEXT,
    turn_count      INTEGER NOT NULL DEFAULT 0,
    is_active       INTEGER NOT NULL DEFAULT 1,
    metadata        TEXT,
    creation_time   TEXT NOT NULL,
    last_activity   TEXT NOT NULL,
    update_time     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);
CREATE INDEX IF NOT EXISTS idx_conversations_last_activity ON conversations(last_activity);

CREATE TABLE IF NOT EXISTS conversation_turns (
    turn_id         TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(conversation_id) ON DELETE CASCADE,
    turn_number     INTEGER NOT NULL,
    user_message    TEXT NOT NULL,
    response        TEXT NOT NULL,
    intent          TEXT NOT NULL DEFAULT '',
    confidence      REAL NOT NULL DEFAULT 0,
    agent           TEXT,
    latency_ms      INTEGER NOT NULL DEFAULT 0,
    metadata        TEXT,
    creation_time   TEXT NOT NULL,
    UNIQUE(conversation_id, turn_number)
);

CREATE INDEX IF NOT EXISTS idx_turns_conversation ON conversation_turns(conversation_id, turn_number);
CREATE INDEX IF NOT EXISTS idx_turns_intent ON conversation_turns(intent);

CREATE TABLE IF NOT EXISTS user_memories (
    memory_id              TEXT PRIMARY KEY,
    user_id                TEXT NOT NULL,
    memory_kind            TEXT NOT NULL CHECK (memory_kind IN ('preference','fact','pattern','relationship')),
    content                TEXT NOT NULL,
    confidence_score       REAL NOT NULL DEFAULT 1.0,
    source_conversation_id TEXT REFERENCES conversations(conversation_id) ON DELETE SET NULL,
    source_turn_id         TEXT REFERENCES conversation_turns(turn_id) ON DELETE SET NULL,
    access_count           INTEGER NOT NULL DEFAULT 0,
    last_accessed          TEXT,
    is_active              INTEGER NOT NULL DEFAULT 1,
    metadata               TEXT,
    creation_time          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_user_kind ON user_memories(user_id, memory_kind);

CREATE TABLE IF NOT EXISTS user_patterns (
    pattern_id       TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    pattern_type     TEXT NOT NULL,
    pattern_data     TEXT NOT NULL,
    confidence_score REAL NOT NULL DEFAULT 0,
    sample_size      INTEGER NOT NULL DEFAULT 1,
    creation_time    TEXT NOT NULL,
    update_time      TEXT NOT NULL,
    UNIQUE(user_id, pattern_type)
);

CREATE TABLE IF NOT EXISTS analytics_events (
    event_id        TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(conversation_id) ON DELETE CASCADE,
    turn_id         TEXT REFERENCES conversation_turns(turn_id) ON DELETE SET NULL,
    metric_name     TEXT NOT NULL,
    metric_value    REAL NOT NULL DEFAULT 0,
    metric_data     TEXT,
    creation_time   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_conversation ON analytics_events(conversation_id);
`

// Embeddings live in vec0 virtual tables keyed by the base table's rowid.
// Turn and memory embeddings come from different models and never share
// a table.
const vecSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS vec_turns USING vec0(
    turn_rowid INTEGER PRIMARY KEY,
    embedding FLOAT[768] distance_metric=cosine
);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_memories USING vec0(
    memory_rowid INTEGER PRIMARY KEY,
    embedding FLOAT[1024] distance_metric=cosine
);
`
