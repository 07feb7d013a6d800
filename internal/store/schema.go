package store

import (
	"time"
)

// User owns one or more agents.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Device is a registered push target for a user.
type Device struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Platform   string     `json:"platform"`
	PushToken  string     `json:"push_token"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// Agent is the persisted companion state for one user/agent pair.
// Mood is clamped to [-1,1] and affinity to [0,1] by every writer.
type Agent struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Name               string     `json:"name"`
	Persona            string     `json:"persona"`
	RomanceAllowed     bool       `json:"romance_allowed"`
	InitiationTendency float64    `json:"initiation_tendency"`
	ImageThreshold     float64    `json:"image_threshold"`
	Mood               float64    `json:"mood"`
	Affinity           float64    `json:"affinity"`
	Timezone           string     `json:"timezone"`
	BaseImageURL       string     `json:"base_image_url,omitempty"`
	LastMoodUpdateAt   *time.Time `json:"last_mood_update_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Message is one turn in the conversation history.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	AgentID   string    `json:"agent_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AffinityDelta is an append-only provenance record for one affinity
// mutation. Rows are never updated or deleted.
type AffinityDelta struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	MessageID string    `json:"message_id,omitempty"`
	Feature   string    `json:"feature"`
	Delta     float64   `json:"delta"`
	CreatedAt time.Time `json:"created_at"`
}

// SemanticMemory is an append-only snapshot of summarized stable facts.
// The newest row by UpdatedAt is authoritative; older rows are history.
type SemanticMemory struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event records a background life event rolled for an agent.
type Event struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	Type       string    `json:"type"`
	Payload    string    `json:"payload"`
	MoodDelta  float64   `json:"mood_delta"`
	Seed       int64     `json:"seed"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Scenario is one narrative track (A-D) seeded for an agent.
type Scenario struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Track     string    `json:"track"`
	Title     string    `json:"title"`
	Progress  float64   `json:"progress"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ImageJob tracks one visual-identity generation or edit through the
// external provider. Status is monotonic: queued -> running -> terminal.
type ImageJob struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Prompt    string    `json:"prompt"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	ResultURL string    `json:"result_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the job has reached a final status.
func (j *ImageJob) Terminal() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}

const (
	RoleUser  = "user"
	RoleAgent = "agent"

	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"

	KindBase = "base"
	KindGen  = "gen"
	KindEdit = "edit"

	EventDaily      = "daily"
	EventInitiation = "initiation"
)

// Schema is applied on every open; statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS user_devices (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	platform TEXT NOT NULL,
	push_token TEXT NOT NULL,
	last_seen_at DATETIME,
	UNIQUE(user_id, push_token)
);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	persona TEXT NOT NULL DEFAULT '',
	romance_allowed BOOLEAN NOT NULL DEFAULT 0,
	initiation_tendency REAL NOT NULL DEFAULT 0.4,
	image_threshold REAL NOT NULL DEFAULT 0.6,
	mood REAL NOT NULL DEFAULT 0,
	affinity REAL NOT NULL DEFAULT 0.3,
	timezone TEXT NOT NULL DEFAULT 'UTC',
	base_image_url TEXT NOT NULL DEFAULT '',
	last_mood_update_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_agents_user ON agents(user_id);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_agent_created ON messages(agent_id, created_at);

CREATE TABLE IF NOT EXISTS affinity_deltas (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	message_id TEXT,
	feature TEXT NOT NULL,
	delta REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_affinity_agent ON affinity_deltas(agent_id);

CREATE TABLE IF NOT EXISTS semantic_memory (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_semantic_agent_updated ON semantic_memory(agent_id, updated_at);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '{}',
	mood_delta REAL NOT NULL DEFAULT 0,
	seed INTEGER NOT NULL DEFAULT 0,
	occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_events_agent_occurred ON events(agent_id, occurred_at);

CREATE TABLE IF NOT EXISTS scenarios (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	track TEXT NOT NULL CHECK (track IN ('A','B','C','D')),
	title TEXT NOT NULL,
	progress REAL NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(agent_id, track)
);

CREATE TABLE IF NOT EXISTS image_jobs (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	prompt TEXT NOT NULL,
	kind TEXT NOT NULL CHECK (kind IN ('base','gen','edit')),
	status TEXT NOT NULL CHECK (status IN ('queued','running','succeeded','failed')),
	result_url TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_image_jobs_agent ON image_jobs(agent_id, created_at);
CREATE INDEX IF NOT EXISTS idx_image_jobs_status ON image_jobs(status);
`
