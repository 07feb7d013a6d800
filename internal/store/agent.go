package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetOrCreateUser returns the user with the given id, creating it if absent.
func (s *Store) GetOrCreateUser(id, email string) (*User, error) {
	u, err := s.getUser(id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	now := time.Now().UTC()
	// Empty emails are stored as NULL so the unique index only binds
	// users that actually carry one.
	if _, err := s.db.Exec(
		`INSERT INTO users (id, email, created_at) VALUES (?, NULLIF(?, ''), ?)`,
		id, email, now.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &User{ID: id, Email: email, CreatedAt: now}, nil
}

func (s *Store) getUser(id string) (*User, error) {
	var u User
	var email, created sql.NullString
	err := s.db.QueryRow(`SELECT id, email, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &email, &created)
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	if t := scanTime(created); t != nil {
		u.CreatedAt = *t
	}
	return &u, nil
}

const agentColumns = `id, user_id, name, persona, romance_allowed, initiation_tendency,
	image_threshold, mood, affinity, timezone, base_image_url, last_mood_update_at, created_at`

func scanAgent(row interface{ Scan(...any) error }) (*Agent, error) {
	var a Agent
	var lastMood, created sql.NullString
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Persona, &a.RomanceAllowed,
		&a.InitiationTendency, &a.ImageThreshold, &a.Mood, &a.Affinity,
		&a.Timezone, &a.BaseImageURL, &lastMood, &created)
	if err != nil {
		return nil, err
	}
	a.LastMoodUpdateAt = scanTime(lastMood)
	if t := scanTime(created); t != nil {
		a.CreatedAt = *t
	}
	return &a, nil
}

// GetAgent returns the agent by id, or (nil, nil) if it does not exist.
// Unknown ids yield a neutral result rather than an error so callers
// cannot probe for existence.
func (s *Store) GetAgent(id string) (*Agent, error) {
	a, err := scanAgent(s.db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// GetOrCreateAgent returns the user's first agent, creating a default
// companion when the user has none yet.
func (s *Store) GetOrCreateAgent(userID string) (*Agent, error) {
	a, err := scanAgent(s.db.QueryRow(
		`SELECT `+agentColumns+` FROM agents WHERE user_id = ? ORDER BY created_at LIMIT 1`, userID))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find agent: %w", err)
	}
	// First contact may arrive through any surface; the owning user row
	// must exist before the agent insert.
	if _, err := s.GetOrCreateUser(userID, ""); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	agent := &Agent{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Name:               "Daniel",
		Persona:            "Witty, busy professional with warm evenings.",
		RomanceAllowed:     true,
		InitiationTendency: 0.4,
		ImageThreshold:     0.6,
		Mood:               0,
		Affinity:           0.3,
		Timezone:           "UTC",
		CreatedAt:          now,
	}
	if _, err := s.db.Exec(
		`INSERT INTO agents (id, user_id, name, persona, romance_allowed, initiation_tendency,
			image_threshold, mood, affinity, timezone, base_image_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?)`,
		agent.ID, agent.UserID, agent.Name, agent.Persona, agent.RomanceAllowed,
		agent.InitiationTendency, agent.ImageThreshold, agent.Mood, agent.Affinity,
		agent.Timezone, now.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	if err := s.seedDefaultScenarios(agent.ID); err != nil {
		return nil, err
	}
	return agent, nil
}

var defaultScenarios = []struct {
	Track, Title string
}{
	{"A", "Settling into the new apartment"},
	{"B", "The big project at work"},
	{"C", "Reconnecting with an old friend"},
	{"D", "Training for the spring race"},
}

func (s *Store) seedDefaultScenarios(agentID string) error {
	for _, sc := range defaultScenarios {
		if err := s.SeedScenario(agentID, sc.Track, sc.Title); err != nil {
			return fmt.Errorf("seed scenario %s: %w", sc.Track, err)
		}
	}
	return nil
}

// CreateAgent persists a caller-specified agent and returns it with an id.
func (s *Store) CreateAgent(a *Agent) (*Agent, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timezone == "" {
		a.Timezone = "UTC"
	}
	if a.ImageThreshold == 0 {
		a.ImageThreshold = 0.6
	}
	a.CreatedAt = time.Now().UTC()
	if _, err := s.db.Exec(
		`INSERT INTO agents (id, user_id, name, persona, romance_allowed, initiation_tendency,
			image_threshold, mood, affinity, timezone, base_image_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, a.Persona, a.RomanceAllowed, a.InitiationTendency,
		a.ImageThreshold, a.Mood, a.Affinity, a.Timezone, a.BaseImageURL,
		a.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	if err := s.seedDefaultScenarios(a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAgents returns every agent, oldest first. Used by background sweeps.
func (s *Store) ListAgents() ([]*Agent, error) {
	rows, err := s.db.Query(`SELECT ` + agentColumns + ` FROM agents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()
	var out []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetBaseImageURL stores the published base asset for the agent.
func (s *Store) SetBaseImageURL(agentID, url string) error {
	if _, err := s.db.Exec(`UPDATE agents SET base_image_url = ? WHERE id = ?`, url, agentID); err != nil {
		return fmt.Errorf("set base image: %w", err)
	}
	return nil
}

// ApplyMoodDelta applies a clamped mood delta in a single read-modify-write
// statement so concurrent background events cannot lose updates.
func (s *Store) ApplyMoodDelta(agentID string, delta float64, now time.Time) error {
	_, err := s.db.Exec(
		`UPDATE agents SET mood = MAX(-1.0, MIN(1.0, mood + ?)), last_mood_update_at = ? WHERE id = ?`,
		delta, now.UTC().Format(time.RFC3339Nano), agentID)
	if err != nil {
		return fmt.Errorf("apply mood delta: %w", err)
	}
	return nil
}
