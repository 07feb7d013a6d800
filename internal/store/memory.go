package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LatestSemanticMemory returns the newest memory row for an agent, or
// (nil, nil) when none exists yet.
func (s *Store) LatestSemanticMemory(agentID string) (*SemanticMemory, error) {
	var m SemanticMemory
	var updated sql.NullString
	err := s.db.QueryRow(
		`SELECT id, agent_id, content, updated_at FROM semantic_memory
		 WHERE agent_id = ? ORDER BY updated_at DESC LIMIT 1`, agentID).
		Scan(&m.ID, &m.AgentID, &m.Content, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest semantic memory: %w", err)
	}
	if t := scanTime(updated); t != nil {
		m.UpdatedAt = *t
	}
	return &m, nil
}

// AppendSemanticMemory inserts a new snapshot row. Prior rows are
// retained untouched; history is never merged or overwritten.
func (s *Store) AppendSemanticMemory(agentID, content string) (*SemanticMemory, error) {
	m := &SemanticMemory{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Content:   content,
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := s.db.Exec(
		`INSERT INTO semantic_memory (id, agent_id, content, updated_at) VALUES (?, ?, ?, ?)`,
		m.ID, m.AgentID, m.Content, m.UpdatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("append semantic memory: %w", err)
	}
	return m, nil
}

// AppendEvent records a background life event.
func (s *Store) AppendEvent(e *Event) (*Event, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if e.Payload == "" {
		e.Payload = "{}"
	}
	if _, err := s.db.Exec(
		`INSERT INTO events (id, agent_id, type, payload, mood_delta, seed, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AgentID, e.Type, e.Payload, e.MoodDelta, e.Seed,
		e.OccurredAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}
	return e, nil
}

// LastEventOfType returns the newest event of the given type, or (nil, nil).
func (s *Store) LastEventOfType(agentID, eventType string) (*Event, error) {
	var e Event
	var occurred sql.NullString
	err := s.db.QueryRow(
		`SELECT id, agent_id, type, payload, mood_delta, seed, occurred_at FROM events
		 WHERE agent_id = ? AND type = ? ORDER BY occurred_at DESC LIMIT 1`,
		agentID, eventType).
		Scan(&e.ID, &e.AgentID, &e.Type, &e.Payload, &e.MoodDelta, &e.Seed, &occurred)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last event: %w", err)
	}
	if t := scanTime(occurred); t != nil {
		e.OccurredAt = *t
	}
	return &e, nil
}

// SeedScenario upserts one narrative track for an agent.
func (s *Store) SeedScenario(agentID, track, title string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(
		`INSERT INTO scenarios (id, agent_id, track, title, progress, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?)
		 ON CONFLICT(agent_id, track) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at`,
		uuid.NewString(), agentID, track, title, now)
	if err != nil {
		return fmt.Errorf("seed scenario: %w", err)
	}
	return nil
}

// ScenariosForAgent returns the agent's scenario tracks ordered by track.
func (s *Store) ScenariosForAgent(agentID string) ([]*Scenario, error) {
	rows, err := s.db.Query(
		`SELECT id, agent_id, track, title, progress, updated_at FROM scenarios
		 WHERE agent_id = ? ORDER BY track`, agentID)
	if err != nil {
		return nil, fmt.Errorf("scenarios: %w", err)
	}
	defer rows.Close()
	var out []*Scenario
	for rows.Next() {
		var sc Scenario
		var updated sql.NullString
		if err := rows.Scan(&sc.ID, &sc.AgentID, &sc.Track, &sc.Title, &sc.Progress, &updated); err != nil {
			return nil, err
		}
		if t := scanTime(updated); t != nil {
			sc.UpdatedAt = *t
		}
		out = append(out, &sc)
	}
	return out, rows.Err()
}

// UpsertDevice registers or refreshes a push target, keyed by
// (user, token).
func (s *Store) UpsertDevice(userID, platform, token string) (*Device, error) {
	// Pairing can be the user's very first contact with the backend.
	if _, err := s.GetOrCreateUser(userID, ""); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	d := &Device{
		ID:         uuid.NewString(),
		UserID:     userID,
		Platform:   platform,
		PushToken:  token,
		LastSeenAt: &now,
	}
	_, err := s.db.Exec(
		`INSERT INTO user_devices (id, user_id, platform, push_token, last_seen_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, push_token) DO UPDATE SET platform = excluded.platform, last_seen_at = excluded.last_seen_at`,
		d.ID, d.UserID, d.Platform, d.PushToken, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("upsert device: %w", err)
	}
	// On conflict the original row id survives; return what is stored.
	if err := s.db.QueryRow(
		`SELECT id FROM user_devices WHERE user_id = ? AND push_token = ?`,
		userID, token).Scan(&d.ID); err != nil {
		return nil, fmt.Errorf("upsert device: %w", err)
	}
	return d, nil
}

// DevicesForUser returns the user's registered push targets.
func (s *Store) DevicesForUser(userID string) ([]*Device, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, platform, push_token, last_seen_at FROM user_devices WHERE user_id = ?`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("devices: %w", err)
	}
	defer rows.Close()
	var out []*Device
	for rows.Next() {
		var d Device
		var seen sql.NullString
		if err := rows.Scan(&d.ID, &d.UserID, &d.Platform, &d.PushToken, &seen); err != nil {
			return nil, err
		}
		d.LastSeenAt = scanTime(seen)
		out = append(out, &d)
	}
	return out, rows.Err()
}
