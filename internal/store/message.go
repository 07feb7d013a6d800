package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateMessage appends a single message row outside any turn transaction
// (image deliveries, agent-initiated messages).
func (s *Store) CreateMessage(m *Message) (*Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()
	if _, err := s.db.Exec(
		`INSERT INTO messages (id, user_id, agent_id, role, text, image_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.AgentID, m.Role, m.Text, m.ImageURL,
		m.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

// RecentMessages returns the last n messages for an agent in
// chronological order.
func (s *Store) RecentMessages(agentID string, n int) ([]*Message, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, agent_id, role, text, image_url, created_at
		 FROM messages WHERE agent_id = ? ORDER BY created_at DESC LIMIT ?`,
		agentID, n)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()
	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	var m Message
	var created sql.NullString
	if err := row.Scan(&m.ID, &m.UserID, &m.AgentID, &m.Role, &m.Text, &m.ImageURL, &created); err != nil {
		return nil, err
	}
	if t := scanTime(created); t != nil {
		m.CreatedAt = *t
	}
	return &m, nil
}

// CountInitiationsSince counts initiation events recorded at or after
// the cutoff. Replies to user messages never count against the daily
// initiation cap; only messages the agent opened unprompted do.
func (s *Store) CountInitiationsSince(agentID string, cutoff time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM events WHERE agent_id = ? AND type = ? AND occurred_at >= ?`,
		agentID, EventInitiation, cutoff.UTC().Format(time.RFC3339Nano)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count initiations: %w", err)
	}
	return n, nil
}

// Turn is the persisted outcome of one chat exchange. Everything in a
// turn commits atomically with the agent scalar update that triggered
// it, so concurrent sends for the same agent cannot lose mood or
// affinity writes.
type Turn struct {
	Agent         *Agent
	UserMessage   *Message
	AgentMessage  *Message
	AffinityDelta *AffinityDelta
}

// SaveTurn writes both messages, the affinity audit row, and the updated
// agent scalars in one transaction.
func (s *Store) SaveTurn(t *Turn) error {
	now := time.Now().UTC()
	for _, m := range []*Message{t.UserMessage, t.AgentMessage} {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
			// Keep insertion order stable for equal wall clocks.
			now = now.Add(time.Microsecond)
		}
	}
	d := t.AffinityDelta
	if d != nil {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		if d.MessageID == "" {
			d.MessageID = t.UserMessage.ID
		}
	}
	return s.withTx(func(tx *sql.Tx) error {
		a := t.Agent
		var lastMood any
		if a.LastMoodUpdateAt != nil {
			lastMood = a.LastMoodUpdateAt.UTC().Format(time.RFC3339Nano)
		}
		if _, err := tx.Exec(
			`UPDATE agents SET mood = ?, affinity = ?, last_mood_update_at = ? WHERE id = ?`,
			a.Mood, a.Affinity, lastMood, a.ID,
		); err != nil {
			return fmt.Errorf("update agent scalars: %w", err)
		}
		for _, m := range []*Message{t.UserMessage, t.AgentMessage} {
			if _, err := tx.Exec(
				`INSERT INTO messages (id, user_id, agent_id, role, text, image_url, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				m.ID, m.UserID, m.AgentID, m.Role, m.Text, m.ImageURL,
				m.CreatedAt.Format(time.RFC3339Nano),
			); err != nil {
				return fmt.Errorf("insert message: %w", err)
			}
		}
		if d != nil {
			if _, err := tx.Exec(
				`INSERT INTO affinity_deltas (id, agent_id, message_id, feature, delta, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				d.ID, d.AgentID, d.MessageID, d.Feature, d.Delta,
				d.CreatedAt.Format(time.RFC3339Nano),
			); err != nil {
				return fmt.Errorf("insert affinity delta: %w", err)
			}
		}
		return nil
	})
}

// ListAffinityDeltas returns the audit trail for an agent, oldest first.
func (s *Store) ListAffinityDeltas(agentID string) ([]*AffinityDelta, error) {
	rows, err := s.db.Query(
		`SELECT id, agent_id, message_id, feature, delta, created_at
		 FROM affinity_deltas WHERE agent_id = ? ORDER BY created_at`,
		agentID)
	if err != nil {
		return nil, fmt.Errorf("list affinity deltas: %w", err)
	}
	defer rows.Close()
	var out []*AffinityDelta
	for rows.Next() {
		var d AffinityDelta
		var msgID, created sql.NullString
		if err := rows.Scan(&d.ID, &d.AgentID, &msgID, &d.Feature, &d.Delta, &created); err != nil {
			return nil, err
		}
		d.MessageID = msgID.String
		if t := scanTime(created); t != nil {
			d.CreatedAt = *t
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
