package memory

import (
	"database/sql"
	"sort"
	"strings"
)

// RetrievalIndex scores stored semantic memory rows against a query by
// lexical token overlap. It stands in for a remote vector index: best
// effort, empty results when unavailable.
type RetrievalIndex struct {
	db *sql.DB
}

// Match is one scored retrieval hit.
type Match struct {
	MemoryID string  `json:"id"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
}

// NewRetrievalIndex creates an index backed by the given database.
// Returns nil if db is nil (callers must handle nil gracefully).
func NewRetrievalIndex(db *sql.DB) *RetrievalIndex {
	if db == nil {
		return nil
	}
	return &RetrievalIndex{db: db}
}

// Query returns up to topK memory rows for the agent ranked by token
// overlap with text. A nil index or empty query yields no matches.
func (r *RetrievalIndex) Query(agentID, text string, topK int) []Match {
	if r == nil || r.db == nil || strings.TrimSpace(text) == "" || topK <= 0 {
		return nil
	}
	queryTokens := tokenize(text)
	if len(queryTokens) == 0 {
		return nil
	}

	rows, err := r.db.Query(
		`SELECT id, content FROM semantic_memory WHERE agent_id = ? ORDER BY updated_at DESC LIMIT 50`,
		agentID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var id, content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil
		}
		score := overlap(queryTokens, tokenize(content))
		if score > 0 {
			matches = append(matches, Match{MemoryID: id, Content: content, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

func tokenize(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if len(w) >= 3 {
			tokens[w] = struct{}{}
		}
	}
	return tokens
}

func overlap(query, doc map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for t := range query {
		if _, ok := doc[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
