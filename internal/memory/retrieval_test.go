package memory

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func setupIndexDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
CREATE TABLE semantic_memory (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	content TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX idx_semantic_agent ON semantic_memory(agent_id, updated_at);
`
	if _, err := db.Exec(schema); err != nil {
		t.Fatal(err)
	}
	return db
}

func insertMemory(t *testing.T, db *sql.DB, id, agentID, content, updatedAt string) {
	t.Helper()
	if _, err := db.Exec(
		`INSERT INTO semantic_memory (id, agent_id, content, updated_at) VALUES (?, ?, ?, ?)`,
		id, agentID, content, updatedAt); err != nil {
		t.Fatal(err)
	}
}

func TestQueryRanksByOverlap(t *testing.T) {
	db := setupIndexDB(t)
	insertMemory(t, db, "m1", "a1", "user enjoys jazz music and vinyl records", "2026-01-01T00:00:00Z")
	insertMemory(t, db, "m2", "a1", "user works in finance downtown", "2026-01-02T00:00:00Z")
	insertMemory(t, db, "m3", "a1", "user likes morning coffee walks", "2026-01-03T00:00:00Z")

	index := NewRetrievalIndex(db)
	matches := index.Query("a1", "any good jazz music lately", 2)
	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if matches[0].MemoryID != "m1" {
		t.Errorf("top match = %s, want m1", matches[0].MemoryID)
	}
	if len(matches) > 2 {
		t.Errorf("matches = %d, want at most topK", len(matches))
	}
}

func TestQueryScopedToAgent(t *testing.T) {
	db := setupIndexDB(t)
	insertMemory(t, db, "m1", "a1", "jazz music fan", "2026-01-01T00:00:00Z")
	insertMemory(t, db, "m2", "a2", "jazz music fan", "2026-01-01T00:00:00Z")

	index := NewRetrievalIndex(db)
	matches := index.Query("a1", "jazz music", 5)
	for _, m := range matches {
		if m.MemoryID == "m2" {
			t.Error("match leaked from another agent")
		}
	}
}

func TestQueryEmptyAndNilSafe(t *testing.T) {
	db := setupIndexDB(t)
	index := NewRetrievalIndex(db)

	if got := index.Query("a1", "", 5); got != nil {
		t.Errorf("empty query = %v, want nil", got)
	}
	if got := index.Query("a1", "anything", 0); got != nil {
		t.Errorf("topK 0 = %v, want nil", got)
	}

	var nilIndex *RetrievalIndex
	if got := nilIndex.Query("a1", "anything", 5); got != nil {
		t.Errorf("nil index = %v, want nil", got)
	}
	if NewRetrievalIndex(nil) != nil {
		t.Error("NewRetrievalIndex(nil) should be nil")
	}
}

func TestTokenizeDropsShortWords(t *testing.T) {
	tokens := tokenize("I am at a cafe, the Cafe!")
	if _, ok := tokens["cafe"]; !ok {
		t.Error("expected lowercase token cafe")
	}
	if _, ok := tokens["am"]; ok {
		t.Error("two-letter words should be dropped")
	}
}
