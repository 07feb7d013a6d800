package memory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/withme/withme/internal/provider"
	"github.com/withme/withme/internal/store"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt string, messages []provider.Message) (string, error) {
	f.calls++
	return f.reply, f.err
}

func refresherFixture(t *testing.T) (*store.Store, *store.Agent) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	user, err := st.GetOrCreateUser("u1", "")
	if err != nil {
		t.Fatal(err)
	}
	agent, err := st.GetOrCreateAgent(user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateMessage(&store.Message{UserID: user.ID, AgentID: agent.ID, Role: store.RoleUser, Text: "I moved to Lisbon"}); err != nil {
		t.Fatal(err)
	}
	return st, agent
}

func TestMaybeRefreshAppendsSnapshot(t *testing.T) {
	st, agent := refresherFixture(t)
	completer := &fakeCompleter{reply: "- user lives in Lisbon"}
	r := NewRefresher(st, completer, 20)

	refreshed, err := r.MaybeRefresh(context.Background(), agent, 6)
	if err != nil {
		t.Fatalf("MaybeRefresh: %v", err)
	}
	if !refreshed {
		t.Fatal("expected a refresh")
	}
	latest, err := st.LatestSemanticMemory(agent.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.Content != "- user lives in Lisbon" {
		t.Errorf("latest = %+v", latest)
	}
}

func TestMaybeRefreshThrottled(t *testing.T) {
	st, agent := refresherFixture(t)
	completer := &fakeCompleter{reply: "- summary"}
	r := NewRefresher(st, completer, 20)

	if _, err := r.MaybeRefresh(context.Background(), agent, 6); err != nil {
		t.Fatal(err)
	}
	refreshed, err := r.MaybeRefresh(context.Background(), agent, 6)
	if err != nil {
		t.Fatal(err)
	}
	if refreshed {
		t.Error("second refresh inside the interval should be throttled")
	}
	if completer.calls != 1 {
		t.Errorf("completer calls = %d, want 1", completer.calls)
	}
}

func TestMaybeRefreshAfterIntervalElapses(t *testing.T) {
	st, agent := refresherFixture(t)
	completer := &fakeCompleter{reply: "- summary"}
	r := NewRefresher(st, completer, 20)

	if _, err := r.MaybeRefresh(context.Background(), agent, 6); err != nil {
		t.Fatal(err)
	}
	r.now = func() time.Time { return time.Now().Add(7 * time.Hour) }
	refreshed, err := r.MaybeRefresh(context.Background(), agent, 6)
	if err != nil {
		t.Fatal(err)
	}
	if !refreshed {
		t.Error("expected refresh once the interval elapsed")
	}
}

func TestMaybeRefreshProviderUnavailableIsNoop(t *testing.T) {
	st, agent := refresherFixture(t)
	completer := &fakeCompleter{err: errors.New("no api key")}
	r := NewRefresher(st, completer, 20)

	refreshed, err := r.MaybeRefresh(context.Background(), agent, 6)
	if err != nil {
		t.Fatalf("unavailable provider must not error: %v", err)
	}
	if refreshed {
		t.Error("refresh claimed with no provider")
	}
	latest, _ := st.LatestSemanticMemory(agent.ID)
	if latest != nil {
		t.Errorf("unexpected snapshot: %+v", latest)
	}
}

func TestMaybeRefreshNoConversationIsNoop(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	user, _ := st.GetOrCreateUser("u2", "")
	agent, _ := st.GetOrCreateAgent(user.ID)

	completer := &fakeCompleter{reply: "- should not be used"}
	r := NewRefresher(st, completer, 20)
	refreshed, err := r.MaybeRefresh(context.Background(), agent, 6)
	if err != nil {
		t.Fatal(err)
	}
	if refreshed {
		t.Error("refresh with no messages to summarize")
	}
	if completer.calls != 0 {
		t.Errorf("completer called %d times with nothing to summarize", completer.calls)
	}
}
