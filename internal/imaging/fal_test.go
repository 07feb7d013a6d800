package imaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/withme/withme/internal/config"
	"github.com/withme/withme/internal/store"
)

func newFalServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *FalClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewFalClient(config.FalConfig{APIKey: "test-key", APIBase: srv.URL})
	return srv, client
}

func TestFalSubmitSendsAuthAndRoutesByKind(t *testing.T) {
	var gotPath, gotAuth string
	srv, client := newFalServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("submit body not JSON: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"request_id": "req-1",
			"status_url": "http://example.com/status",
		})
	})
	_ = srv

	sub, err := client.Submit(context.Background(), store.KindEdit, map[string]any{"prompt": "x"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if gotAuth != "Key test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/fal-ai/flux-pro/kontext" {
		t.Errorf("edit path = %q", gotPath)
	}
	if sub.RequestID != "req-1" || sub.StatusURL != "http://example.com/status" {
		t.Errorf("submission = %+v", sub)
	}

	if _, err := client.Submit(context.Background(), store.KindBase, map[string]any{"prompt": "x"}); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/fal-ai/flux/dev" {
		t.Errorf("base path = %q", gotPath)
	}
}

func TestFalSubmitDerivesStatusURL(t *testing.T) {
	srv, client := newFalServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"request_id": "req-9"})
	})

	sub, err := client.Submit(context.Background(), store.KindBase, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	want := srv.URL + "/fal-ai/flux/dev/requests/req-9/status"
	if sub.StatusURL != want {
		t.Errorf("StatusURL = %q, want %q", sub.StatusURL, want)
	}
}

func TestFalSubmitRejectsEmptyResponse(t *testing.T) {
	_, client := newFalServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	if _, err := client.Submit(context.Background(), store.KindBase, map[string]any{}); err == nil {
		t.Error("expected error when response carries no request id or status url")
	}
}

func TestFalPollServerErrorIsResultNotError(t *testing.T) {
	srv, client := newFalServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	res, err := client.Poll(context.Background(), srv.URL+"/status")
	if err != nil {
		t.Fatalf("5xx must not be an error: %v", err)
	}
	if res.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", res.StatusCode)
	}
	if res.Status != "" || res.Payload != nil {
		t.Errorf("5xx result must carry no payload: %+v", res)
	}
}

func TestFalPollParsesPlainJSON(t *testing.T) {
	srv, client := newFalServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"IN_PROGRESS"}`))
	})

	res, err := client.Poll(context.Background(), srv.URL+"/status")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "IN_PROGRESS" {
		t.Errorf("Status = %q", res.Status)
	}
}

func TestFalPollUnwrapsEventStream(t *testing.T) {
	body := "data: {\"status\":\"IN_QUEUE\"}\n\ndata: {\"status\":\"COMPLETED\",\"response_url\":\"http://r\"}\n"
	srv, client := newFalServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(body))
	})

	res, err := client.Poll(context.Background(), srv.URL+"/status")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "COMPLETED" {
		t.Errorf("Status = %q, want last event's status", res.Status)
	}
}

func TestFalFetchReturnsPayload(t *testing.T) {
	srv, client := newFalServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Key test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"images":[{"url":"http://img"}]}`))
	})

	payload, err := client.Fetch(context.Background(), srv.URL+"/result")
	if err != nil {
		t.Fatal(err)
	}
	if url := FirstAssetURL(payload); url != "http://img" {
		t.Errorf("FirstAssetURL(payload) = %q", url)
	}
}

func TestFalConfigured(t *testing.T) {
	if NewFalClient(config.FalConfig{}).Configured() {
		t.Error("client without key must report unconfigured")
	}
	if !NewFalClient(config.FalConfig{APIKey: "k"}).Configured() {
		t.Error("client with key must report configured")
	}
}
