package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/withme/withme/internal/bus"
	"github.com/withme/withme/internal/queue"
	"github.com/withme/withme/internal/scheduler"
	"github.com/withme/withme/internal/state"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the companion runtime (API, scheduler, update consumer)",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("💬 withMe Serve")
	fmt.Println("Starting withMe runtime...")

	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Startup error: %v\n", err)
		os.Exit(1)
	}
	defer rt.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Turn bus: HTTP handlers publish inbound, the runtime loop answers.
	msgBus := bus.NewMessageBus()
	go msgBus.DispatchOutbound(ctx)
	go runTurnLoop(ctx, rt, msgBus)

	msgBus.Subscribe(func(reply *bus.OutboundReply) {
		if reply.Err != nil {
			fmt.Printf("⚠️ Turn failed trace=%s: %v\n", reply.TraceID, reply.Err)
			return
		}
		fmt.Printf("📤 Reply sent trace=%s agent=%s\n", reply.TraceID, reply.AgentID)
	})

	// Background sweeps.
	if rt.cfg.Scheduler.Enabled {
		sched := scheduler.New(scheduler.Config{
			TickInterval: rt.cfg.Scheduler.TickInterval,
			LockPath:     rt.cfg.Scheduler.LockPath,
		})
		sched.Register(&scheduler.Job{
			Name:     "semantic.refresh",
			Category: scheduler.CategoryLLM,
			Every:    time.Hour,
			Fn:       rt.sweeper.SemanticRefreshSweep,
		})
		sched.Register(&scheduler.Job{
			Name:     "daily.events",
			Category: scheduler.CategoryLLM,
			Every:    time.Hour,
			Fn:       rt.sweeper.DailyEventSweep,
		})
		go sched.Run(ctx)
		fmt.Println("Scheduler started")
	}

	// Provider update consumer: webhook pushes re-enter through Kafka so
	// finalize always runs under worker idempotency rules.
	if rt.cfg.Queue.Brokers != "" {
		consumer := queue.NewConsumer(
			rt.cfg.Queue.Brokers,
			rt.cfg.Queue.ConsumerGroup+"-updates",
			rt.cfg.Queue.UpdateTopic,
		)
		go consumer.Run(ctx, func(ctx context.Context, task *queue.Task) {
			if task.Name != queue.TaskImageUpdate {
				return
			}
			rt.orch.HandleUpdate(ctx, task.Args["job_id"], task.Args["status"], task.Args["url"])
		})
	} else {
		fmt.Println("ℹ️  Queue disabled (no brokers configured); image jobs stay queued until a worker runs")
	}

	addr := fmt.Sprintf("%s:%d", rt.cfg.Server.Host, rt.cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: apiMux(rt, msgBus)}
	go func() {
		fmt.Printf("📡 API server listening on http://%s\n", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("API server error: %v\n", err)
		}
	}()

	<-sigChan
	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
	cancel()
}

// runTurnLoop consumes inbound turns and runs the chat service.
func runTurnLoop(ctx context.Context, rt *runtime, msgBus *bus.MessageBus) {
	for {
		turn, err := msgBus.ConsumeInbound(ctx)
		if err != nil {
			return
		}
		result, sendErr := rt.chat.Send(ctx, turn.UserID, "", turn.Text)
		reply := &bus.OutboundReply{
			UserID:  turn.UserID,
			AgentID: turn.AgentID,
			TraceID: turn.TraceID,
			Err:     sendErr,
		}
		if sendErr == nil {
			reply.MessageID = result.MessageID
			reply.ReplyID = result.Reply.ID
			reply.Text = result.Reply.Text
		}
		if turn.Reply != nil {
			turn.Reply <- reply
		}
		msgBus.PublishOutbound(reply)
	}
}

func apiMux(rt *runtime, msgBus *bus.MessageBus) *http.ServeMux {
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}

	startTime := time.Now()

	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"version":        version,
			"uptime_seconds": int(time.Since(startTime).Seconds()),
		})
	})

	mux.HandleFunc("/api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			UserID string `json:"user_id"`
			Email  string `json:"email"`
			Text   string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(body.UserID) == "" || strings.TrimSpace(body.Text) == "" {
			http.Error(w, "user_id and text required", http.StatusBadRequest)
			return
		}

		replyCh := make(chan *bus.OutboundReply, 1)
		msgBus.PublishInbound(&bus.InboundTurn{
			UserID:  body.UserID,
			TraceID: uuid.NewString(),
			Text:    body.Text,
			Reply:   replyCh,
		})

		select {
		case reply := <-replyCh:
			if reply.Err != nil {
				http.Error(w, reply.Err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"message_id": reply.MessageID,
				"reply":      map[string]string{"id": reply.ReplyID, "text": reply.Text},
			})
		case <-r.Context().Done():
		case <-time.After(60 * time.Second):
			http.Error(w, "turn timed out", http.StatusGatewayTimeout)
		}
	})

	mux.HandleFunc("/api/v1/images", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			UserID string `json:"user_id"`
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(body.UserID) == "" {
			http.Error(w, "user_id required", http.StatusBadRequest)
			return
		}
		outcome, err := rt.chat.RequestImage(r.Context(), body.UserID, body.Prompt)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if outcome.Denied != nil {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"reason":    outcome.Denied.Reason,
				"threshold": outcome.Denied.Threshold,
				"affinity":  outcome.Denied.Affinity,
			})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"job_id": outcome.JobID,
			"status": outcome.Status,
		})
	})

	mux.HandleFunc("/api/v1/jobs/", func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
		if jobID == "" {
			http.Error(w, "job id required", http.StatusBadRequest)
			return
		}
		job, err := rt.store.GetImageJob(jobID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if job == nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, job)
	})

	// Provider push callback. The update is queued, not applied inline,
	// so duplicates and races resolve in one place.
	mux.HandleFunc("/api/v1/webhooks/image/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/v1/webhooks/image/")
		if jobID == "" {
			http.Error(w, "job id required", http.StatusBadRequest)
			return
		}
		var body struct {
			Status string `json:"status"`
			URL    string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := rt.chat.IngestProviderUpdate(r.Context(), jobID, body.Status, body.URL); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	mux.HandleFunc("/api/v1/devices", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			UserID   string `json:"user_id"`
			Platform string `json:"platform"`
			Token    string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(body.UserID) == "" || strings.TrimSpace(body.Token) == "" {
			http.Error(w, "user_id and token required", http.StatusBadRequest)
			return
		}
		if err := rt.chat.RegisterDevice(body.UserID, body.Platform, body.Token); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
	})

	mux.HandleFunc("/api/v1/agents/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/agents/")
		agentID := strings.TrimSuffix(rest, "/state")
		if agentID == "" || agentID == rest {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		agent, err := rt.store.GetAgent(agentID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if agent == nil {
			http.Error(w, "agent not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"agent_id":     agent.ID,
			"name":         agent.Name,
			"mood":         agent.Mood,
			"affinity":     agent.Affinity,
			"availability": state.AvailabilityAt(time.Now(), agent.Timezone),
		})
	})

	return mux
}
