package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/withme/withme/internal/chat"
	"github.com/withme/withme/internal/config"
	"github.com/withme/withme/internal/imaging"
	"github.com/withme/withme/internal/life"
	"github.com/withme/withme/internal/memory"
	"github.com/withme/withme/internal/notify"
	"github.com/withme/withme/internal/provider"
	"github.com/withme/withme/internal/queue"
	"github.com/withme/withme/internal/storage"
	"github.com/withme/withme/internal/store"
)

// taskRouter sends each task to the topic it belongs on.
type taskRouter struct {
	jobs    *queue.Producer
	updates *queue.Producer
}

func (r *taskRouter) Enqueue(ctx context.Context, task *queue.Task) error {
	if task.Name == queue.TaskImageUpdate {
		return r.updates.Enqueue(ctx, task)
	}
	return r.jobs.Enqueue(ctx, task)
}

func (r *taskRouter) Close() {
	if r.jobs != nil {
		r.jobs.Close()
	}
	if r.updates != nil {
		r.updates.Close()
	}
}

// runtime holds the wired services shared by serve and worker.
type runtime struct {
	cfg      *config.Config
	store    *store.Store
	chat     *chat.Service
	orch     *imaging.Orchestrator
	notifier *notify.Service
	sweeper  *life.Sweeper
	router   *taskRouter
}

func buildRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Paths.DataDir != "" {
		if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	st, err := store.Open(cfg.Paths.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	completer := provider.NewOpenAIProvider(cfg.Providers.OpenAI, cfg.Model)

	var router *taskRouter
	if cfg.Queue.Brokers != "" {
		router = &taskRouter{
			jobs:    queue.NewProducer(cfg.Queue.Brokers, cfg.Queue.JobTopic),
			updates: queue.NewProducer(cfg.Queue.Brokers, cfg.Queue.UpdateTopic),
		}
	}

	pusher := notify.NewFCMPusher(cfg.Notify.FCMServerKey)
	alerter := notify.NewSlackAlerter(cfg.Notify.SlackToken, cfg.Notify.SlackChannel)
	notifier := notify.NewService(st, pusher, alerter)

	var publisher imaging.Publisher
	if sp := storage.NewSupabasePublisher(cfg.Storage); sp != nil {
		publisher = sp
	}

	orch := imaging.NewOrchestrator(imaging.Options{
		Store:        st,
		Client:       imaging.NewFalClient(cfg.Providers.Fal),
		Publisher:    publisher,
		Notifier:     notifier,
		PollInterval: cfg.Providers.Fal.PollInterval,
		MaxPolls:     cfg.Providers.Fal.MaxPolls,
	})

	index := memory.NewRetrievalIndex(st.DB())
	var enqueuer chat.Enqueuer
	if router != nil {
		enqueuer = router
	}
	chatSvc := chat.NewService(chat.Options{
		Store:           st,
		Completer:       completer,
		Enqueuer:        enqueuer,
		Index:           index,
		GlobalThreshold: cfg.Engagement.ImageAffinityThreshold,
		MessageWindow:   cfg.Engagement.RecentMessageWindow,
	})

	sweeper := life.NewSweeper(life.Options{
		Store:          st,
		Refresher:      memory.NewRefresher(st, completer, cfg.Engagement.RecentMessageWindow),
		Notifier:       notifier,
		Completer:      completer,
		RefreshHours:   cfg.Scheduler.SemanticRefreshHours,
		DailyEventHour: cfg.Scheduler.DailyEventHour,
		InitiationCap:  cfg.Engagement.InitiationDailyCap,
	})

	return &runtime{
		cfg:      cfg,
		store:    st,
		chat:     chatSvc,
		orch:     orch,
		notifier: notifier,
		sweeper:  sweeper,
		router:   router,
	}, nil
}

func (rt *runtime) close() {
	if rt.router != nil {
		rt.router.Close()
	}
	rt.store.Close()
}

func dataFilePath(cfg *config.Config, name string) string {
	if cfg.Paths.DataDir != "" {
		return filepath.Join(cfg.Paths.DataDir, name)
	}
	return name
}
