package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/withme/withme/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the image job worker",
	Run:   runWorker,
}

func runWorker(cmd *cobra.Command, args []string) {
	printHeader("🎨 withMe Worker")

	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Startup error: %v\n", err)
		os.Exit(1)
	}
	defer rt.close()

	if rt.cfg.Queue.Brokers == "" {
		fmt.Println("Queue error: no Kafka brokers configured (set WITHME_QUEUE_BROKERS)")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down worker...")
		cancel()
	}()

	consumer := queue.NewConsumer(rt.cfg.Queue.Brokers, rt.cfg.Queue.ConsumerGroup, rt.cfg.Queue.JobTopic)
	fmt.Printf("Consuming %s as %s\n", rt.cfg.Queue.JobTopic, rt.cfg.Queue.ConsumerGroup)
	consumer.Run(ctx, func(ctx context.Context, task *queue.Task) {
		switch task.Name {
		case queue.TaskProcessImageJob:
			rt.orch.Process(ctx, task.Args["job_id"])
		case queue.TaskImageUpdate:
			rt.orch.HandleUpdate(ctx, task.Args["job_id"], task.Args["status"], task.Args["url"])
		default:
			fmt.Printf("⚠️ Unknown task %q dropped\n", task.Name)
		}
	})
}
