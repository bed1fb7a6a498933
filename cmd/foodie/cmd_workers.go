package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/foodie/config"
	"github.com/shashiranjanraj/foodie/internal/server"
	"github.com/shashiranjanraj/foodie/pkg/notification"
	"github.com/shashiranjanraj/foodie/pkg/queue"
	"github.com/shashiranjanraj/foodie/pkg/schedule"
)

var (
	queueWorkersFlag int
	failedLimitFlag  int
	scheduleOnceFlag bool
	scheduleTaskFlag string
)

// foodie queue:work
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Start the queue worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := server.Bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		if config.QueueDriver() != "redis" {
			fmt.Println("⚠  QUEUE_DRIVER is not redis; this worker only sees jobs it dispatches itself.")
		}
		notification.SetSlackWebhook(config.SlackWebhookURL())
		a.UseQueue()

		workers := queueWorkersFlag
		if workers < 1 {
			workers = 5
		}

		fmt.Printf("🚀 Queue worker started (%d workers). Press Ctrl+C to stop.\n", workers)
		wg := queue.StartWorkers(ctx, workers)

		<-ctx.Done()
		wg.Wait()
		fmt.Println("\n⚡ Queue worker stopped.")
		return nil
	},
}

// foodie queue:failed
var queueFailedCmd = &cobra.Command{
	Use:   "queue:failed",
	Short: "List jobs that used up their attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := server.Bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		a.UseQueue()

		rows, err := queue.ListFailed(cmd.Context(), failedLimitFlag)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No failed jobs.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tATTEMPTS\tFAILED AT\tERROR")
		for _, r := range rows {
			msg, _, _ := strings.Cut(r.Error, "\n")
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", r.ID, r.JobType, r.Attempts, r.FailedAt.Format(time.DateTime), msg)
		}
		return w.Flush()
	},
}

// foodie queue:retry 12 13
var queueRetryCmd = &cobra.Command{
	Use:   "queue:retry <id>...",
	Short: "Push failed jobs back onto the queue",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := server.Bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		a.UseQueue()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		for _, arg := range args {
			id, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", arg)
			}
			if err := queue.RetryFailed(ctx, uint(id)); err != nil {
				return err
			}
			fmt.Printf("✅ Job %d queued again.\n", id)
		}
		return nil
	},
}

// foodie schedule:run
var scheduleRunCmd = &cobra.Command{
	Use:   "schedule:run",
	Short: "Start the task scheduler, or run the tasks once with --once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := server.Bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		a.UseQueue()
		if err := a.Schedule(); err != nil {
			return err
		}

		if scheduleOnceFlag {
			return schedule.RunNow(ctx, scheduleTaskFlag)
		}

		tasks := schedule.Tasks()
		if len(tasks) == 0 {
			fmt.Println("No scheduled tasks registered.")
			return nil
		}
		fmt.Println("Registered scheduled tasks:")
		for _, t := range tasks {
			fmt.Printf("  • %s  [every %s]\n", t.Name, t.Every)
		}

		fmt.Println("🕐 Scheduler started. Press Ctrl+C to stop.")
		schedule.Start(ctx)

		<-ctx.Done()
		schedule.Wait()
		fmt.Println("\n⚡ Scheduler stopped.")
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 5, "Number of concurrent workers")
	queueFailedCmd.Flags().IntVar(&failedLimitFlag, "limit", 50, "Show at most this many jobs")
	scheduleRunCmd.Flags().BoolVar(&scheduleOnceFlag, "once", false, "Run every task once and exit")
	scheduleRunCmd.Flags().StringVar(&scheduleTaskFlag, "task", "", "With --once, run only this task")
}
