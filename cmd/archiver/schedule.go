package main

import (
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"quotearchiver/internal/scheduler"
)

var scheduleFlags struct {
	cron       string
	runOnStart bool
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the archive on a cron schedule until interrupted",
	Long: "schedule keeps the archiver running and starts a harvest at every tick of\n" +
		"the configured cron spec (six fields, seconds first). A failed harvest is\n" +
		"logged and retried at the next tick. With Telegram configured, the chat\n" +
		"accepts /run and /last.",
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	f := scheduleCmd.Flags()
	f.StringVar(&scheduleFlags.cron, "cron", "", "Cron spec overriding schedule.cron")
	f.BoolVar(&scheduleFlags.runOnStart, "run-on-start", false, "Harvest once immediately before waiting for the first tick")
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(rootFlags.configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	spec := a.Config.Schedule.Cron
	if scheduleFlags.cron != "" {
		spec = scheduleFlags.cron
	}

	sched := scheduler.NewScheduler(ctx, a.Collector)
	if err := sched.Register(spec); err != nil {
		return err
	}

	if scheduleFlags.runOnStart {
		log.Println("[INFO] run-on-start enabled, harvesting now")
		if err := sched.RunNow(); err != nil {
			log.Printf("[ERROR] initial harvest: %v", err)
		}
	}

	sched.Start()

	if a.Telegram != nil {
		go a.Telegram.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}
	log.Println("[INFO] archiver is running. Press Ctrl+C to stop.")

	<-ctx.Done()
	log.Println("[INFO] shutdown signal received, stopping...")
	sched.Stop()
	return nil
}
