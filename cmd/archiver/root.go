package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
}

var rootCmd = &cobra.Command{
	Use:   "archiver",
	Short: "Archive daily intraday charts and quote data",
	Long: "archiver selects the most traded instruments of the listing once, then\n" +
		"stores each day's intraday chart and quote data for every one of them.\n" +
		"Artifacts already on disk are never fetched again.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runOnce,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	defaultConfig := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultConfig = v
	}
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", defaultConfig, "Path to the YAML config file")

	rootCmd.AddCommand(scheduleCmd)
	rootCmd.Version = version
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(rootFlags.configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = a.Collector.Collect(ctx, time.Now())
	return err
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
