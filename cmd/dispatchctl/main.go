package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/onurcolak/sms-dispatch-service/environments"
	"github.com/onurcolak/sms-dispatch-service/internal/app"
	"github.com/onurcolak/sms-dispatch-service/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "dispatchctl",
	Short: "Operate the SMS dispatch service from the command line",
	Long: `dispatchctl runs migrations, executes due campaigns, fires delayed
autoresponder replies and sends one-off messages using the same environment
configuration as the HTTP service.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runDueCmd)
	rootCmd.AddCommand(fireRepliesCmd)
	rootCmd.AddCommand(sendCmd)
}

// newApp loads configuration from the environment and connects.
func newApp() (*app.App, error) {
	cfg := environments.Load()
	logger.Init(cfg.Log.Format, cfg.Log.Level)

	return app.New(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
