package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	runDueLimit      int
	fireRepliesLimit int
)

var runDueCmd = &cobra.Command{
	Use:   "run-due",
	Short: "Execute scheduled campaigns whose time has come",
	RunE:  runDue,
}

var fireRepliesCmd = &cobra.Command{
	Use:   "fire-replies",
	Short: "Send delayed autoresponder replies that are due",
	RunE:  runFireReplies,
}

func init() {
	runDueCmd.Flags().IntVarP(&runDueLimit, "limit", "l", 10, "Maximum campaigns to run")
	fireRepliesCmd.Flags().IntVarP(&fireRepliesLimit, "limit", "l", 100, "Maximum replies to send")
}

func runDue(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.Campaigns.RunDue(cmd.Context(), runDueLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range results {
		line := fmt.Sprintf("campaign %d: %s (sent %d, failed %d)", r.CampaignID, r.Status, r.Sent, r.Failed)
		if r.Error != "" {
			line += ": " + r.Error
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "%d campaigns executed\n", len(results))
	return nil
}

func runFireReplies(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fired, err := a.Autoresponders.FirePendingReplies(cmd.Context(), fireRepliesLimit)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d delayed replies fired\n", fired)
	return nil
}
