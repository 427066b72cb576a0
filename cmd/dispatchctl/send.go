package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onurcolak/sms-dispatch-service/internal/service"
)

var sendFlags struct {
	to      string
	message string
	driver  string
	from    string
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one SMS with carrier failover",
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendFlags.to, "to", "", "Recipient phone number")
	sendCmd.Flags().StringVar(&sendFlags.message, "message", "", "Message body")
	sendCmd.Flags().StringVar(&sendFlags.driver, "driver", "", "Carrier to use (default: configured priority)")
	sendCmd.Flags().StringVar(&sendFlags.from, "from", "", "Sender id override")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("message")
}

func runSend(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Dispatch.SendOne(cmd.Context(), service.SendRequest{
		To:      sendFlags.to,
		Message: sendFlags.message,
		Driver:  sendFlags.driver,
		From:    sendFlags.from,
		Actor:   "cli",
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("message to %s was not delivered", result.To)
	}
	return nil
}
