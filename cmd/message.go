package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/shellcache/schema"
	"github.com/spf13/cobra"
	"resty.dev/v3"
)

// messageCmd posts a control message to a running server.
var messageCmd = &cobra.Command{
	Use:   "message TYPE",
	Short: "Send a control message to a running server",
	Long: `Post a control message to the server at --server.

Recognized types:
  SKIP_WAITING  activate the waiting cache version now
  CLEAR_CACHE   delete every cache partition

Other types are accepted and ignored by the server.

Examples:
  shellcache message SKIP_WAITING
  shellcache message CLEAR_CACHE --server http://10.0.0.5:8080`,
	Args:    cobra.ExactArgs(1),
	PreRunE: configSetup,
	RunE: func(cmd *cobra.Command, args []string) error {
		msg := schema.Message{Type: schema.MessageType(strings.ToUpper(args[0]))}
		if !msg.Recognized() {
			cmd.PrintErrf("warning: %s is not a recognized message type\n", msg.Type)
		}

		client := resty.New().SetTimeout(10 * time.Second)
		defer func() { _ = client.Close() }()

		var reply struct {
			Type       string `json:"type"`
			Recognized bool   `json:"recognized"`
		}
		endpoint := strings.TrimSuffix(cfg.Server, "/") + cfg.ControlPrefix + "/message"
		resp, err := client.R().
			SetContext(rootCtx).
			SetHeader("Content-Type", "application/json").
			SetBody(msg).
			SetResult(&reply).
			Post(endpoint)
		if err != nil {
			return fmt.Errorf("posting message: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("server replied %s", resp.Status())
		}
		cmd.Printf("Message %s delivered (recognized: %t)\n", msg.Type, reply.Recognized)
		return nil
	},
}
