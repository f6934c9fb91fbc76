package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tk103331/eino-chatlab/config"
	"github.com/tk103331/eino-chatlab/logger"
	"github.com/tk103331/eino-chatlab/ui/chat"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start interactive chat with model",
	Long:  `Start an interactive chat session in the terminal. Tab selects a snippet, Ctrl+T shows its raw source and Ctrl+Y copies it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()

		modelName, _ := cmd.Flags().GetString("model")
		participantID, _ := cmd.Flags().GetString("participant")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		svc, err := newServices(ctx, cfg, modelName)
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Close(); err != nil {
				logger.Warn("CHAT", fmt.Sprintf("close: %v", err))
			}
		}()

		chatApp, err := chat.NewChatApp(ctx, svc.chat, participantID, cfg.Chat.Delimiters.Open, cfg.Chat.Delimiters.Close)
		if err != nil {
			return fmt.Errorf("failed to create terminal renderer: %w", err)
		}
		if err := chatApp.Run(); err != nil {
			return fmt.Errorf("failed to run chat interface: %w", err)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("model", "m", "", "chat model, overrides chat.model")
	chatCmd.Flags().StringP("participant", "p", "", "participant id the conversation is stored under")
}
