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
	"github.com/tk103331/eino-chatlab/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat web interface",
	Long:  `Serve the browser chat interface and its JSON API until interrupted`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		modelName, _ := cmd.Flags().GetString("model")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		svc, err := newServices(ctx, cfg, modelName)
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Close(); err != nil {
				logger.Warn("SERVE", fmt.Sprintf("close: %v", err))
			}
		}()

		srv, err := server.New(svc.chat, cfg.Server)
		if err != nil {
			return err
		}
		fmt.Printf("chatlab listening on %s\n", cfg.Server.Addr)
		return srv.Run(ctx)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address, overrides server.addr")
	serveCmd.Flags().StringP("model", "m", "", "chat model, overrides chat.model")
}
