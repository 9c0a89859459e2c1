package main

import (
	"Go2NetIngest/internal/source"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPublishCmd() *cobra.Command {
	var (
		input   string
		url     string
		subject string
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Replay a flow log onto the NATS subject read by the nats source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("url") {
				cfg.Source.NATS.URL = url
			}
			if cmd.Flags().Changed("subject") {
				cfg.Source.NATS.Subject = subject
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			src, err := source.OpenFile(input, cfg.Source.MaxLineBytes, logger.Named("source"))
			if err != nil {
				return err
			}
			defer src.Close()

			pub, err := source.NewPublisher(cfg.Source.NATS, logger.Named("publisher"))
			if err != nil {
				return err
			}
			defer pub.Close()

			n, err := pub.Replay(ctx, src)
			if err != nil {
				logger.Error("replay failed", zap.Int("published", n), zap.Error(err))
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "input file, '-' for stdin")
	cmd.Flags().StringVar(&url, "url", "", "NATS server URL (default: source.nats.url)")
	cmd.Flags().StringVar(&subject, "subject", "", "NATS subject (default: source.nats.subject)")
	return cmd
}
