/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sceneit/apiserver/config"
	"github.com/sceneit/apiserver/internal/mail"
	"github.com/sceneit/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// mailerCmd represents the mailer command
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Delivers queued mail over SMTP",
	Long: `Consumes the mail queue and delivers each message over SMTP. Run it
alongside servers configured with MAIL_TRANSPORT=queue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sender, err := mail.NewSMTPSender(cfg.Mail)
		if err != nil {
			return fmt.Errorf("configure smtp: %w", err)
		}
		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("connect mq: %w", err)
		}
		defer queue.Close()

		logger.Info("mailer consuming", "queue", cfg.Mail.Queue, "backend", cfg.MQ.Backend)
		err = mail.NewWorker(queue, cfg.Mail.Queue, sender, logger).Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}
