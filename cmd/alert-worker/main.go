package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/mail"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting alert-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the alert worker")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	if err := amqpClient.SetPrefetch(cfg.ConsumerPrefetch); err != nil {
		logger.Error("Failed to set consumer prefetch", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Mail delivery is optional: without a sender address the worker drains
	// the queue and logs each batch.
	var sender *mail.Sender
	if cfg.AlertFrom != "" {
		sender, err = mail.NewSender(ctx, mail.Config{
			From:       cfg.AlertFrom,
			To:         cfg.AlertTo,
			ClientFile: cfg.GoogleOAuthClientFile,
			ClientJSON: cfg.GoogleOAuthClientJSON,
			TokenFile:  cfg.GoogleOAuthTokenFile,
			TokenJSON:  cfg.GoogleOAuthTokenJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize mail sender", "error", err)
			os.Exit(1)
		}
		logger.Info("Mail sender initialized", "from", cfg.AlertFrom, "to", cfg.AlertTo)
	} else {
		logger.Info("Mail delivery disabled - no ALERT_FROM provided")
	}

	handler := func(msg *amqp.BudgetAlertMessage) error {
		for _, alert := range msg.Alerts {
			slog.InfoContext(ctx, "Budget alert",
				"user_id", msg.UserID,
				"level", alert.Level,
				"budget", alert.BudgetName,
				"message", alert.Message)
		}
		if sender == nil {
			return nil
		}
		return sender.SendBudgetAlerts(ctx, msg.UserID, msg.Alerts)
	}

	if err := amqpClient.ConsumeBudgetAlerts(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
