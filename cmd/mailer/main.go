package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/eventhon/eventhon/internal/config"
	"github.com/eventhon/eventhon/internal/notify"
	"github.com/sirupsen/logrus"
)

// The mailer drains the outbound mail queue filled by the server when
// NOTIFY_BACKEND=amqp and delivers each message over SMTP.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.LoadMailer()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	sender, err := notify.NewSMTPSender(&cfg.Mail, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize SMTP sender")
	}

	consumer, err := notify.NewConsumer(&cfg.AMQP, sender, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to RabbitMQ")
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logrus.Fields{
		"queue":    cfg.AMQP.Queue,
		"exchange": cfg.AMQP.Exchange,
	}).Info("Mailer started")

	if err := consumer.Run(ctx); err != nil {
		logger.WithError(err).Error("Mailer stopped")
		return
	}
	logger.Info("Mailer exited")
}
