package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/kafkax"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/metrics"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/notify"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/notify/email"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/notify/sms"
)

// buildNotifier assembles the delivery targets from config. The returned close func
// waits for in-flight notices and then releases the Kafka writer.
func buildNotifier(cfg appConfig, dir notify.Directory, m *metrics.Metrics, logger *slog.Logger) (notify.Notifier, func(context.Context) error, error) {
	targets := []notify.Dispatcher{notify.LogDispatcher{Logger: logger}}
	var closers []func() error

	if cfg.KafkaBrokers != "" {
		pub := notify.NewKafkaPublisher(notify.NewKafkaWriter(kafkax.SplitBrokers(cfg.KafkaBrokers)), cfg.TopicPrefix)
		targets = append(targets, pub)
		closers = append(closers, pub.Close)
	}

	var emailSender email.Sender
	switch cfg.EmailProvider {
	case "smtp":
		emailSender = email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	case "sendgrid":
		sg, err := email.NewSendGridSender(email.SendGridConfig{APIKey: cfg.SendGridAPIKey, FromEmail: cfg.SMTPFrom}, logger)
		if err != nil {
			return nil, nil, err
		}
		emailSender = sg
	}
	var smsSender sms.Sender
	if cfg.SMSWebhookURL != "" {
		smsSender = sms.NewWebhookSender(cfg.SMSWebhookURL, cfg.SMSWebhookToken)
	}
	if emailSender != nil || smsSender != nil {
		loc, err := time.LoadLocation(cfg.NotifyTimezone)
		if err != nil {
			return nil, nil, fmt.Errorf("NOTIFY_TIMEZONE: %w", err)
		}
		templates, err := notify.NewTemplates(loc)
		if err != nil {
			return nil, nil, err
		}
		targets = append(targets, notify.NewMessenger(dir, templates, emailSender, smsSender))
	}

	async := notify.NewAsync(logger, notify.AsyncOptions{
		Timeout:     cfg.NotifyTimeout,
		MaxInFlight: cfg.NotifyMaxInFlight,
		OnResult: func(target string, kind notify.Kind, err error) {
			m.ObserveNotification(target, string(kind), err)
		},
	}, targets...)

	closeFn := func(ctx context.Context) error {
		err := async.Close(ctx)
		for _, c := range closers {
			if cerr := c(); cerr != nil {
				logger.Warn("notifier close failed", "err", cerr)
			}
		}
		return err
	}
	return async, closeFn, nil
}
