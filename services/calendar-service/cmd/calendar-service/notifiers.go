package main

import (
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/slotcal/libs/config"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/notify"
)

// buildNotifier assembles the reminder fan-out from EMAIL_PROVIDER,
// SMS_PROVIDER and, when brokers are configured, the reminder-due event.
func buildNotifier(logger *slog.Logger, kafkaWriter *kafka.Writer) *notify.Fanout {
	var channels []notify.Channel

	from := config.String("SMTP_FROM", "no-reply@slotcal.local")
	switch provider := strings.ToLower(config.String("EMAIL_PROVIDER", "smtp")); provider {
	case "smtp":
		channels = append(channels, notify.Channel{Name: "email", Notifier: notify.EmailChannel{
			Sender: notify.NewSMTPSender(config.String("SMTP_HOST", "mailpit"), config.String("SMTP_PORT", "1025"), from),
		}})
	case "sendgrid":
		key := config.String("SENDGRID_API_KEY", "")
		if key == "" {
			logger.Warn("sendgrid selected without SENDGRID_API_KEY; email disabled")
			break
		}
		channels = append(channels, notify.Channel{Name: "email", Notifier: notify.EmailChannel{
			Sender: notify.NewSendGridSender(key, from, config.String("SENDGRID_FROM_NAME", "")),
		}})
	case "none", "":
	default:
		logger.Warn("unknown email provider; email disabled", "provider", provider)
	}

	var sms notify.SMSSender
	switch provider := strings.ToLower(config.String("SMS_PROVIDER", "noop")); provider {
	case "webhook":
		if url := config.String("SMS_WEBHOOK_URL", ""); url != "" {
			sms = notify.NewWebhookSender(url, config.String("SMS_WEBHOOK_TOKEN", ""))
		} else {
			logger.Warn("webhook sms selected without SMS_WEBHOOK_URL; sms disabled")
		}
	case "twilio":
		sid, token := config.String("TWILIO_ACCOUNT_SID", ""), config.String("TWILIO_AUTH_TOKEN", "")
		if sid != "" && token != "" {
			sms = notify.NewTwilioSender(sid, token, config.String("TWILIO_FROM_NUMBER", ""))
		} else {
			logger.Warn("twilio sms selected without credentials; sms disabled")
		}
	case "noop", "":
		sms = notify.NoopSender{}
	default:
		logger.Warn("unknown sms provider; sms disabled", "provider", provider)
	}
	if sms != nil {
		channels = append(channels, notify.Channel{Name: "sms", Notifier: notify.SMSChannel{Sender: sms}})
	}

	if kafkaWriter != nil {
		channels = append(channels, notify.Channel{
			Name:     "kafka",
			Notifier: notify.NewKafkaPublisher(kafkaWriter, config.String("KAFKA_REMINDER_TOPIC", notify.ReminderDueEvent)),
		})
	}

	names := make([]string, 0, len(channels))
	for _, c := range channels {
		names = append(names, c.Name)
	}
	logger.Info("reminder channels configured", "channels", names)
	return notify.NewFanout(logger, channels...)
}
