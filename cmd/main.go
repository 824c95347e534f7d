package main

import (
	"log"
	"time"

	"github.com/warrantyeye/internal/alert"
	"github.com/warrantyeye/internal/api"
	"github.com/warrantyeye/internal/auth"
	"github.com/warrantyeye/internal/config"
	"github.com/warrantyeye/internal/database"
	"github.com/warrantyeye/internal/monitor"
	"github.com/warrantyeye/internal/report"
	"github.com/warrantyeye/internal/settings"
)

func main() {
	// Initialize configuration
	cfg := config.LoadConfig()
	auth.SetSecret(cfg.Auth.JWTSecret)

	// Initialize database
	if err := database.Initialize(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	db := database.GetDB()

	// Seed the default evaluation configuration on first boot; after that
	// it is tuned through the admin settings API.
	settingsStore := settings.NewStore(db)
	if err := settingsStore.SeedDefault(); err != nil {
		log.Printf("Warning: Failed to seed default settings: %v", err)
	}

	// Initialize alert manager with notification channels
	notifyConfig := &alert.NotifyConfig{
		SlackToken:      cfg.Alert.Slack.Token,
		SlackChannel:    cfg.Alert.Slack.Channel,
		SlackWebhookURL: cfg.Alert.Slack.WebhookURL,
		SMTPHost:        cfg.Alert.Email.SMTPHost,
		SMTPPort:        cfg.Alert.Email.SMTPPort,
		EmailFrom:       cfg.Alert.Email.From,
		EmailPassword:   cfg.Alert.Email.Password,
		EmailReceivers:  cfg.Alert.Email.ToReceivers,
	}
	manager := alert.NewManager(db, notifyConfig)

	// Wire the evaluation engine
	coordinator := alert.NewCoordinator(db)
	evaluator := alert.NewEvaluator(db, settingsStore, coordinator, manager)

	// Start the periodic evaluation scheduler
	scheduler := monitor.NewScheduler(evaluator, time.Duration(cfg.Evaluation.IntervalMinutes)*time.Minute)
	scheduler.Start()
	defer scheduler.Stop()

	// Start the periodic operations report when configured
	if cfg.Report.Enabled && len(cfg.Report.Recipients) > 0 {
		generator, err := report.NewGenerator(db)
		if err != nil {
			log.Fatalf("Failed to create report generator: %v", err)
		}
		mailConfig := report.MailConfig{
			Host:     cfg.Alert.Email.SMTPHost,
			Port:     cfg.Alert.Email.SMTPPort,
			From:     cfg.Alert.Email.From,
			Password: cfg.Alert.Email.Password,
		}
		period := time.Duration(cfg.Report.IntervalHours) * time.Hour
		go func() {
			ticker := time.NewTicker(period)
			defer ticker.Stop()
			for range ticker.C {
				if err := generator.Send(mailConfig, cfg.Report.Recipients, period); err != nil {
					log.Printf("Failed to send operations report: %v", err)
				}
			}
		}()
	}

	// Initialize and start API server
	server := api.NewServer(manager, evaluator, settingsStore)
	if err := server.Start(cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
