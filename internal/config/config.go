package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Path string
	}
	Server struct {
		Port int
	}
	Auth struct {
		JWTSecret string
	}
	Evaluation struct {
		IntervalMinutes int
	}
	Alert struct {
		Slack struct {
			Token      string
			Channel    string
			WebhookURL string
		}
		Email struct {
			SMTPHost    string
			SMTPPort    int
			From        string
			Password    string
			ToReceivers []string
		}
	}
	Report struct {
		Enabled       bool
		IntervalHours int
		Recipients    []string
	}
}

// LoadConfig loads the configuration from config.yaml
func LoadConfig() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	var config Config

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use default values
			config.Database.Path = "data/warrantyeye.db"
			config.Server.Port = 8080
			config.Evaluation.IntervalMinutes = 60
			config.Report.IntervalHours = 24

			// Create default config file
			viper.Set("database.path", config.Database.Path)
			viper.Set("server.port", config.Server.Port)
			viper.Set("evaluation.intervalminutes", config.Evaluation.IntervalMinutes)

			// Ensure data directory exists
			if err := os.MkdirAll("data", 0755); err != nil {
				fmt.Printf("Warning: Failed to create data directory: %v\n", err)
			}

			if err := viper.SafeWriteConfig(); err != nil {
				fmt.Printf("Warning: Failed to write default config: %v\n", err)
			}
		} else {
			fmt.Printf("Error reading config file: %v\n", err)
		}
	} else {
		if err := viper.Unmarshal(&config); err != nil {
			fmt.Printf("Error unmarshaling config: %v\n", err)
		}
	}

	if config.Evaluation.IntervalMinutes <= 0 {
		config.Evaluation.IntervalMinutes = 60
	}
	if config.Report.IntervalHours <= 0 {
		config.Report.IntervalHours = 24
	}

	return &config
}
