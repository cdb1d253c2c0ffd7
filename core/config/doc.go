// Package config provides configuration management for the history forwarder.
//
// It utilizes Viper for loading configuration from a settings file (YAML, TOML or JSON),
// a .env file and environment variables.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Log: Logging level and format
//   - Database: connection to the database holding the history and checkpoint tables
//   - Backend: analytics backend credentials and polling
//   - Storage: S3/MinIO credentials and bucket for the s3 output
//   - Output: record sink selection
//   - Sync: run defaults
//   - Server: HTTP port and API key of the serve command
//   - Telemetry: span exporter
//   - Entities: tracked entity profiles, only read from the settings file
//
// # Usage
//
//	cfg, err := config.LoadConfig(".", "settings.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Database.Host)
package config
