package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"history-forwarder/core/backend"
	"history-forwarder/core/database"
	"history-forwarder/core/emit"
	"history-forwarder/core/history"
	"history-forwarder/core/logger"
	"history-forwarder/core/server"
	"history-forwarder/core/storage"
	"history-forwarder/core/telemetry"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the database holding history and checkpoints.
	Database database.Config `mapstructure:"database"`
	// Backend holds configuration for the analytics backend.
	Backend backend.Config `mapstructure:"backend"`
	// Storage holds configuration for the object storage used by the s3 output.
	Storage storage.Config `mapstructure:"storage"`
	// Output selects the record sink.
	Output emit.Config `mapstructure:"output"`
	// Sync holds run defaults.
	Sync SyncConfig `mapstructure:"sync"`
	// Server holds configuration for the HTTP status server.
	Server server.Config `mapstructure:"server"`
	// Telemetry holds tracing and metrics settings.
	Telemetry telemetry.Config `mapstructure:"telemetry"`
	// Entities lists the tracked entity types, in processing order.
	Entities []history.Profile `mapstructure:"entities"`
}

// SyncConfig holds defaults for the sync command.
type SyncConfig struct {
	// MaxCount caps each batch per run. Zero means unlimited.
	MaxCount int `mapstructure:"max_count" default:"0"`
	// PruneDeleted removes deleted ids from the ledger.
	PruneDeleted bool `mapstructure:"prune_deleted" default:"false"`
}

// Entity returns the profile named name.
func (c *Config) Entity(name string) (history.Profile, bool) {
	for _, p := range c.Entities {
		if p.Name == name {
			return p, true
		}
	}
	return history.Profile{}, false
}

// LoadConfig loads configuration from the .env file in path, the optional settings file
// and environment variables, in increasing precedence.
func LoadConfig(path, settingsFile string) (*Config, error) {
	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(filepath.Join(path, ".env"))

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	if settingsFile != "" {
		v.SetConfigFile(settingsFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings %s: %w", settingsFile, err)
		}
	}

	// Map environment variables to nested keys (e.g. DATABASE_HOST -> database.host)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(config.Entities))
	for i, p := range config.Entities {
		p = p.WithDefaults()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("entities[%d]: %w", i, err)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("entities[%d]: %w: duplicate name %q", i, history.ErrInvalidProfile, p.Name)
		}
		seen[p.Name] = struct{}{}
		config.Entities[i] = p
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		switch field.Type.Kind() {
		case reflect.Struct:
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		case reflect.Slice, reflect.Map:
			// lists come from the settings file only
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
