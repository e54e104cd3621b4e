package config

import (
	"reflect"
	"strings"

	"merge-engine/core/database"
	"merge-engine/core/logger"
	"merge-engine/core/server"
	"merge-engine/core/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the blob store holding file contents.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the repository database.
	Database database.Config `mapstructure:"database"`
	// Merge holds defaults for merge sessions.
	Merge MergeConfig `mapstructure:"merge"`
}

// MergeConfig holds the working-copy and text merge defaults.
type MergeConfig struct {
	// AdminDir is the name of the working-copy admin area.
	AdminDir string `mapstructure:"admin_dir" default:".merge"`
	// WorkingCopy is the working-copy root used when a command names none.
	WorkingCopy string `mapstructure:"working_copy" default:"."`
	// IgnoreSpaceChange treats runs of blanks as equal.
	IgnoreSpaceChange bool `mapstructure:"ignore_space_change" default:"false"`
	// IgnoreAllSpace ignores blanks entirely.
	IgnoreAllSpace bool `mapstructure:"ignore_all_space" default:"false"`
	// IgnoreEOLStyle treats all line endings as equal.
	IgnoreEOLStyle bool `mapstructure:"ignore_eol_style" default:"false"`
	// NativeEOL is the line ending written for svn:eol-style native.
	NativeEOL string `mapstructure:"native_eol" default:"LF"`
	// CacheTTLSeconds bounds how long repository reads are reused within a merge.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" default:"300"`
}

// NativeEOLBytes returns the line ending NativeEOL names.
func (c MergeConfig) NativeEOLBytes() string {
	switch strings.ToUpper(c.NativeEOL) {
	case "CRLF":
		return "\r\n"
	case "CR":
		return "\r"
	default:
		return "\n"
	}
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env file if it exists
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. MERGE_ADMIN_DIR -> merge.admin_dir)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
