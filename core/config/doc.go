// Package config provides configuration management for the merge engine.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file read with godotenv.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key, read-only mode)
//   - Database: repository database driver and connection details
//   - Storage: S3/MinIO credentials, bucket and blob prefix
//   - Log: Logging level and format
//   - Merge: working-copy admin area and text merge defaults
//
// Defaults come from the `default` struct tags; every key can be overridden
// by the upper-cased environment variable (merge.admin_dir -> MERGE_ADMIN_DIR).
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Merge.AdminDir)
package config
