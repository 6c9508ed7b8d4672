package backend

import (
	"fmt"

	"profitcalc/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	cfg := Config{
		Type:          backendType,
		DataDirectory: appConfig.DataDir,
		SQLiteDBPath:  appConfig.SQLiteDBPath,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		Archive:     ArchiveType(appConfig.ArchiveBackend),
		ArchiveRoot: appConfig.ArchiveRoot(),
		GCSBucket:   appConfig.GCSBucket,
		GCSPrefix:   appConfig.GCSPrefix,

		GoogleSpreadsheetID:        appConfig.GoogleSpreadsheetID,
		GoogleSheetPrefix:          appConfig.GoogleSheetPrefix,
		GoogleServiceAccountJSON:   appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile:   appConfig.GoogleServiceAccountFile,
		GoogleApplicationCredsFile: appConfig.GoogleApplicationCredsFile,
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case FilesBackend:
		if c.DataDirectory == "" {
			return fmt.Errorf("data directory is required for files backend")
		}
	case MemoryBackend:
		// nothing to check
	}

	if c.Archive != "" && !c.Archive.IsValid() {
		return fmt.Errorf("invalid archive type: %s", c.Archive)
	}
	if c.Archive == GCSArchive && c.GCSBucket == "" {
		return fmt.Errorf("GCS bucket is required for gcs archive")
	}
	if c.Archive == LocalArchive && c.ArchiveRoot == "" {
		return fmt.Errorf("archive root is required for local archive")
	}

	return nil
}

// SheetsEnabled reports whether reports go to Google Sheets.
func (c Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{FilesBackend, SQLiteBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
