package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"asset-catalog/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Config is the full runtime configuration, loaded from environment
// variables plus the TOML volumes file.
type Config struct {
	CatalogDir  string
	PreviewDir  string
	VolumesFile string

	Port        string
	MetricsPort string

	ScanInterval    time.Duration
	DuplicatePolicy string

	ThumbPollInterval  time.Duration
	ThumbSizeThreshold int64
	FastWorkers        int
	SlowWorkers        int
	FastTimeout        time.Duration
	SlowTimeout        time.Duration
	ModelRendererCmd   string

	WatchEnabled bool

	CatalogPath string
	Volumes     []VolumeConfig
}

// LoadConfig reads configuration from the environment, logs the effective
// values, validates directories, and parses the volumes file.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	catalogDir := getEnv("CATALOG_DIR", "/catalog")
	previewDir := getEnv("PREVIEW_DIR", "/previews")
	volumesFile := getEnv("VOLUMES_FILE", "/etc/asset-catalog/volumes.toml")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	scanInterval := getEnvDuration("SCAN_INTERVAL", 30*time.Minute)
	policy := getEnv("DUPLICATE_POLICY", "merge")
	pollInterval := getEnvDuration("THUMB_POLL_INTERVAL", 30*time.Second)
	sizeThreshold := getEnvInt64("THUMB_SIZE_THRESHOLD", 30*1024*1024)
	fastWorkers := getEnvInt("FAST_WORKERS", 0)
	slowWorkers := getEnvInt("SLOW_WORKERS", 0)
	fastTimeout := getEnvDuration("FAST_TIMEOUT", 30*time.Second)
	slowTimeout := getEnvDuration("SLOW_TIMEOUT", 5*time.Minute)
	rendererCmd := getEnv("MODEL_RENDERER_CMD", "")
	watchEnabled := getEnvBool("WATCH_ENABLED", true)

	logging.Info("  CATALOG_DIR:          %s", catalogDir)
	logging.Info("  PREVIEW_DIR:          %s", previewDir)
	logging.Info("  VOLUMES_FILE:         %s", volumesFile)
	logging.Info("  PORT:                 %s", port)
	logging.Info("  METRICS_PORT:         %s", metricsPort)
	logging.Info("  SCAN_INTERVAL:        %s", scanInterval)
	logging.Info("  DUPLICATE_POLICY:     %s", policy)
	logging.Info("  THUMB_POLL_INTERVAL:  %s", pollInterval)
	logging.Info("  THUMB_SIZE_THRESHOLD: %d bytes", sizeThreshold)
	logging.Info("  FAST_WORKERS:         %s", orAuto(fastWorkers))
	logging.Info("  SLOW_WORKERS:         %s", orAuto(slowWorkers))
	logging.Info("  FAST_TIMEOUT:         %s", fastTimeout)
	logging.Info("  SLOW_TIMEOUT:         %s", slowTimeout)
	logging.Info("  MODEL_RENDERER_CMD:   %s", orNone(rendererCmd))
	logging.Info("  WATCH_ENABLED:        %v", watchEnabled)
	logging.Info("  LOG_LEVEL:            %s", logging.GetLevel())

	switch policy {
	case "reject", "warn", "merge":
	default:
		return nil, fmt.Errorf("invalid DUPLICATE_POLICY %q (want reject, warn, or merge)", policy)
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	catalogDir, err = filepath.Abs(catalogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog directory path: %w", err)
	}
	logging.Info("  Catalog directory (absolute): %s", catalogDir)

	previewDir, err = filepath.Abs(previewDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve preview directory path: %w", err)
	}
	logging.Info("  Preview directory (absolute): %s", previewDir)

	if err := ensureDirectory(catalogDir, "catalog"); err != nil {
		return nil, fmt.Errorf("catalog directory error: %w", err)
	}
	if err := ensureDirectory(previewDir, "preview"); err != nil {
		return nil, fmt.Errorf("preview directory error: %w", err)
	}

	volumes, err := LoadVolumesFile(volumesFile)
	if err != nil {
		return nil, err
	}
	logging.Info("  Volumes configured: %d", len(volumes))
	logging.Info("")

	return &Config{
		CatalogDir:         catalogDir,
		PreviewDir:         previewDir,
		VolumesFile:        volumesFile,
		Port:               port,
		MetricsPort:        metricsPort,
		ScanInterval:       scanInterval,
		DuplicatePolicy:    policy,
		ThumbPollInterval:  pollInterval,
		ThumbSizeThreshold: sizeThreshold,
		FastWorkers:        fastWorkers,
		SlowWorkers:        slowWorkers,
		FastTimeout:        fastTimeout,
		SlowTimeout:        slowTimeout,
		ModelRendererCmd:   rendererCmd,
		WatchEnabled:       watchEnabled,
		CatalogPath:        filepath.Join(catalogDir, "catalog.db"),
		Volumes:            volumes,
	}, nil
}

func printBanner() {
	banner := `
------------------------------------------------------------
    ___                  __  ______      __        __
   /   |  _____________ / /_/ ____/___ _/ /_____ _/ /___  ____ _
  / /| | / ___/ ___/ _ \/ __/ /   / __ '/ __/ __ '/ / __ \/ __ '/
 / ___ |(__  |__  )  __/ /_/ /___/ /_/ / /_/ /_/ / / /_/ / /_/ /
/_/  |_/____/____/\___/\__/\____/\__,_/\__/\__,_/_/\____/\__, /
                                                        /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}
	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	logging.Debug("    [OK] Directory exists")
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func orAuto(n int) string {
	if n <= 0 {
		return "auto"
	}
	return strconv.Itoa(n)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
