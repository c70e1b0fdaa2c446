package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"photo-album/internal/logging"
	"photo-album/internal/workers"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	MediaDir    string
	DatabaseDir string
	ModelDir    string
	Port        string
	MetricsPort string

	BatchSize       int
	AlbumAdminLimit int

	ScheduledProcessing bool
	ScheduleHour        int
	ScheduleMinute      int
	AutoProcessOnUpload bool

	AnalysisWorkers int
	TaskSoftLimit   time.Duration
	TaskHardLimit   time.Duration

	HFToken  string
	HFAPIURL string

	LogHealthChecks bool
	MetricsEnabled  bool

	// Derived paths
	DatabasePath string

	// Feature flags based on directory availability
	EmbeddingEnabled bool
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	mediaDir := getEnv("MEDIA_DIR", "/media")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	modelDir := getEnv("MODEL_DIR", "/models")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	batchSize := getEnvInt("AI_BATCH_SIZE", 500)
	albumAdminLimit := getEnvInt("AI_ALBUM_ADMIN_LIMIT", 50)
	scheduled := getEnvBool("AI_SCHEDULED_PROCESSING", true)
	scheduleHour := getEnvInt("AI_SCHEDULE_HOUR", 2)
	scheduleMinute := getEnvInt("AI_SCHEDULE_MINUTE", 0)
	autoProcess := getEnvBool("AI_AUTO_PROCESS_ON_UPLOAD", false)
	softLimit := getEnvDuration("TASK_SOFT_LIMIT", 9*time.Minute)
	hardLimit := getEnvDuration("TASK_HARD_LIMIT", 10*time.Minute)
	hfToken := os.Getenv("HF_TOKEN")
	hfAPIURL := os.Getenv("HF_API_URL")
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)

	// Analysis tasks mix CPU-bound inference with network and disk I/O.
	analysisWorkers := workers.ForMixed(8)

	logging.Info("  MEDIA_DIR:                 %s", mediaDir)
	logging.Info("  DATABASE_DIR:              %s", databaseDir)
	logging.Info("  MODEL_DIR:                 %s", modelDir)
	logging.Info("  PORT:                      %s", port)
	logging.Info("  METRICS_PORT:              %s", metricsPort)
	logging.Info("  METRICS_ENABLED:           %v", metricsEnabled)
	logging.Info("  AI_BATCH_SIZE:             %d", batchSize)
	logging.Info("  AI_ALBUM_ADMIN_LIMIT:      %d", albumAdminLimit)
	logging.Info("  AI_SCHEDULED_PROCESSING:   %v", scheduled)
	logging.Info("  AI_SCHEDULE_HOUR:          %02d:%02d", scheduleHour, scheduleMinute)
	logging.Info("  AI_AUTO_PROCESS_ON_UPLOAD: %v", autoProcess)
	logging.Info("  ANALYSIS_WORKERS:          %d", analysisWorkers)
	logging.Info("  TASK_SOFT_LIMIT:           %s", softLimit)
	logging.Info("  TASK_HARD_LIMIT:           %s", hardLimit)
	logging.Info("  HF_TOKEN:                  %s", maskedString(hfToken))
	logging.Info("  LOG_HEALTH_CHECKS:         %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:                 %s", logging.GetLevel())

	if batchSize <= 0 {
		logging.Warn("  Invalid AI_BATCH_SIZE, using default: 500")
		batchSize = 500
	}
	if albumAdminLimit <= 0 {
		logging.Warn("  Invalid AI_ALBUM_ADMIN_LIMIT, using default: 50")
		albumAdminLimit = 50
	}
	if scheduleHour < 0 || scheduleHour > 23 {
		logging.Warn("  Invalid AI_SCHEDULE_HOUR, using default: 2")
		scheduleHour = 2
	}
	if scheduleMinute < 0 || scheduleMinute > 59 {
		logging.Warn("  Invalid AI_SCHEDULE_MINUTE, using default: 0")
		scheduleMinute = 0
	}
	if hardLimit <= softLimit {
		logging.Warn("  TASK_HARD_LIMIT must exceed TASK_SOFT_LIMIT, using %s", softLimit+time.Minute)
		hardLimit = softLimit + time.Minute
	}

	// Resolve paths
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	mediaDir, err = filepath.Abs(mediaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media directory path: %w", err)
	}
	logging.Info("  Media directory (absolute): %s", mediaDir)

	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", databaseDir)

	// Check/create media directory (warning only)
	if err := ensureDirectory(mediaDir, "media"); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}

	config := &Config{
		MediaDir:            mediaDir,
		DatabaseDir:         databaseDir,
		ModelDir:            modelDir,
		Port:                port,
		MetricsPort:         metricsPort,
		BatchSize:           batchSize,
		AlbumAdminLimit:     albumAdminLimit,
		ScheduledProcessing: scheduled,
		ScheduleHour:        scheduleHour,
		ScheduleMinute:      scheduleMinute,
		AutoProcessOnUpload: autoProcess,
		AnalysisWorkers:     analysisWorkers,
		TaskSoftLimit:       softLimit,
		TaskHardLimit:       hardLimit,
		HFToken:             hfToken,
		HFAPIURL:            hfAPIURL,
		LogHealthChecks:     logHealthChecks,
		MetricsEnabled:      metricsEnabled,
		DatabasePath:        filepath.Join(databaseDir, "album.db"),
	}

	// Ensure base database directory exists (required for database)
	if err := ensureDirectory(databaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	// Test write access for database (required)
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	// Model directory is optional; without it the embedding model never
	// loads and analysis falls back to the API and heuristic backends.
	config.EmbeddingEnabled = checkModelDir(modelDir)

	// Summary
	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:     ENABLED (required)")
	logging.Info("    Embeddings:   %s", enabledString(config.EmbeddingEnabled))
	logging.Info("    Captioning API: %s", enabledString(hfToken != ""))
	logging.Info("    Metrics:      %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func checkModelDir(path string) bool {
	logging.Debug("  Checking model directory: %s", path)

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		logging.Warn("  Model directory unavailable: %s", path)
		logging.Warn("  Embeddings and local analysis will be disabled")
		return false
	}

	logging.Debug("    [OK] Model directory exists")
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func maskedString(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return "(set)"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogPipelineInit logs analysis pipeline initialization
func LogPipelineInit(workerCount int, softLimit, hardLimit time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ANALYSIS PIPELINE")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Workers:         %d", workerCount)
	logging.Info("  Task soft limit: %s", softLimit)
	logging.Info("  Task hard limit: %s", hardLimit)
}

// LogSchedulerInit logs batch scheduler initialization
func LogSchedulerInit(enabled bool, hour, minute, batchSize int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("BATCH SCHEDULER")
	logging.Info("------------------------------------------------------------")
	if !enabled {
		logging.Warn("  Scheduled processing disabled (AI_SCHEDULED_PROCESSING=false)")
		logging.Warn("  Items are only processed via manual batches or on upload")
		return
	}
	logging.Info("  Daily photo batch at %02d:%02d, videos 30m later", hour, minute)
	logging.Info("  Batch size: %d", batchSize)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		// Group routes by prefix for cleaner output
		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		// Sort group keys
		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		// Print routes by group
		for _, group := range groupKeys {
			groupRoutes := groups[group]
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groupRoutes {
				methodPadded := fmt.Sprintf("%-6s", route.Method)
				logging.Debug("    %s %s", methodPadded, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	// Special handling for API routes
	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Local access:")
	logging.Info("    Application:   http://localhost:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.MetricsPort)
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    ____  __          __           ___    ____
   / __ \/ /_  ____  / /_____     /   |  / / /_  __  ______ ___
  / /_/ / __ \/ __ \/ __/ __ \   / /| | / / __ \/ / / / __ '_ \
 / ____/ / / / /_/ / /_/ /_/ /  / ___ |/ / /_/ / /_/ / / / / / /
/_/   /_/ /_/\____/\__/\____/  /_/  |_/_/_.___/\__,_/_/ /_/ /_/

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

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
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

	if name == "media" && logging.IsDebugEnabled() {
		entries, err := os.ReadDir(path)
		if err == nil {
			fileCount := 0
			dirCount := 0
			for _, e := range entries {
				if e.IsDir() {
					dirCount++
				} else {
					fileCount++
				}
			}
			logging.Debug("    Contents: %d files, %d directories (top level)", fileCount, dirCount)
		}
	}

	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
