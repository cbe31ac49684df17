package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration settings for the application.
type Config struct {
	// Server settings
	ListenAddress string
	ListenPort    string
	Title         string

	// Local data files
	WorkbookPath     string
	UsersFilePath    string
	SessionsFilePath string
	EnableBackup     bool

	// Session policy
	MaxActiveSessions int
	SessionDuration   time.Duration
	AdminExempt       bool // Admin account bypasses the single-session and capacity rules

	// Dataset cache
	CacheTTL time.Duration

	// Remote sync (GitHub contents API). Sync is enabled when Owner, Repo
	// and Path are all set.
	RemoteOwner   string
	RemoteRepo    string
	RemoteBranch  string
	RemotePath    string
	RemoteToken   string // Bearer credential; optional (public reads may work without it)
	RemoteTimeout time.Duration

	// Authentication settings
	JwtSecret     string // The actual secret key
	JwtSecretFile string // Path to the file containing the secret
}

const (
	defaultAddress         = "0.0.0.0"
	defaultPort            = "8080"
	defaultTitle           = "Sheetboard"
	defaultWorkbook        = "./data.xlsx"
	defaultUsersFile       = "./users.json"
	defaultSessionsFile    = "./sessions.json"
	defaultEnableBackup    = true
	defaultMaxSessions     = 3
	defaultSessionDuration = 30 * time.Minute
	defaultAdminExempt     = true
	defaultCacheTTL        = 3 * time.Minute
	defaultRemoteBranch    = "main"
	defaultRemoteTimeout   = 15 * time.Second
	defaultJwtSecretFile   = ""                 // No default file
	defaultJwtKeyFile      = "./sheetboard.key" // Default file if we generate a key
)

// LoadConfig loads configuration from defaults, environment variables, and
// command-line flags. Flags take precedence over environment variables, which
// take precedence over defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	// Environment variables use the SHEETBOARD_ prefix to avoid conflicts.
	flag.StringVar(&cfg.ListenAddress, "address", getEnv("SHEETBOARD_LISTEN_ADDRESS", defaultAddress), "Server listen address (Env: SHEETBOARD_LISTEN_ADDRESS)")
	flag.StringVar(&cfg.ListenPort, "port", getEnv("SHEETBOARD_LISTEN_PORT", defaultPort), "Server listen port (Env: SHEETBOARD_LISTEN_PORT)")
	flag.StringVar(&cfg.Title, "title", getEnv("SHEETBOARD_TITLE", defaultTitle), "Dashboard title string (Env: SHEETBOARD_TITLE)")

	flag.StringVar(&cfg.WorkbookPath, "workbook", getEnv("SHEETBOARD_WORKBOOK", defaultWorkbook), "Path to the local spreadsheet workbook (Env: SHEETBOARD_WORKBOOK)")
	flag.StringVar(&cfg.UsersFilePath, "users-file", getEnv("SHEETBOARD_USERS_FILE", defaultUsersFile), "Path to the credential store file (Env: SHEETBOARD_USERS_FILE)")
	flag.StringVar(&cfg.SessionsFilePath, "sessions-file", getEnv("SHEETBOARD_SESSIONS_FILE", defaultSessionsFile), "Path to the session registry file (Env: SHEETBOARD_SESSIONS_FILE)")
	flag.BoolVar(&cfg.EnableBackup, "enable-backup", getEnvBool("SHEETBOARD_ENABLE_BACKUP", defaultEnableBackup), "Keep a .bak copy of registry files before rewriting (Env: SHEETBOARD_ENABLE_BACKUP)")

	flag.IntVar(&cfg.MaxActiveSessions, "max-sessions", getEnvInt("SHEETBOARD_MAX_SESSIONS", defaultMaxSessions), "Maximum concurrently active non-exempt users (Env: SHEETBOARD_MAX_SESSIONS)")
	sessionDurationStr := flag.String("session-duration", getEnv("SHEETBOARD_SESSION_DURATION", defaultSessionDuration.String()), "Session expiry window, e.g. 30m (Env: SHEETBOARD_SESSION_DURATION)")
	flag.BoolVar(&cfg.AdminExempt, "admin-exempt", getEnvBool("SHEETBOARD_ADMIN_EXEMPT", defaultAdminExempt), "Exempt the admin account from session limits (Env: SHEETBOARD_ADMIN_EXEMPT)")

	cacheTTLStr := flag.String("cache-ttl", getEnv("SHEETBOARD_CACHE_TTL", defaultCacheTTL.String()), "Dataset cache time-to-live (Env: SHEETBOARD_CACHE_TTL)")

	flag.StringVar(&cfg.RemoteOwner, "remote-owner", getEnv("SHEETBOARD_REMOTE_OWNER", ""), "GitHub repository owner for remote sync (Env: SHEETBOARD_REMOTE_OWNER)")
	flag.StringVar(&cfg.RemoteRepo, "remote-repo", getEnv("SHEETBOARD_REMOTE_REPO", ""), "GitHub repository name for remote sync (Env: SHEETBOARD_REMOTE_REPO)")
	flag.StringVar(&cfg.RemoteBranch, "remote-branch", getEnv("SHEETBOARD_REMOTE_BRANCH", defaultRemoteBranch), "Branch holding the remote workbook (Env: SHEETBOARD_REMOTE_BRANCH)")
	flag.StringVar(&cfg.RemotePath, "remote-path", getEnv("SHEETBOARD_REMOTE_PATH", ""), "Path of the workbook inside the remote repository (Env: SHEETBOARD_REMOTE_PATH)")
	remoteTimeoutStr := flag.String("remote-timeout", getEnv("SHEETBOARD_REMOTE_TIMEOUT", defaultRemoteTimeout.String()), "Timeout for remote store calls (Env: SHEETBOARD_REMOTE_TIMEOUT)")

	flag.StringVar(&cfg.JwtSecretFile, "jwt-secret-file", getEnv("SHEETBOARD_JWT_SECRET_FILE", defaultJwtSecretFile), "Path to file containing JWT secret key (overrides SHEETBOARD_JWT_SECRET env var) (Env: SHEETBOARD_JWT_SECRET_FILE)")

	flag.Parse()

	// The bearer credential is only read from the environment, never a flag,
	// so it does not show up in process listings.
	cfg.RemoteToken = getEnv("SHEETBOARD_REMOTE_TOKEN", "")

	var err error
	cfg.SessionDuration, err = time.ParseDuration(*sessionDurationStr)
	if err != nil {
		log.Printf("WARN: Invalid session-duration '%s'. Using default %s. Error: %v", *sessionDurationStr, defaultSessionDuration, err)
		cfg.SessionDuration = defaultSessionDuration
	}
	cfg.CacheTTL, err = time.ParseDuration(*cacheTTLStr)
	if err != nil {
		log.Printf("WARN: Invalid cache-ttl '%s'. Using default %s. Error: %v", *cacheTTLStr, defaultCacheTTL, err)
		cfg.CacheTTL = defaultCacheTTL
	}
	cfg.RemoteTimeout, err = time.ParseDuration(*remoteTimeoutStr)
	if err != nil {
		log.Printf("WARN: Invalid remote-timeout '%s'. Using default %s. Error: %v", *remoteTimeoutStr, defaultRemoteTimeout, err)
		cfg.RemoteTimeout = defaultRemoteTimeout
	}

	if cfg.MaxActiveSessions < 1 {
		log.Printf("WARN: max-sessions must be at least 1, got %d. Using default %d.", cfg.MaxActiveSessions, defaultMaxSessions)
		cfg.MaxActiveSessions = defaultMaxSessions
	}

	// --- JWT Secret Handling ---
	// Priority: File (CLI/Env) > Env Var > Default Key File > Generate
	var secretSource string

	// 1. Check explicit file path (from flag or SHEETBOARD_JWT_SECRET_FILE env)
	if cfg.JwtSecretFile != "" {
		secretBytes, err := os.ReadFile(cfg.JwtSecretFile)
		if err == nil {
			cfg.JwtSecret = strings.TrimSpace(string(secretBytes))
			if cfg.JwtSecret != "" {
				log.Printf("INFO: Loaded JWT secret from specified file: %s", cfg.JwtSecretFile)
				secretSource = fmt.Sprintf("File (%s)", cfg.JwtSecretFile)
			} else {
				log.Printf("WARN: Specified JWT secret file '%s' is empty or contains only whitespace. Ignoring.", cfg.JwtSecretFile)
			}
		} else {
			log.Printf("WARN: Failed to read specified JWT secret file '%s': %v. Checking other sources.", cfg.JwtSecretFile, err)
		}
	}

	// 2. Check environment variable (SHEETBOARD_JWT_SECRET) if not loaded from file
	if cfg.JwtSecret == "" {
		cfg.JwtSecret = strings.TrimSpace(getEnv("SHEETBOARD_JWT_SECRET", ""))
		if cfg.JwtSecret != "" {
			log.Printf("INFO: Loaded JWT secret from SHEETBOARD_JWT_SECRET environment variable.")
			secretSource = "Environment Variable (SHEETBOARD_JWT_SECRET)"
		}
	}

	// 3. Check default key file if still no secret
	if cfg.JwtSecret == "" {
		secretBytes, err := os.ReadFile(defaultJwtKeyFile)
		if err == nil {
			cfg.JwtSecret = strings.TrimSpace(string(secretBytes))
			if cfg.JwtSecret != "" {
				log.Printf("INFO: Loaded JWT secret from default key file: %s", defaultJwtKeyFile)
				secretSource = fmt.Sprintf("Default Key File (%s)", defaultJwtKeyFile)
			} else {
				log.Printf("WARN: Default JWT key file '%s' is empty or contains only whitespace. Will attempt generation.", defaultJwtKeyFile)
			}
		} else if !os.IsNotExist(err) {
			log.Printf("WARN: Failed to read default JWT key file '%s': %v. Will attempt generation.", defaultJwtKeyFile, err)
		}
	}

	// 4. Generate secret if still not found and save to default file
	if cfg.JwtSecret == "" {
		log.Printf("INFO: JWT secret not found via file, environment variable, or default key file. Generating a new secret...")
		newSecret, err := generateRandomKey(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.JwtSecret = newSecret

		if err := os.WriteFile(defaultJwtKeyFile, []byte(newSecret), 0600); err != nil {
			log.Printf("WARN: Failed to save generated JWT secret to '%s': %v. The server will use the generated key for this session only.", defaultJwtKeyFile, err)
			secretSource = "Generated (In Memory)"
		} else {
			log.Printf("INFO: Successfully generated and saved new JWT secret to: %s", defaultJwtKeyFile)
			secretSource = fmt.Sprintf("Generated & Saved (%s)", defaultJwtKeyFile)
		}
	}

	if cfg.JwtSecret == "" {
		return nil, fmt.Errorf("failed to obtain a valid JWT secret after checking all sources and attempting generation")
	}

	// --- Path Validation ---
	for _, p := range []*string{&cfg.WorkbookPath, &cfg.UsersFilePath, &cfg.SessionsFilePath} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return nil, fmt.Errorf("could not determine absolute path for '%s': %w", *p, err)
		}
		*p = abs
		// The file may not exist yet (created on first run), but it must not
		// point at a directory.
		if info, err := os.Stat(*p); err == nil && info.IsDir() {
			return nil, fmt.Errorf("data path '%s' points to a directory, not a file", *p)
		}
	}

	if cfg.RemoteConfigured() {
		log.Printf("INFO: Remote sync enabled for %s/%s@%s:%s", cfg.RemoteOwner, cfg.RemoteRepo, cfg.RemoteBranch, cfg.RemotePath)
	} else if cfg.RemoteOwner != "" || cfg.RemoteRepo != "" || cfg.RemotePath != "" {
		log.Printf("WARN: Incomplete remote configuration (owner/repo/path must all be set). Remote sync disabled.")
	}

	logConfiguration(cfg, secretSource)

	return cfg, nil
}

// RemoteConfigured reports whether remote sync has a complete target.
func (cfg *Config) RemoteConfigured() bool {
	return cfg.RemoteOwner != "" && cfg.RemoteRepo != "" && cfg.RemotePath != ""
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// Recognizes "true", "1", "yes" (case-insensitive) as true.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
		log.Printf("WARN: Invalid boolean value for environment variable %s: '%s'. Using default: %t", key, value, fallback)
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("WARN: Invalid integer value for environment variable %s: '%s'. Using default: %d", key, value, fallback)
	}
	return fallback
}

// logConfiguration prints the loaded configuration settings.
func logConfiguration(cfg *Config, secretSource string) {
	log.Println("--- Configuration ---")
	log.Printf("Server Address: %s", cfg.ListenAddress)
	log.Printf("Server Port: %s", cfg.ListenPort)
	log.Printf("Title: %s", cfg.Title)
	log.Printf("Workbook File: %s", cfg.WorkbookPath)
	log.Printf("Users File: %s", cfg.UsersFilePath)
	log.Printf("Sessions File: %s", cfg.SessionsFilePath)
	log.Printf("Backup Enabled: %t", cfg.EnableBackup)
	log.Printf("Max Active Sessions: %d", cfg.MaxActiveSessions)
	log.Printf("Session Duration: %s", cfg.SessionDuration)
	log.Printf("Admin Exempt: %t", cfg.AdminExempt)
	log.Printf("Dataset Cache TTL: %s", cfg.CacheTTL)
	log.Printf("Remote Sync: %t", cfg.RemoteConfigured())
	if cfg.RemoteConfigured() {
		log.Printf("Remote Target: %s/%s@%s:%s", cfg.RemoteOwner, cfg.RemoteRepo, cfg.RemoteBranch, cfg.RemotePath)
		log.Printf("Remote Credential Present: %t", cfg.RemoteToken != "")
		log.Printf("Remote Timeout: %s", cfg.RemoteTimeout)
	}
	log.Printf("JWT Secret Source: %s", secretSource)
	log.Println("---------------------")
}

// generateRandomKey generates a cryptographically secure random key of the
// specified byte length and returns it as a hex-encoded string.
func generateRandomKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
