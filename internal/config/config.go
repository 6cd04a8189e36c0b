package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath        string
	TelegramToken string
	// TelegramChats restricts the bot to these chat ids. Empty binds it to
	// the first chat that sends /start.
	TelegramChats []int64
	Location      *time.Location
	HTTPAddr      string
	LogDir        string
	Debug         bool

	// NotifyWhenEmpty emits a diagnostic reminder on days with nothing assigned.
	NotifyWhenEmpty bool
	// DestructiveMigrations drops and recreates tables on an unknown schema version.
	DestructiveMigrations bool

	BackupDSN    string
	BackupUserID string

	VapidPublicKey  string
	VapidPrivateKey string
	VapidSubject    string
}

const (
	DBName         = "prayernote.db"
	DefaultAddr    = ":8080"
	tokenSecret    = "/run/secrets/telegram_bot_token"
	backupDSNEnv   = "PRAYERNOTE_BACKUP_DSN"
	defaultLogDir  = "logs"
	defaultTZ      = "Local"
	envPrefix      = "PRAYERNOTE_"
	secretsBaseDir = "/run/secrets"
)

// Load reads .env (if present), then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	loc, err := loadLocation(getEnv(envPrefix+"TZ", defaultTZ))
	if err != nil {
		return Config{}, err
	}

	chats, err := parseChats(os.Getenv("TELEGRAM_ALLOWED_CHATS"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		DBPath:                getEnv(envPrefix+"DB", DBName),
		TelegramToken:         getBotToken(),
		TelegramChats:         chats,
		Location:              loc,
		HTTPAddr:              getEnv(envPrefix+"HTTP_ADDR", DefaultAddr),
		LogDir:                getEnv(envPrefix+"LOG_DIR", defaultLogDir),
		Debug:                 getBool(envPrefix+"DEBUG", false),
		NotifyWhenEmpty:       getBool(envPrefix+"NOTIFY_WHEN_EMPTY", false),
		DestructiveMigrations: getBool(envPrefix+"DESTRUCTIVE_MIGRATIONS", true),
		BackupDSN:             getSecret("prayernote_backup_dsn", backupDSNEnv),
		BackupUserID:          strings.TrimSpace(os.Getenv(envPrefix + "USER_ID")),
		VapidPublicKey:        strings.TrimSpace(os.Getenv("VAPID_PUBLIC_KEY")),
		VapidPrivateKey:       getSecret("vapid_private_key", "VAPID_PRIVATE_KEY"),
		VapidSubject:          strings.TrimSpace(os.Getenv("VAPID_SUBJECT")),
	}, nil
}

// WebPushConfigured reports whether all VAPID settings are present.
func (c Config) WebPushConfigured() bool {
	return c.VapidPublicKey != "" && c.VapidPrivateKey != "" && c.VapidSubject != ""
}

// Token lookup order: Docker secret, then environment. Empty means the bot is off.
func getBotToken() string {
	if data, err := os.ReadFile(tokenSecret); err == nil {
		token := strings.TrimSpace(string(data))
		if token != "" {
			return token
		}
	}
	return strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
}

func getSecret(file, env string) string {
	if data, err := os.ReadFile(filepath.Join(secretsBaseDir, file)); err == nil {
		if v := strings.TrimSpace(string(data)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(os.Getenv(env))
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// parseChats reads a comma separated list of chat ids.
func parseChats(v string) ([]int64, error) {
	var res []int64
	for _, f := range strings.Split(v, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_CHATS entry %q: %w", f, err)
		}
		res = append(res, id)
	}
	return res, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == defaultTZ {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid %sTZ %q: %w", envPrefix, name, err)
	}
	return loc, nil
}
