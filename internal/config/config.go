// Package config defines the configuration contract and handles loading and
// validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken = "TELEGRAM_TOKEN"
	KeyBotOwner      = "BOT_OWNER"
	KeyStoreBackend  = "STORE_BACKEND"
	KeyDBHost        = "DB_HOST"
	KeyDBPort        = "DB_PORT"
	KeyDBName        = "DB_NAME"
	KeyDBUser        = "DB_USER"
	KeyDBPassword    = "DB_PASSWORD"
	KeyMongoURI      = "MONGO_URI"
	KeyMongoDB       = "MONGO_DB"
	KeyCSVPath       = "CSV_PATH"
	KeyCSVMirror     = "CSV_MIRROR"
	KeyXLSXPath      = "XLSX_PATH"
	KeyAppEnv        = "APP_ENV"
	KeyLogLevel      = "LOG_LEVEL"
	KeyLogFile       = "LOG_FILE"
	KeyHTTPPort      = "HTTP_PORT"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Store backends.
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendCSV      = "csv"
	BackendXLSX     = "xlsx"
	BackendNone     = "none"

	// Defaults for optional settings.
	DefaultAppEnv       = EnvProduction
	DefaultLogLevel     = "info"
	DefaultHTTPPort     = 8080
	DefaultStoreBackend = BackendPostgres
	DefaultDBPort       = 5432
	DefaultCSVPath      = "telegram_user_data.csv"
	DefaultXLSXPath     = "telegram_user_data_all.xlsx"
	DefaultMongoDBProd  = "career_bot"
	DefaultMongoDBDev   = "career_bot_dev"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// Only the Telegram token is required: missing store credentials degrade
// persistence to a logged no-op instead of blocking startup. .env loading is
// only permitted when APP_ENV=development.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyBotOwner,
		Example:     "123456789",
		Description: "Telegram user_id allowed to run /stats. Unset disables the command.",
	},
	{
		Key:         KeyStoreBackend,
		Example:     BackendPostgres + " / " + BackendMongo + " / " + BackendCSV + " / " + BackendXLSX + " / " + BackendNone,
		Default:     DefaultStoreBackend,
		Description: "Which interaction store to use.",
	},
	{
		Key:         KeyDBHost,
		Example:     "localhost",
		Description: "Postgres host. All of DB_HOST/DB_NAME/DB_USER/DB_PASSWORD must be set for the postgres backend.",
	},
	{
		Key:         KeyDBPort,
		Example:     strconv.Itoa(DefaultDBPort),
		Default:     strconv.Itoa(DefaultDBPort),
		Description: "Postgres port.",
	},
	{
		Key:         KeyDBName,
		Example:     "railway",
		Description: "Postgres database name.",
	},
	{
		Key:         KeyDBUser,
		Example:     "bot",
		Description: "Postgres user.",
	},
	{
		Key:         KeyDBPassword,
		Example:     "secret",
		Description: "Postgres password.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Description: "MongoDB connection string (mongo backend).",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Description: "MongoDB database name.",
		Notes:       "Defaults to " + DefaultMongoDBProd + " (production) or " + DefaultMongoDBDev + " (development).",
	},
	{
		Key:         KeyCSVPath,
		Example:     DefaultCSVPath,
		Default:     DefaultCSVPath,
		Description: "Delimited-file store path (csv backend).",
	},
	{
		Key:         KeyCSVMirror,
		Example:     "mirror.csv",
		Description: "Optional CSV path mirroring every interaction alongside the primary store.",
	},
	{
		Key:         KeyXLSXPath,
		Example:     DefaultXLSXPath,
		Default:     DefaultXLSXPath,
		Description: "Workbook store path (xlsx backend).",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyLogFile,
		Example:     "telegram_database.log",
		Description: "Optional log file; output is written there in addition to stdout.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/diagnostics port.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken string
	BotOwnerID    int64
	StoreBackend  string
	DBHost        string
	DBPort        int
	DBName        string
	DBUser        string
	DBPassword    string
	MongoURI      string
	MongoDB       string
	CSVPath       string
	CSVMirror     string
	XLSXPath      string
	AppEnv        string
	LogLevel      string
	LogFile       string
	HTTPPort      int
}

// Load resolves configuration from the environment (with optional dotenv in
// development). Only the Telegram token and malformed values are fatal.
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:        firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken: strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		StoreBackend:  firstNonEmpty(normalizeEnv(os.Getenv(KeyStoreBackend)), DefaultStoreBackend),
		DBHost:        strings.TrimSpace(os.Getenv(KeyDBHost)),
		DBPort:        DefaultDBPort,
		DBName:        strings.TrimSpace(os.Getenv(KeyDBName)),
		DBUser:        strings.TrimSpace(os.Getenv(KeyDBUser)),
		DBPassword:    strings.TrimSpace(os.Getenv(KeyDBPassword)),
		MongoURI:      strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:       strings.TrimSpace(os.Getenv(KeyMongoDB)),
		CSVPath:       firstNonEmpty(strings.TrimSpace(os.Getenv(KeyCSVPath)), DefaultCSVPath),
		CSVMirror:     strings.TrimSpace(os.Getenv(KeyCSVMirror)),
		XLSXPath:      firstNonEmpty(strings.TrimSpace(os.Getenv(KeyXLSXPath)), DefaultXLSXPath),
		LogLevel:      firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		LogFile:       strings.TrimSpace(os.Getenv(KeyLogFile)),
		HTTPPort:      DefaultHTTPPort,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	if err := validateBackend(cfg.StoreBackend); err != nil {
		return Config{}, err
	}

	if cfg.TelegramToken == "" {
		return Config{}, fmt.Errorf("missing required environment variable: %s", KeyTelegramToken)
	}

	if ownerRaw := strings.TrimSpace(os.Getenv(KeyBotOwner)); ownerRaw != "" {
		ownerID, parseErr := strconv.ParseInt(ownerRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyBotOwner, parseErr)
		}
		cfg.BotOwnerID = ownerID
	}

	if portRaw := strings.TrimSpace(os.Getenv(KeyDBPort)); portRaw != "" {
		port, parseErr := strconv.Atoi(portRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyDBPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyDBPort)
		}
		cfg.DBPort = port
	}

	if cfg.MongoDB == "" {
		if cfg.IsDevelopment() {
			cfg.MongoDB = DefaultMongoDBDev
		} else {
			cfg.MongoDB = DefaultMongoDBProd
		}
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// MissingPostgresKeys lists the postgres credential keys that are unset.
// A non-empty result means the postgres backend must degrade to a no-op.
func (c Config) MissingPostgresKeys() []string {
	missing := make([]string, 0, 4)
	if c.DBHost == "" {
		missing = append(missing, KeyDBHost)
	}
	if c.DBName == "" {
		missing = append(missing, KeyDBName)
	}
	if c.DBUser == "" {
		missing = append(missing, KeyDBUser)
	}
	if c.DBPassword == "" {
		missing = append(missing, KeyDBPassword)
	}
	return missing
}

// MissingMongoKeys lists the mongo credential keys that are unset.
func (c Config) MissingMongoKeys() []string {
	missing := make([]string, 0, 1)
	if c.MongoURI == "" {
		missing = append(missing, KeyMongoURI)
	}
	return missing
}

// FormatRedacted renders the resolved configuration with secrets masked,
// for the --config-only startup check.
func FormatRedacted(c Config) string {
	lines := []string{
		KeyAppEnv + "=" + c.AppEnv,
		KeyTelegramToken + "=" + redact(c.TelegramToken),
		KeyBotOwner + "=" + strconv.FormatInt(c.BotOwnerID, 10),
		KeyStoreBackend + "=" + c.StoreBackend,
		KeyDBHost + "=" + c.DBHost,
		KeyDBPort + "=" + strconv.Itoa(c.DBPort),
		KeyDBName + "=" + c.DBName,
		KeyDBUser + "=" + c.DBUser,
		KeyDBPassword + "=" + redact(c.DBPassword),
		KeyMongoURI + "=" + redact(c.MongoURI),
		KeyMongoDB + "=" + c.MongoDB,
		KeyCSVPath + "=" + c.CSVPath,
		KeyCSVMirror + "=" + c.CSVMirror,
		KeyXLSXPath + "=" + c.XLSXPath,
		KeyLogLevel + "=" + c.LogLevel,
		KeyLogFile + "=" + c.LogFile,
		KeyHTTPPort + "=" + strconv.Itoa(c.HTTPPort),
	}
	return strings.Join(lines, "\n")
}

func redact(value string) string {
	if value == "" {
		return ""
	}
	return "***"
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func validateBackend(backend string) error {
	switch backend {
	case BackendPostgres, BackendMongo, BackendCSV, BackendXLSX, BackendNone:
		return nil
	}

	return fmt.Errorf("invalid %s: %q", KeyStoreBackend, backend)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
