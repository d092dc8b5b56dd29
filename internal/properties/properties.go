package properties

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forest-guardian/canasat/internal/sentinel"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const DefaultServeAddr = ":8080"

type SentinelConfig struct {
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	APIURL   string        `mapstructure:"api_url"`
	TokenURL string        `mapstructure:"token_url"`
	ClientID string        `mapstructure:"client_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type DiscordConfig struct {
	ErrorURL   string `mapstructure:"error_url"`
	SuccessURL string `mapstructure:"success_url"`
}

// Config is resolved from, in order of precedence, CANASAT_* environment
// variables, canasat.yaml and built-in defaults.
type Config struct {
	RootPath         string         `mapstructure:"root_path"`
	DataRawDir       string         `mapstructure:"data_raw_dir"`
	DataProcessedDir string         `mapstructure:"data_processed_dir"`
	MapsDir          string         `mapstructure:"maps_dir"`
	TablesDir        string         `mapstructure:"tables_dir"`
	CacheDir         string         `mapstructure:"cache_dir"`
	LogLevel         string         `mapstructure:"log_level"`
	LogConsole       bool           `mapstructure:"log_console"`
	MetricsFile      string         `mapstructure:"metrics_file"`
	ServeAddr        string         `mapstructure:"serve_addr"`
	Sentinel         SentinelConfig `mapstructure:"sentinel"`
	Discord          DiscordConfig  `mapstructure:"discord"`
}

// LoadEnv reads the first .env files found walking up from the working
// directory. Missing files are not an error.
func LoadEnv() {
	for _, path := range []string{"../../.env", "../.env", ".env"} {
		_ = godotenv.Load(path)
	}
}

// Init configures viper. An empty configFile searches canasat.yaml in the
// working and home directories.
func Init(configFile string) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("canasat")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("CANASAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// legacy names used by the scripts this tool replaced
	_ = viper.BindEnv("root_path", "CANASAT_ROOT_PATH", "ROOT_PATH")
	_ = viper.BindEnv("sentinel.username", "CANASAT_SENTINEL_USERNAME", "SENTINEL_USERNAME")
	_ = viper.BindEnv("sentinel.password", "CANASAT_SENTINEL_PASSWORD", "SENTINEL_PASSWORD")
	_ = viper.BindEnv("discord.error_url", "CANASAT_DISCORD_ERROR_URL", "DISCORD_ERROR_NOTIFICATION_URL")
	_ = viper.BindEnv("discord.success_url", "CANASAT_DISCORD_SUCCESS_URL", "DISCORD_SUCCESS_NOTIFICATION_URL")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("root_path", ".")
	viper.SetDefault("data_raw_dir", "")
	viper.SetDefault("data_processed_dir", "")
	viper.SetDefault("maps_dir", "")
	viper.SetDefault("tables_dir", "")
	viper.SetDefault("cache_dir", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_console", true)
	viper.SetDefault("metrics_file", "")
	viper.SetDefault("serve_addr", DefaultServeAddr)
	viper.SetDefault("sentinel.username", "")
	viper.SetDefault("sentinel.password", "")
	viper.SetDefault("sentinel.api_url", sentinel.DefaultAPIURL)
	viper.SetDefault("sentinel.token_url", sentinel.DefaultTokenURL)
	viper.SetDefault("sentinel.client_id", sentinel.DefaultClientID)
	viper.SetDefault("sentinel.timeout", sentinel.DefaultTimeout)
	viper.SetDefault("discord.error_url", "")
	viper.SetDefault("discord.success_url", "")
}

// Load applies defaults and unmarshals the current viper state. Directories
// left empty resolve under RootPath.
func Load() (Config, error) {
	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if cfg.RootPath == "" {
		cfg.RootPath = "."
	}
	under := func(dir *string, parts ...string) {
		if *dir == "" {
			*dir = filepath.Join(append([]string{cfg.RootPath}, parts...)...)
		}
	}
	under(&cfg.DataRawDir, "data", "raw")
	under(&cfg.DataProcessedDir, "data", "processed")
	under(&cfg.MapsDir, "mapas")
	under(&cfg.TablesDir, "tabelas")
	under(&cfg.CacheDir, "data", "cache")
	return cfg, nil
}

// HasSentinelCredentials reports whether the catalog can be used.
func (c Config) HasSentinelCredentials() bool {
	return c.Sentinel.Username != "" && c.Sentinel.Password != ""
}

func (c Config) CatalogConfig() sentinel.CatalogConfig {
	return sentinel.CatalogConfig{
		Username: c.Sentinel.Username,
		Password: c.Sentinel.Password,
		APIURL:   c.Sentinel.APIURL,
		TokenURL: c.Sentinel.TokenURL,
		ClientID: c.Sentinel.ClientID,
		Timeout:  c.Sentinel.Timeout,
	}
}

func RootPath() string {
	if p := viper.GetString("root_path"); p != "" {
		return p
	}
	return os.Getenv("ROOT_PATH")
}
