package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "FILTER_"

// AppConfig holds the settings of one rr-filter run.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Sources are filter list URLs or paths, merged in order.
	Sources []string `koanf:"sources" validate:"dive,required"`

	// SourcesFile names a list of sources, one per line, appended to Sources.
	SourcesFile string `koanf:"sources_file"`

	OutputFile  string `koanf:"output_file" validate:"required"`
	DeletedLog  string `koanf:"deleted_log"`
	SummaryFile string `koanf:"summary_file"`
	HistoryDB   string `koanf:"history_db"`
	MetricsFile string `koanf:"metrics_file"`

	// Workers is the number of concurrent domain validations.
	Workers      int           `koanf:"workers" validate:"gte=1,lte=1024"`
	FetchWorkers int           `koanf:"fetch_workers" validate:"gte=1,lte=256"`
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"gt=0"`

	// Servers is a list of recursive DNS servers in ip:port format.
	Servers        []string      `koanf:"servers" validate:"required,min=1,dive,ip_port"`
	DNSTimeout     time.Duration `koanf:"dns_timeout" validate:"gt=0"`
	DNSDialTimeout time.Duration `koanf:"dns_dial_timeout" validate:"gte=0"`
	// QueryRate caps DNS queries per second; 0 means unlimited.
	QueryRate float64 `koanf:"query_rate" validate:"gte=0"`

	// CacheSize bounds the validation cache; 0 means unbounded.
	CacheSize int `koanf:"cache_size" validate:"gte=0"`
	// BloomFPRate sizes the resolver's Bloom prefilter; 0 disables it.
	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"gte=0,lt=1"`
}

// DEFAULT_APP_CONFIG defines the defaults applied before the config file,
// the environment and command line overrides.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:            "prod",
	LogLevel:       "info",
	Sources:        []string{},
	OutputFile:     "dist/blocklist_valid.txt",
	DeletedLog:     "dist/deleted_rules.log",
	Workers:        20,
	FetchWorkers:   10,
	FetchTimeout:   20 * time.Second,
	Servers:        []string{"1.1.1.1:53", "8.8.8.8:53"},
	DNSTimeout:     5 * time.Second,
	DNSDialTimeout: 5 * time.Second,
	QueryRate:      0,
	CacheSize:      0,
	BloomFPRate:    0.01,
}

// validIPPort validates whether the provided field value is a valid IP address and port combination.
// It expects the value to be in the format "IP:Port".
func validIPPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	ip, port, err := net.SplitHostPort(addr)
	if err != nil || ip == "" || port == "" {
		return false
	}
	if net.ParseIP(ip) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0 && portNum < 65536
}

// envLoader loads environment variables with the prefix "FILTER_".
// Values holding spaces or commas become lists. It can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader merges a YAML config file when path is set.
var fileLoader = func(k *koanf.Koanf, path string) error {
	if path == "" {
		return nil
	}
	return k.Load(file.Provider(path), yaml.Parser())
}

// registerValidation registers the "ip_port" validation with v.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("ip_port", validIPPort)
}

// Load builds an AppConfig from defaults, the optional YAML file at path,
// FILTER_* environment variables and overrides, in increasing precedence,
// and validates the result.
func Load(path string, overrides map[string]any) (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := fileLoader(k, path); err != nil {
		return nil, fmt.Errorf("error loading config file %s: %w", path, err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("error loading overrides: %w", err)
		}
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
