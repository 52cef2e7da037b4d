// Package config loads indicatorpipe settings from a config file, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"

	"github.com/nulllvoid/indicatorpipe"
)

const EnvPrefix = "INDICATORPIPE"

// DefaultKeys lists the nationalities of the student dataset in the order of
// its 1..21 encoding.
var DefaultKeys = []string{
	"PRT", "DEU", "ESP", "ITA", "NLD", "GBR", "LTU",
	"AGO", "CPV", "GIN", "MOZ", "STP", "TUR", "BRA",
	"ROU", "MDA", "MEX", "UKR", "RUS", "CUB", "COL",
}

// Config aggregates configuration for the application.
type Config struct {
	Indicator IndicatorConfig `mapstructure:"indicator"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Log       LogConfig       `mapstructure:"log"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	Report    string          `mapstructure:"report"`
}

type IndicatorConfig struct {
	Code       string        `mapstructure:"code"`
	Year       int           `mapstructure:"year"`
	Keys       []string      `mapstructure:"keys"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	MaxWorkers int           `mapstructure:"max_workers"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	Overrides  string        `mapstructure:"overrides"`
}

type DatasetConfig struct {
	Input         string `mapstructure:"input"`
	Output        string `mapstructure:"output"`
	Delimiter     string `mapstructure:"delimiter"`
	KeyColumn     string `mapstructure:"key_column"`
	ValueColumn   string `mapstructure:"value_column"`
	MissingMarker string `mapstructure:"missing_marker"`
	OnBadKey      string `mapstructure:"on_bad_key"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func Default() *Config {
	return &Config{
		Indicator: IndicatorConfig{
			Code:       "SP.DYN.LE00.IN",
			Year:       2019,
			Keys:       append([]string(nil), DefaultKeys...),
			BaseURL:    indicatorpipe.DefaultBaseURL,
			Timeout:    indicatorpipe.DefaultFetchTimeout,
			Retries:    0,
			RetryDelay: 500 * time.Millisecond,
			MaxWorkers: 1,
			CacheTTL:   time.Hour,
		},
		Dataset: DatasetConfig{
			Output:        "merged.csv",
			Delimiter:     string(indicatorpipe.DefaultDelimiter),
			KeyColumn:     indicatorpipe.DefaultKeyColumn,
			ValueColumn:   indicatorpipe.DefaultValueColumn,
			MissingMarker: indicatorpipe.DefaultMissingMarker,
			OnBadKey:      indicatorpipe.MarkMissing.String(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Timeout: indicatorpipe.DefaultConfig().Timeout,
	}
}

// Load reads configuration into a copy of Default(). Sources, highest
// priority first: flags bound on v, environment variables, the config file.
// Environment variables use the prefix "INDICATORPIPE" and the dot in keys
// is replaced by an underscore, so "indicator.year" becomes
// "INDICATORPIPE_INDICATOR_YEAR". Without an explicit path, config.yaml in
// the working directory is read when present.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	cfg := Default()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if k := v.GetString("indicator.keys"); k != "" {
		cfg.Indicator.Keys = splitList(k)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string(nil), parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}

func (c *Config) Validate() error {
	if err := indicatorpipe.ValidateIndicatorCode(c.Indicator.Code); err != nil {
		return err
	}
	if err := indicatorpipe.ValidateYear(c.Indicator.Year); err != nil {
		return err
	}
	if _, err := indicatorpipe.ParseKeys(c.Indicator.Keys); err != nil {
		return err
	}
	if len(c.Indicator.Keys) == 0 {
		return indicatorpipe.NewValidationError("indicator.keys", "at least one key is required")
	}
	if c.Indicator.MaxWorkers < 1 {
		return indicatorpipe.NewValidationError("indicator.max_workers", "must be at least 1")
	}
	if c.Indicator.Retries < 0 {
		return indicatorpipe.NewValidationError("indicator.retries", "must not be negative")
	}
	if _, err := c.Dataset.Comma(); err != nil {
		return err
	}
	if _, err := indicatorpipe.ParseBadKeyPolicy(c.Dataset.OnBadKey); err != nil {
		return err
	}
	if strings.TrimSpace(c.Dataset.KeyColumn) == "" {
		return indicatorpipe.NewValidationError("dataset.key_column", "is required")
	}
	if strings.TrimSpace(c.Dataset.ValueColumn) == "" {
		return indicatorpipe.NewValidationError("dataset.value_column", "is required")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Comma returns the field delimiter. "tab" and "\t" select a tab.
func (d DatasetConfig) Comma() (rune, error) {
	switch d.Delimiter {
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(d.Delimiter)
	if size == 0 || size != len(d.Delimiter) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, indicatorpipe.NewValidationError("dataset.delimiter", fmt.Sprintf("%q is not a single usable character", d.Delimiter))
	}
	return r, nil
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, indicatorpipe.NewValidationError("log.level", fmt.Sprintf("'%s' is not a log level", l.Level))
	}
	return level, nil
}
