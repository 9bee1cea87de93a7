package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	Secret     string        `mapstructure:"secret"`
	SendBuffer int           `mapstructure:"send_buffer"`
	PingPeriod time.Duration `mapstructure:"ping_period"`

	// AllowedOrigin gates the websocket upgrade. "*" accepts any origin.
	AllowedOrigin string `mapstructure:"allowed_origin"`

	// DeepgramAPIKey enables the transcription bridge. Empty disables it
	// with a clean error to clients rather than a crash.
	DeepgramAPIKey string `mapstructure:"deepgram_api_key"`

	STUNURLs       []string `mapstructure:"stun_urls"`
	TURNURL        string   `mapstructure:"turn_url"`
	TURNUsername   string   `mapstructure:"turn_username"`
	TURNCredential string   `mapstructure:"turn_credential"`

	ReaperInterval time.Duration `mapstructure:"reaper_interval"`
	MatchTTL       time.Duration `mapstructure:"match_ttl"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("allowed_origin", "*")
	v.SetDefault("stun_urls", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("reaper_interval", "5m")
	v.SetDefault("match_ttl", "30m")

	_ = v.BindEnv("deepgram_api_key", "DEEPGRAM_API_KEY")
	_ = v.BindEnv("turn_url", "TURN_URL")
	_ = v.BindEnv("turn_username", "TURN_USERNAME")
	_ = v.BindEnv("turn_credential", "TURN_CREDENTIAL")
	_ = v.BindEnv("allowed_origin", "ALLOWED_ORIGIN")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Origin: %s\n", cfg.Mode, cfg.Port, cfg.AllowedOrigin)
	return &cfg, nil
}
