package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/talento-chat/internal/secrets"
)

const (
	app = "talento-chat"

	defaultLogFile = app + ".log"
	tokenEnv       = "TALENTO_TOKEN"
)

type Config struct {
	APIURL    string           `mapstructure:"api-url"`
	WSURL     string           `mapstructure:"ws-url"`
	UserAgent string           `mapstructure:"user-agent"`
	TokenFile string           `mapstructure:"token-file"`
	LogFile   string           `mapstructure:"log-file"`
	Chat      *ChatConfig      `mapstructure:"chat"`
	Positions *PositionsConfig `mapstructure:"positions"`
}

type ChatConfig struct {
	MaxMessages  int           `mapstructure:"max-messages"`
	MaxFileSize  int64         `mapstructure:"max-file-size"`
	Keepalive    time.Duration `mapstructure:"keepalive"`
	Welcome      string        `mapstructure:"welcome"`
	WelcomeDelay time.Duration `mapstructure:"welcome-delay"`
	CVPhrases    []string      `mapstructure:"cv-phrases"`
}

// PositionsConfig narrows the positions listing. A negative MaxExperience
// disables the experience filter.
type PositionsConfig struct {
	CacheTTL      time.Duration `mapstructure:"cache-ttl"`
	Retries       int           `mapstructure:"retries"`
	Skills        []string      `mapstructure:"skills"`
	Availability  string        `mapstructure:"availability"`
	MaxExperience int           `mapstructure:"max-experience"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "talento-chat is a terminal client for the recruiting evaluation chat",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"ws-url":     "PUBLIC_WS_URL",
		"api-url":    "PUBLIC_API_URL",
		"token-file": "TALENTO_TOKEN_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("api-url", "http://localhost:8000")
	viper.SetDefault("ws-url", "ws://localhost:8000")
	viper.SetDefault("log-file", defaultLogFile)
	viper.SetDefault("chat.keepalive", 30*time.Second)
	viper.SetDefault("chat.welcome-delay", 500*time.Millisecond)
	viper.SetDefault("positions.cache-ttl", 5*time.Minute)
	viper.SetDefault("positions.retries", 2)
	viper.SetDefault("positions.max-experience", -1)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is talento-chat.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every setting has a default, so a missing config file is fine.
	// An explicit --config that cannot be read is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Chat == nil {
		config.Chat = &ChatConfig{}
	}
	if config.Positions == nil {
		config.Positions = &PositionsConfig{MaxExperience: -1}
	}

	return config, nil
}

// resolveToken loads the optional bearer token for the evaluation service,
// from the token file or the TALENTO_TOKEN variable.
func resolveToken(config *Config) (string, error) {
	if config == nil {
		return "", errors.New("config is required")
	}

	tokenFile := strings.TrimSpace(config.TokenFile)
	if tokenFile == "" {
		tokenFile = strings.TrimSpace(viper.GetString("token-file"))
	}

	return secrets.Optional(secrets.Source{
		Name: "api token",
		File: tokenFile,
		Env:  tokenEnv,
	})
}
