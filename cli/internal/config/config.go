package config

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

var AppFs = afero.NewOsFs()

// Config holds the CLI configuration
type Config struct {
	SchemaPath     string
	Provider       string
	DatabaseURL    string
	NullSemantics  string
	SplitQuery     bool
	DetailedErrors bool
	ServerVersion  string
	Debug          bool
}

// LoadConfig loads configuration from .relquery.yaml, RELQUERY_* variables
// and the .env files of the working directory
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigName(".relquery")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "relquery"))
	}

	v.SetEnvPrefix("RELQUERY")
	v.AutomaticEnv()

	v.SetDefault("schema_path", "schema.prisma")
	v.SetDefault("null_semantics", "relational")
	v.SetDefault("split_query", false)
	v.SetDefault("detailed_errors", false)
	v.SetDefault("debug", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := loadEnv(".env", false); err != nil {
		return nil, err
	}
	// .env.local takes priority
	if err := loadEnv(".env.local", true); err != nil {
		return nil, err
	}

	cfg := &Config{
		SchemaPath:     v.GetString("schema_path"),
		Provider:       v.GetString("provider"),
		DatabaseURL:    v.GetString("database_url"),
		NullSemantics:  v.GetString("null_semantics"),
		SplitQuery:     v.GetBool("split_query"),
		DetailedErrors: v.GetBool("detailed_errors"),
		ServerVersion:  v.GetString("server_version"),
		Debug:          v.GetBool("debug"),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	return cfg, nil
}

// loadEnv sets the variables of an env file. Unless override is set,
// variables already in the environment are kept.
func loadEnv(name string, override bool) error {
	data, err := afero.ReadFile(AppFs, name)
	if err != nil {
		return nil
	}
	vars, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return err
	}
	for k, val := range vars {
		if _, set := os.LookupEnv(k); set && !override {
			continue
		}
		if err := os.Setenv(k, val); err != nil {
			return err
		}
	}
	return nil
}
