package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "CARDMAKER"

// Config is the persisted settings record. It is read once at startup and
// written back after successful discovery and scan steps; absence of the
// file is not an error, defaults apply.
type Config struct {
	Environment   string   `mapstructure:"environment"`
	CardmakerHome string   `mapstructure:"cardmaker_home"`
	MasterLabel   string   `mapstructure:"master_label"`
	MasterPath    string   `mapstructure:"master_path"`
	ModelsRoot    string   `mapstructure:"models_root"`
	Manufacturers []string `mapstructure:"manufacturers"`
	TargetDevice  string   `mapstructure:"target_device"`

	// TargetLabels are the role substrings partition labels are matched
	// against; TargetPartitions records the labels observed on the last
	// discovered card. The two are never interchangeable.
	TargetLabels     []string `mapstructure:"target_labels"`
	TargetPartitions []string `mapstructure:"target_partitions"`

	TransferWorkers int `mapstructure:"transfer_workers"`
	DiscoverTimeout int `mapstructure:"discover_timeout"`
}

var config *Config

func LoadEnvAndConfigFiles() error {
	home, err := getCardmakerHome()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(home, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create cardmaker home directory: %w", err)
	}

	viper.Set("cardmaker_home", home)

	envFile := filepath.Join(home, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))
	viper.SetConfigFile(filepath.Join(home, "config.yaml"))

	if err := LoadConfig(false); err != nil {
		if errors.As(err, &viper.ConfigFileNotFoundError{}) || os.IsNotExist(err) {
			return loadDefaults()
		}
		return err
	}

	return nil
}

func LoadConfig(reload bool) error {
	if config != nil && !reload {
		return fmt.Errorf("config already loaded")
	}

	if err := viper.ReadInConfig(); err != nil {
		// A missing settings file is expected on first run.
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return loadDefaults()
		}
		return fmt.Errorf("error reading config: %w", err)
	}

	return loadDefaults()
}

func loadDefaults() error {
	applyDefaults()

	config = &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}

	return nil
}

func applyDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("master_label", DefaultMasterLabel)
	viper.SetDefault("manufacturers", DefaultManufacturers)
	viper.SetDefault("target_labels", DefaultTargetLabels)
	viper.SetDefault("transfer_workers", DefaultTransferWorkers)
	viper.SetDefault("discover_timeout", DefaultDiscoverTimeout)
}

func GetConfig() *Config {
	if config == nil {
		panic("config not loaded")
	}

	return config
}

// Save writes the current settings back to the config file under the
// cardmaker home. Called after successful discovery and scan steps.
func (c *Config) Save() error {
	if c.CardmakerHome == "" {
		return ErrHomeNotSet
	}

	viper.Set("master_label", c.MasterLabel)
	viper.Set("master_path", c.MasterPath)
	viper.Set("models_root", c.ModelsRoot)
	viper.Set("manufacturers", c.Manufacturers)
	viper.Set("target_device", c.TargetDevice)
	viper.Set("target_labels", c.TargetLabels)
	viper.Set("target_partitions", c.TargetPartitions)

	path := filepath.Join(c.CardmakerHome, "config.yaml")
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// Returns the cardmaker home directory path, in order of preference:
// 1. The `cardmaker_home` flag from viper.
// 2. The `CARDMAKER_HOME` environment variable.
// 3. The default home directory.
func getCardmakerHome() (string, error) {
	home := viper.GetString("cardmaker_home")
	if home == "" {
		home = os.Getenv("CARDMAKER_HOME")
		if home == "" {
			home = DefaultHome
		}
	}

	home, err := expandPath(home)
	if err != nil {
		return "", fmt.Errorf("failed to expand cardmaker home path: %w", err)
	}

	return home, nil
}

// expandPath replaces a leading "~" with the user's home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(homeDir, path[1:])
	}

	return path, nil
}
