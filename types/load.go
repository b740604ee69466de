package types

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/elos-os/bootimg/constants"
	"gopkg.in/yaml.v2"
)

// DefaultConfigEnv names the environment variable holding a fallback config file
const DefaultConfigEnv = constants.DefaultConfigEnv

// LoadConfigFile reads a json or yaml configuration file on top of c
func LoadConfigFile(file string, c *Config) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("error reading config: %v", err)
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("error config: %v", err)
	}
	return nil
}

// DefaultConfigFile returns the config file used when none is given on the
// command line, or an empty string
func DefaultConfigFile() string {
	if conf := os.Getenv(DefaultConfigEnv); conf != "" {
		return conf
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	conf := filepath.Join(home, constants.ConfigFileName)
	if _, err := os.Stat(conf); err != nil {
		return ""
	}
	return conf
}
