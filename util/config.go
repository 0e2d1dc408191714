package util

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const Name = "mastodon"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host         string
		HttpPort     int    `yaml:"httpPort"`
		Domain       string `yaml:"domain"`
		MediaDir     string `yaml:"mediaDir"`
		WithJournald bool   `yaml:"withJournald"`
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	var buf []byte
	var err error

	buf, err = os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	envHost := os.Getenv("MASTODON_HOST")
	envHttpPort := os.Getenv("MASTODON_HTTPPORT")
	envDomain := os.Getenv("MASTODON_DOMAIN")
	envMediaDir := os.Getenv("MASTODON_MEDIADIR")
	envJournald := os.Getenv("MASTODON_WITHJOURNALD")

	if envHost != "" {
		c.Conf.Host = envHost
	}

	if envHttpPort != "" {
		v, err := strconv.Atoi(envHttpPort)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.HttpPort = v
	}

	if envDomain != "" {
		c.Conf.Domain = envDomain
	}

	if envMediaDir != "" {
		c.Conf.MediaDir = envMediaDir
	}

	if envJournald != "" {
		v, err := strconv.ParseBool(envJournald)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.WithJournald = v
	}

	if c.Conf.MediaDir == "" {
		c.Conf.MediaDir = ResolveFilePath("media")
	}

	return c, nil
}

// PrettyPrint renders a value as indented JSON for log output.
func PrettyPrint(i interface{}) string {
	s, _ := json.MarshalIndent(i, "", "\t")
	return string(s)
}
