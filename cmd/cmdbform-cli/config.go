package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// config is the sealed CLI configuration.
type config struct {
	apiURL  string
	token   string
	timeout time.Duration
	group   *int
}

type configMarshall struct {
	APIURL  string        `yaml:"api_url"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Group   *int          `yaml:"group,omitempty"`
}

func (m *configMarshall) seal() (*config, error) {
	timeout := m.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if timeout < 0 {
		return nil, fmt.Errorf("config: timeout must be positive, got %s", timeout)
	}
	return &config{apiURL: m.APIURL, token: m.Token, timeout: timeout, group: m.Group}, nil
}

// loadConfig reads path; an empty path yields the defaults.
func loadConfig(path string) (*config, error) {
	if path == "" {
		return (&configMarshall{}).seal()
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return unmarshalConfig(content)
}

func unmarshalConfig(content []byte) (*config, error) {
	var m configMarshall
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return m.seal()
}
