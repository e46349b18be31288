package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-cmdbform/internal/devserver"
)

// config is the sealed server configuration.
type config struct {
	listen   string
	store    string
	dsn      string
	logLevel string
	catalog  devserver.Catalog
	seed     []string
}

type configMarshall struct {
	Listen   string   `yaml:"listen"`
	Store    string   `yaml:"store"`
	DSN      string   `yaml:"dsn,omitempty"`
	LogLevel string   `yaml:"log_level,omitempty"`
	Catalog  string   `yaml:"catalog,omitempty"`
	Seed     []string `yaml:"seed,omitempty"`
}

func (m *configMarshall) seal() (*config, error) {
	c := &config{
		listen:   m.Listen,
		store:    m.Store,
		dsn:      m.DSN,
		logLevel: m.LogLevel,
		catalog:  devserver.DefaultCatalog(),
		seed:     m.Seed,
	}
	if c.listen == "" {
		c.listen = ":8080"
	}
	if c.store == "" {
		c.store = "memory"
	}
	if c.logLevel == "" {
		c.logLevel = "info"
	}
	switch c.store {
	case "memory", "sqlite":
	default:
		return nil, fmt.Errorf("config: store must be memory or sqlite, got %q", c.store)
	}
	if m.Catalog != "" {
		content, err := os.ReadFile(m.Catalog)
		if err != nil {
			return nil, fmt.Errorf("config: catalog: %w", err)
		}
		var catalog devserver.Catalog
		if err := yaml.Unmarshal(content, &catalog); err != nil {
			return nil, fmt.Errorf("config: catalog: %w", err)
		}
		c.catalog = catalog
	}
	return c, nil
}

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
