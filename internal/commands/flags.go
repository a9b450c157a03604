// Package commands contains the CLI command definitions.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/colonyops/holdpoint/internal/client"
	"github.com/colonyops/holdpoint/internal/core/config"
	"github.com/colonyops/holdpoint/internal/core/instance"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// ServerURL overrides instance discovery for client commands.
	ServerURL string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// Client builds an API client for a running server, preferring the explicit
// --server flag over the instance lock file's recorded port.
func (f *Flags) Client() (*client.Client, error) {
	if f.ServerURL != "" {
		return client.New(f.ServerURL), nil
	}

	info, err := instance.Read(f.DataDir)
	if err != nil {
		return nil, fmt.Errorf("no running holdpoint server found (start one with 'holdpoint serve'): %w", err)
	}
	return client.New(fmt.Sprintf("http://%s:%d", f.Config.Server.Host, info.Port)), nil
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "holdpoint", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "holdpoint")
}
