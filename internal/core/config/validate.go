package config

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/hay-kot/criterio"
)

// Validate performs structural validation of the configuration.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = errs.Append("server.port", fmt.Errorf("must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.PortAttempts < 1 {
		errs = errs.Append("server.port_attempts", fmt.Errorf("must be >= 1, got %d", c.Server.PortAttempts))
	}
	if c.Review.SessionTimeout < 0 {
		errs = errs.Append("review.session_timeout", fmt.Errorf("must not be negative"))
	}
	if c.Review.CleanupMaxAge <= 0 {
		errs = errs.Append("review.cleanup_max_age", fmt.Errorf("must be positive"))
	}
	if c.Review.CleanupInterval <= 0 {
		errs = errs.Append("review.cleanup_interval", fmt.Errorf("must be positive"))
	}

	return errs.ToError()
}

// ValidateDeep performs comprehensive validation including file accessibility
// and executable lookup. configPath specifies the config file location to
// check (empty string skips that check).
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("git_path", c.GitPath, executableExists),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// executableExists validates that a command is resolvable on PATH.
func executableExists(path string) error {
	if path == "" {
		return nil
	}
	if _, err := exec.LookPath(path); err != nil {
		return fmt.Errorf("executable not found: %s", path)
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}
