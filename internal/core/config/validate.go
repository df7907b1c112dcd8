package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"

	"github.com/hay-kot/criterio"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidateDeep performs comprehensive validation of the configuration including
// URL parsing, color formats, and file accessibility. The configPath argument
// specifies the config file location to validate (empty string skips config file check).
// This calls Validate() first for basic structural validation, then adds I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		criterio.Run("remote.url", c.Remote.URL, validRemoteURL),
		criterio.Run("server.addr", c.Server.Addr, validListenAddr),
		c.validateCategories(),
	)
}

// validateFileAccess checks the config file and data directory.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
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

func (c *Config) validateCategories() error {
	var errs criterio.FieldErrorsBuilder
	for i, cat := range c.Categories {
		if cat.Color != "" && !hexColor.MatchString(cat.Color) {
			errs = errs.Append(fmt.Sprintf("categories[%d].color", i), fmt.Errorf("invalid hex color %q", cat.Color))
		}
	}

	found := c.DefaultCategory == ""
	for _, cat := range c.Categories {
		if cat.Name == c.DefaultCategory {
			found = true
		}
	}
	if !found && len(c.Categories) > 0 {
		errs = errs.Append("default_category", fmt.Errorf("%q is not one of the configured categories", c.DefaultCategory))
	}

	return errs.ToError()
}

func validRemoteURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host")
	}
	return nil
}

func validListenAddr(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
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
