package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports configuration the admin API must not start with.
func (c *Config) Validate() error {
	var errs []error

	if len(c.App.BasicAuth) == 0 {
		errs = append(errs, errors.New("APP_BASIC_AUTH is required. Nothing should be public; set APP_BASIC_AUTH=<user>:<secret>[,<user2>:<secret2>]"))
	}
	for _, cred := range c.App.BasicAuth {
		if parts := strings.Split(cred, ":"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			errs = append(errs, fmt.Errorf("basic auth entry %q must use the format <user>:<secret>", cred))
		}
	}
	if c.Quota.Window <= 0 {
		errs = append(errs, fmt.Errorf("QUOTA_WINDOW must be positive, got %s", c.Quota.Window))
	}
	if c.Quota.DefaultLimit <= 0 || c.Quota.AdminLimit <= 0 {
		errs = append(errs, fmt.Errorf("quota limits must be positive (default=%d, admin=%d)", c.Quota.DefaultLimit, c.Quota.AdminLimit))
	}
	if c.Health.MemoryMediumRatio >= c.Health.MemoryHighRatio {
		errs = append(errs, fmt.Errorf("HEALTH_MEMORY_MEDIUM_RATIO (%.2f) must be below HEALTH_MEMORY_HIGH_RATIO (%.2f)", c.Health.MemoryMediumRatio, c.Health.MemoryHighRatio))
	}

	return errors.Join(errs...)
}

// BasicAuthUsers turns the user:secret list into the map fiber's basicauth expects.
func (c *Config) BasicAuthUsers() map[string]string {
	users := make(map[string]string, len(c.App.BasicAuth))
	for _, cred := range c.App.BasicAuth {
		if parts := strings.SplitN(cred, ":", 2); len(parts) == 2 {
			users[parts[0]] = parts[1]
		}
	}
	return users
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
