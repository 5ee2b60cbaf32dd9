package config

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrProfileExists   = errors.New("profile already exists")
	ErrProfileNotFound = errors.New("profile does not exist")
)

// ProfileNames returns the profile names in a stable order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) AddProfile(name string, p Profile) error {
	if _, exists := c.Profiles[name]; exists {
		return fmt.Errorf("%q: %w", name, ErrProfileExists)
	}
	if c.Profiles == nil {
		c.Profiles = make(map[string]Profile)
	}
	c.Profiles[name] = p
	return c.setCurrentProfile()
}

func (c *Config) UpdateProfile(name string, p Profile) error {
	if _, exists := c.Profiles[name]; !exists {
		return fmt.Errorf("%q: %w", name, ErrProfileNotFound)
	}
	c.Profiles[name] = p
	return c.setCurrentProfile()
}

// UseProfile makes name the profile the relay authenticates upstream with.
func (c *Config) UseProfile(name string) error {
	if _, exists := c.Profiles[name]; !exists {
		return fmt.Errorf("%q: %w", name, ErrProfileNotFound)
	}
	c.ActiveProfile = name
	return c.setCurrentProfile()
}

// DeleteProfile removes name. Deleting the active profile activates the
// first remaining one; deleting the last profile leaves an empty default.
func (c *Config) DeleteProfile(name string) error {
	if _, exists := c.Profiles[name]; !exists {
		return fmt.Errorf("%q: %w", name, ErrProfileNotFound)
	}
	delete(c.Profiles, name)

	if len(c.Profiles) == 0 {
		c.Profiles["default"] = Profile{Model: DefaultModel}
		c.ActiveProfile = "default"
	} else if c.ActiveProfile == name {
		c.ActiveProfile = c.ProfileNames()[0]
	}
	return c.setCurrentProfile()
}
