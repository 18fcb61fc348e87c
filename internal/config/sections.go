package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// publicSection is the only section exposed by GET /system/config, the
// variant any session holder may read without a root key, per spec.md §6.
const publicSection = "public"

// Section returns every option=value pair of the named section as parsed
// from config.ini, mirroring the original's get_all_options_for_section.
// The zero value and false are returned if the section doesn't exist.
func (c *Config) Section(name string) (map[string]string, bool) {
	if c.raw == nil || !c.raw.HasSection(name) {
		return nil, false
	}
	return sectionMap(c.raw.Section(name)), true
}

// PublicSection returns the "public" section's options, for
// GET /system/config (session plus any-session HMAC, no root key).
func (c *Config) PublicSection() map[string]string {
	values, ok := c.Section(publicSection)
	if !ok {
		return map[string]string{}
	}
	return values
}

// AllSections returns every section's options, for the root-only
// GET /system/config/all.
func (c *Config) AllSections() map[string]map[string]string {
	out := map[string]map[string]string{}
	if c.raw == nil {
		return out
	}
	for _, section := range c.raw.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			continue
		}
		out[name] = sectionMap(section)
	}
	return out
}

// SetOption overwrites an existing option's value and persists config.ini,
// matching the original Configuration.set: the section and option must
// already exist, values are always stored as strings.
func (c *Config) SetOption(path, section, option, value string) error {
	if c.raw == nil || !c.raw.HasSection(section) {
		return &OptionError{Section: section, Option: option, Err: fmt.Errorf("unknown section")}
	}
	s := c.raw.Section(section)
	if !s.HasKey(option) {
		return &OptionError{Section: section, Option: option, Err: fmt.Errorf("unknown option")}
	}
	s.Key(option).SetValue(value)
	if err := mapSections(c.raw, c); err != nil {
		return err
	}
	return c.raw.SaveTo(path)
}

func sectionMap(s *ini.Section) map[string]string {
	out := make(map[string]string, len(s.Keys()))
	for _, key := range s.Keys() {
		out[key.Name()] = key.Value()
	}
	return out
}
