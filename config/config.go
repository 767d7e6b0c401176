package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/rotable/errors"
	"github.com/wippyai/rotable/layout"
)

// Defaults applied by Load and Parse.
const (
	DefaultMaxNameLen = layout.DefaultMaxKeyLen
	DefaultROMBase    = 0x1000
)

// Config is a namespace definition: static tables compiled into ROM and
// table modules compiled into separate images.
type Config struct {
	MaxNameLen int      `toml:"max_name_len"`
	Metatables bool     `toml:"metatables"`
	ROM        ROM      `toml:"rom"`
	Static     []Table  `toml:"static"`
	Modules    []Module `toml:"module"`

	// Path is the file the config was read from (set at load time).
	Path string `toml:"-"`
}

// ROM configures the fixed storage region.
type ROM struct {
	Base uint32 `toml:"base"`
}

// Table is a named table with its entries.
type Table struct {
	Name    string  `toml:"name"`
	Entries []Entry `toml:"entries"`
}

// Module is a table module. Entries form its root table; Tables are
// auxiliary named tables that entries may reference.
type Module struct {
	Name    string  `toml:"name"`
	Origin  uint32  `toml:"origin"`
	Entries []Entry `toml:"entries"`
	Tables  []Table `toml:"tables"`
}

// Entry is one key/value pair. Exactly one of Key and Index is set; at most
// one value field is set, and none means nil.
type Entry struct {
	Key   *string `toml:"key"`
	Index *int32  `toml:"index"`

	Number  *float64 `toml:"number"`
	Bool    *bool    `toml:"bool"`
	String  *string  `toml:"string"`
	Func    *string  `toml:"func"`
	Ref     *string  `toml:"ref"`
	Table   *[]Entry `toml:"table"`
	Pointer *uint32  `toml:"pointer"`
}

// Load reads and validates a TOML namespace definition.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, fmt.Sprintf("cannot read %s", path))
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	c.Path = path
	return c, nil
}

// Parse decodes and validates a TOML namespace definition.
func Parse(data []byte) (*Config, error) {
	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse error")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Detail("unknown fields: %s", strings.Join(keys, ", ")).
			Build()
	}

	// Defaults
	if c.MaxNameLen == 0 {
		c.MaxNameLen = DefaultMaxNameLen
	}
	if c.ROM.Base == 0 {
		c.ROM.Base = DefaultROMBase
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks names, entry shapes and references.
func (c *Config) Validate() error {
	if c.MaxNameLen < 0 {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("max_name_len %d is negative", c.MaxNameLen))
	}

	static := make(map[string]bool, len(c.Static))
	for i, t := range c.Static {
		path := []string{fmt.Sprintf("static[%d]", i)}
		if err := c.checkName(path, t.Name); err != nil {
			return err
		}
		if static[t.Name] {
			return errors.Duplicate(errors.PhaseConfig, path, "static table", t.Name)
		}
		static[t.Name] = true
	}
	for _, t := range c.Static {
		if err := c.checkEntries([]string{t.Name}, t.Entries, static); err != nil {
			return err
		}
	}

	for i, m := range c.Modules {
		path := []string{fmt.Sprintf("module[%d]", i)}
		if err := c.checkName(path, m.Name); err != nil {
			return err
		}
		tables := make(map[string]bool, len(m.Tables))
		for j, t := range m.Tables {
			tpath := []string{m.Name, fmt.Sprintf("tables[%d]", j)}
			if t.Name == "" {
				return errors.InvalidData(errors.PhaseConfig, tpath, "table name is empty")
			}
			if tables[t.Name] {
				return errors.Duplicate(errors.PhaseConfig, tpath, "table", t.Name)
			}
			tables[t.Name] = true
		}
		if err := c.checkEntries([]string{m.Name}, m.Entries, tables); err != nil {
			return err
		}
		for _, t := range m.Tables {
			if err := c.checkEntries([]string{m.Name, t.Name}, t.Entries, tables); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Config) checkName(path []string, name string) error {
	if name == "" {
		return errors.InvalidData(errors.PhaseConfig, path, "name is empty")
	}
	if len(name) > c.MaxNameLen {
		return errors.New(errors.PhaseConfig, errors.KindKeyTooLong).
			Path(path...).
			Value(name).
			Detail("name %q longer than %d bytes", name, c.MaxNameLen).
			Build()
	}
	return nil
}

func (c *Config) checkEntries(path []string, entries []Entry, refs map[string]bool) error {
	for i, e := range entries {
		epath := append(append([]string(nil), path...), fmt.Sprintf("entries[%d]", i))
		if (e.Key == nil) == (e.Index == nil) {
			return errors.InvalidData(errors.PhaseConfig, epath, "exactly one of key and index is required")
		}
		if n := e.valueFields(); n > 1 {
			return errors.InvalidData(errors.PhaseConfig, epath, fmt.Sprintf("%d values set, at most one allowed", n))
		}
		if e.Ref != nil && !refs[*e.Ref] {
			return errors.NotFound(errors.PhaseConfig, "ref target", *e.Ref)
		}
		if e.Table != nil {
			if err := c.checkEntries(epath, *e.Table, refs); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Entry) valueFields() int {
	n := 0
	for _, set := range []bool{
		e.Number != nil, e.Bool != nil, e.String != nil, e.Func != nil,
		e.Ref != nil, e.Table != nil, e.Pointer != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// KeyName renders the entry key for messages.
func (e *Entry) KeyName() string {
	if e.Key != nil {
		return *e.Key
	}
	if e.Index != nil {
		return fmt.Sprintf("[%d]", *e.Index)
	}
	return "?"
}
