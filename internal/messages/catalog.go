// Package messages loads the user-facing message catalog from YAML. Keys are
// dot-separated; values may carry {slot} placeholders filled at render time.
package messages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultDir = "internal/messages"

// Catalog resolves message templates by key.
type Catalog struct {
	entries map[string]string
}

// Load reads every YAML file in dir; an empty dir falls back to the
// package directory relative to the working directory.
func Load(dir string) (*Catalog, error) {
	if dir == "" {
		dir = defaultDir
	}
	return LoadFromDir(dir)
}

// LoadFromDir reads every .yaml/.yml file in dir and merges the flattened
// keys into one catalog.
func LoadFromDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("messages: read dir %s: %w", dir, err)
	}

	catalog := make(map[string]string)
	var processed bool

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		processed = true

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("messages: read file %s: %w", path, err)
		}

		if strings.TrimSpace(string(data)) == "" {
			continue
		}

		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("messages: parse file %s: %w", path, err)
		}

		flatten("", raw, catalog)
	}

	if !processed {
		return nil, fmt.Errorf("messages: no yaml files found in %s", dir)
	}

	return &Catalog{entries: catalog}, nil
}

// Get returns the raw template for key, or the key itself when missing so a
// broken catalog stays visible instead of silently emitting nothing.
func (c *Catalog) Get(key string) string {
	if c == nil {
		return key
	}

	key = strings.TrimSpace(key)
	if value, ok := c.entries[key]; ok {
		return value
	}

	return key
}

// Render resolves key and substitutes {slot} placeholders from args.
func (c *Catalog) Render(key string, args map[string]string) string {
	tmpl := c.Get(key)
	for slot, value := range args {
		tmpl = strings.ReplaceAll(tmpl, "{"+slot+"}", value)
	}
	return tmpl
}

// Keys returns every loaded key. Useful for catalog completeness tests.
func (c *Catalog) Keys() []string {
	if c == nil {
		return nil
	}

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return keys
}

func isYAML(name string) bool {
	name = strings.ToLower(name)
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func flatten(prefix string, value any, out map[string]string) {
	switch v := value.(type) {
	case map[string]any:
		for key, nested := range v {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if prefix != "" {
				key = prefix + "." + key
			}
			flatten(key, nested, out)
		}
	case string:
		if prefix != "" {
			out[prefix] = v
		}
	case nil:
	default:
		if prefix != "" {
			out[prefix] = fmt.Sprint(v)
		}
	}
}
