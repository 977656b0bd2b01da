package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// varRef matches ${NAME} and ${NAME:-fallback}.
var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads the YAML file at path, substitutes environment references,
// decodes it and fills section defaults. The result is not validated.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := substitute(raw, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	cfg := new(Config)
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.Defaults()
	return cfg, nil
}

// substitute replaces every variable reference in raw using lookup. A
// reference with neither a value nor a fallback is left in place and
// reported; each missing name is reported once.
func substitute(raw []byte, lookup func(string) (string, bool)) ([]byte, error) {
	var missing []string

	out := varRef.ReplaceAllFunc(raw, func(ref []byte) []byte {
		m := varRef.FindSubmatch(ref)
		name := string(m[1])
		if v, ok := lookup(name); ok {
			return []byte(v)
		}
		if m[2] != nil {
			return m[2]
		}
		if !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
		return ref
	})

	if len(missing) > 0 {
		return nil, fmt.Errorf("unresolved variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
