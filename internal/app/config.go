package app

import (
	"errors"
	"fmt"
	"strings"
)

// Assignment is one "path=value" edit requested on the command line. Value
// is an HCL expression.
type Assignment struct {
	Path  string
	Value string
}

// ParseAssignment splits "path=value" at the first '=' outside quotes.
func ParseAssignment(s string) (Assignment, error) {
	inQuote := false
	for i, r := range s {
		switch {
		case r == '"' && (i == 0 || s[i-1] != '\\'):
			inQuote = !inQuote
		case r == '=' && !inQuote:
			a := Assignment{Path: strings.TrimSpace(s[:i]), Value: strings.TrimSpace(s[i+1:])}
			if a.Path == "" || a.Value == "" {
				break
			}
			return a, nil
		}
	}
	return Assignment{}, fmt.Errorf("invalid assignment %q: want path=value", s)
}

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	OverridesPath string // .hcl or .json document, or a directory of .hcl files

	Gets       []string
	Sets       []Assignment
	DumpSchema bool
	DumpDiff   bool

	NotifyURL       string
	NotifyNamespace string
	NotifyInsecure  bool

	LogFormat   string
	LogLevel    string
	WorkerCount int
}

// HasWork reports whether the configuration asks for any output.
func (c *Config) HasWork() bool {
	return c.OverridesPath != "" || len(c.Gets) > 0 || len(c.Sets) > 0 || c.DumpSchema || c.DumpDiff
}

func NewConfig(cfg Config) (*Config, error) {
	if !cfg.HasWork() {
		return nil, errors.New("nothing to do: give an overrides path or at least one of --get, --set, --schema, --diff")
	}
	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.NotifyURL != "" && cfg.NotifyNamespace == "" {
		cfg.NotifyNamespace = "/"
	}
	return &cfg, nil
}
