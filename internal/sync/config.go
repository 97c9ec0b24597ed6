package sync

import (
	"strings"
	"unicode"

	"github.com/Inna0915/obsidian-confluence-flow/internal/apperrors"
)

const (
	// defaultConcurrency is the worker-pool size for the syncing phase.
	defaultConcurrency = 5

	// defaultBasePath is the sync base folder inside the vault.
	defaultBasePath = "Confluence"
)

// Config is an immutable snapshot of the sync configuration, taken at
// construction time. Configuration changes produce a new snapshot and a
// new Syncer; nothing mutates shared settings in place.
type Config struct {
	// BaseURL is the Confluence instance base URL.
	BaseURL string
	// User and Token are the API credentials (basic auth).
	User  string
	Token string
	// BasePath is the sync base folder inside the vault.
	BasePath string
	// RootPages are the configured root page identifiers.
	RootPages []string
	// Concurrency is the worker-pool size (default 5).
	Concurrency int
	// IssueBaseURL is the issue-tracker base used for jira macro links.
	// Defaults to BaseURL when empty.
	IssueBaseURL string
}

// Validate checks the parts of the configuration without which no pass
// can start. Root pages are checked separately at pass start.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return apperrors.ErrBaseURLRequired
	}
	if c.User == "" || c.Token == "" {
		return apperrors.ErrCredentialsRequired
	}
	return nil
}

// WithDefaults returns a copy with defaults filled in.
func (c Config) WithDefaults() Config {
	if c.BasePath == "" {
		c.BasePath = defaultBasePath
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.IssueBaseURL == "" {
		c.IssueBaseURL = strings.TrimSuffix(c.BaseURL, "/wiki")
	}
	return c
}

// ParseRootPages splits a root-page list on commas (including the
// full-width comma), newlines and any other whitespace.
func ParseRootPages(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '，' || r == ';' || unicode.IsSpace(r)
	})
}
