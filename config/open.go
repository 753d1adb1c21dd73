package config

import (
	"fmt"

	"github.com/rustyeddy/margin/autorisk"
	"github.com/rustyeddy/margin/journal"
)

// OpenJournal builds the journal selected by the journal section.
func (c *Config) OpenJournal() (journal.Journal, error) {
	switch c.Journal.Type {
	case "csv":
		j, err := journal.NewCSV(c.Journal.PositionsFile, c.Journal.AccountFile)
		if err != nil {
			return nil, fmt.Errorf("open csv journal: %w", err)
		}
		return j, nil
	case "sqlite":
		j, err := journal.NewSQLite(c.Journal.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		return j, nil
	case "none", "":
		return journal.Nop{}, nil
	}
	return nil, fmt.Errorf("unknown journal type %q", c.Journal.Type)
}

// OpenAutoRiskStore builds the policy store. The returned close function
// is never nil.
func (c *Config) OpenAutoRiskStore() (autorisk.Store, func() error, error) {
	nop := func() error { return nil }
	switch c.AutoRisk.Store {
	case "", "memory":
		return autorisk.NewMemoryStore(), nop, nil
	case "file":
		return autorisk.NewFileStore(c.AutoRisk.Path), nop, nil
	case "sqlite":
		s, err := autorisk.NewSQLiteStore(c.AutoRisk.Path)
		if err != nil {
			return nil, nop, err
		}
		return s, s.Close, nil
	}
	return nil, nop, fmt.Errorf("unknown autorisk store %q", c.AutoRisk.Store)
}
