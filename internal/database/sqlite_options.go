package database

import (
	"net/url"
	"strconv"
	"strings"
)

// SynchronousMode represents the available synchronous settings for SQLite
type SynchronousMode string

const (
	SynchronousOff    SynchronousMode = "OFF"
	SynchronousNormal SynchronousMode = "NORMAL"
	SynchronousFull   SynchronousMode = "FULL"
)

// JournalMode represents the available journal modes for SQLite
type JournalMode string

const (
	JournalDelete JournalMode = "DELETE"
	JournalMemory JournalMode = "MEMORY"
	JournalWAL    JournalMode = "WAL"
)

// CacheMode represents the available cache modes for SQLite
type CacheMode string

const (
	CacheShared  CacheMode = "shared"
	CachePrivate CacheMode = "private"
)

// SQLiteOptions contains configuration options for the SQLite connection
type SQLiteOptions struct {
	// Path to the SQLite database file
	Path string

	Mode        string          // ro, rw, rwc, memory
	Journal     JournalMode     // applied via PRAGMA journal_mode
	ForeignKeys bool            // applied via PRAGMA foreign_keys
	BusyTimeout int             // applied via PRAGMA busy_timeout (milliseconds)
	CacheSize   int             // applied via PRAGMA cache_size (KB, negative for pages)
	Synchronous SynchronousMode // applied via PRAGMA synchronous
	Cache       CacheMode       // shared, private (DSN parameter)
	Immutable   bool            // DSN parameter
}

// NewDefaultOptions creates SQLiteOptions with recommended defaults
func NewDefaultOptions(path string) SQLiteOptions {
	return SQLiteOptions{
		Path:        path,
		Mode:        "rwc",
		Journal:     JournalWAL, // WAL is recommended for better concurrency
		ForeignKeys: true,
		BusyTimeout: 5000,
		Synchronous: SynchronousNormal,
		Cache:       CachePrivate,
	}
}

// buildConnectionString generates the DSN with only URI-supported parameters;
// everything else is applied as a PRAGMA after the connection opens.
func (opts *SQLiteOptions) buildConnectionString() string {
	params := url.Values{}

	if opts.Mode != "" {
		params.Set("mode", opts.Mode)
	}
	if opts.Cache != "" {
		params.Set("cache", string(opts.Cache))
	}
	if opts.Immutable {
		params.Set("immutable", "true")
	}

	connStr := opts.Path
	if !strings.HasPrefix(connStr, "file:") {
		connStr = "file:" + connStr
	}
	if encoded := params.Encode(); encoded != "" {
		connStr += "?" + encoded
	}

	return connStr
}

// pragmas returns the PRAGMA statements derived from the options
func (opts *SQLiteOptions) pragmas() []string {
	var statements []string

	if opts.Journal != "" {
		statements = append(statements, "PRAGMA journal_mode = "+string(opts.Journal))
	}
	statements = append(statements, "PRAGMA busy_timeout = "+strconv.Itoa(opts.BusyTimeout))
	if opts.ForeignKeys {
		statements = append(statements, "PRAGMA foreign_keys = 1")
	} else {
		statements = append(statements, "PRAGMA foreign_keys = 0")
	}
	if opts.CacheSize != 0 {
		statements = append(statements, "PRAGMA cache_size = "+strconv.Itoa(opts.CacheSize))
	}

	switch opts.Synchronous {
	case SynchronousOff:
		statements = append(statements, "PRAGMA synchronous = 0")
	case SynchronousNormal:
		statements = append(statements, "PRAGMA synchronous = 1")
	case SynchronousFull:
		statements = append(statements, "PRAGMA synchronous = 2")
	}

	return statements
}
