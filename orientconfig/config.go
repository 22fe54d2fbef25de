// Package orientconfig loads connection Options from environment variables
// or a YAML file: every field has a documented default, and Validate()
// catches misconfiguration before a dial is attempted.
package orientconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// TargetKind selects whether a session talks to the server (administrative
// operations) or to an open database (record/command operations).
type TargetKind uint8

const (
	ServerTarget TargetKind = iota
	DatabaseTarget
)

// DatabaseKind is the storage kind OrientDB opens a database as.
type DatabaseKind string

const (
	GraphDatabase    DatabaseKind = "graph"
	DocumentDatabase DatabaseKind = "document"
)

// Target describes what a session connects to: either the server itself,
// or a named database of a given kind.
type Target struct {
	Kind         TargetKind
	DatabaseName string
	DatabaseKind DatabaseKind
}

// SocketOpts are additional transport knobs layered on top of the
// connect-time buffer sizing every session performs unconditionally.
type SocketOpts struct {
	// KeepAlive, when nonzero, enables TCP keep-alive with this period.
	KeepAlive time.Duration
}

// Options is the exhaustive set of configuration a session accepts.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Target   Target

	// Timeout is the default per-call deadline. Default 5000ms.
	Timeout time.Duration

	SocketOpts SocketOpts

	// MinProtocolVersion is read once at connect time and compared
	// against the server's handshake preamble; below it, Dial fails with
	// orienterr.ErrUnsupportedProtocol. Default 28.
	MinProtocolVersion int16

	// ClientName / DriverVersion / ClientID populate the handshake.
	ClientName    string
	DriverVersion string
	ClientID      string
}

const (
	defaultPort               = 2424
	defaultTimeout            = 5 * time.Second
	defaultMinProtocolVersion = 28
)

// Default returns an Options with every default filled in and no
// credentials or target set; callers still need Host/Target/User/Password.
// ClientID is a fresh random identifier each call, so two sessions dialed
// from the same process never present the same identity in the handshake.
func Default() Options {
	return Options{
		Port:               defaultPort,
		Timeout:            defaultTimeout,
		MinProtocolVersion: defaultMinProtocolVersion,
		ClientName:         "go-orient",
		DriverVersion:      "0.1.0",
		ClientID:           uuid.NewString(),
	}
}

// LoadFromEnv builds Options from ORIENTDB_* environment variables,
// falling back to Default() for anything unset.
//
// Recognized variables:
//
//	ORIENTDB_HOST, ORIENTDB_PORT
//	ORIENTDB_USER, ORIENTDB_PASSWORD
//	ORIENTDB_DATABASE, ORIENTDB_DATABASE_KIND ("graph" or "document")
//	ORIENTDB_TIMEOUT_MS
//	ORIENTDB_MIN_PROTOCOL
func LoadFromEnv() Options {
	opts := Default()

	if v := os.Getenv("ORIENTDB_HOST"); v != "" {
		opts.Host = v
	}
	if v := os.Getenv("ORIENTDB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Port = n
		}
	}
	if v := os.Getenv("ORIENTDB_USER"); v != "" {
		opts.User = v
	}
	if v := os.Getenv("ORIENTDB_PASSWORD"); v != "" {
		opts.Password = v
	}
	if v := os.Getenv("ORIENTDB_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Timeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("ORIENTDB_MIN_PROTOCOL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MinProtocolVersion = int16(n)
		}
	}

	if db := os.Getenv("ORIENTDB_DATABASE"); db != "" {
		kind := DatabaseKind(os.Getenv("ORIENTDB_DATABASE_KIND"))
		if kind == "" {
			kind = DocumentDatabase
		}
		opts.Target = Target{Kind: DatabaseTarget, DatabaseName: db, DatabaseKind: kind}
	}

	return opts
}

// fileOptions mirrors Options' fields for YAML decoding; Options itself
// isn't annotated with yaml tags to keep the wire-facing struct free of
// serialization concerns unrelated to the protocol.
type fileOptions struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Database           string `yaml:"database"`
	DatabaseKind       string `yaml:"database_kind"`
	TimeoutMS          int    `yaml:"timeout_ms"`
	MinProtocolVersion int16  `yaml:"min_protocol_version"`
}

// LoadFromFile parses a YAML configuration file into Options, applying the
// same defaults as LoadFromEnv for any field the file omits.
func LoadFromFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("orientconfig: read %s: %w", path, err)
	}

	var f fileOptions
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Options{}, fmt.Errorf("orientconfig: parse %s: %w", path, err)
	}

	opts := Default()
	if f.Host != "" {
		opts.Host = f.Host
	}
	if f.Port != 0 {
		opts.Port = f.Port
	}
	if f.User != "" {
		opts.User = f.User
	}
	if f.Password != "" {
		opts.Password = f.Password
	}
	if f.TimeoutMS != 0 {
		opts.Timeout = time.Duration(f.TimeoutMS) * time.Millisecond
	}
	if f.MinProtocolVersion != 0 {
		opts.MinProtocolVersion = f.MinProtocolVersion
	}
	if f.Database != "" {
		kind := DatabaseKind(f.DatabaseKind)
		if kind == "" {
			kind = DocumentDatabase
		}
		opts.Target = Target{Kind: DatabaseTarget, DatabaseName: f.Database, DatabaseKind: kind}
	}

	return opts, nil
}

// Validate checks Options for the misconfigurations Dial cannot recover
// from.
func (o Options) Validate() error {
	if o.Host == "" {
		return fmt.Errorf("orientconfig: host is required")
	}
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("orientconfig: invalid port %d", o.Port)
	}
	if o.Target.Kind == DatabaseTarget {
		if o.Target.DatabaseName == "" {
			return fmt.Errorf("orientconfig: database target requires a database name")
		}
		switch o.Target.DatabaseKind {
		case GraphDatabase, DocumentDatabase:
		default:
			return fmt.Errorf("orientconfig: invalid database kind %q", o.Target.DatabaseKind)
		}
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("orientconfig: timeout must be positive")
	}
	return nil
}
