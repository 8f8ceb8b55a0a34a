// Package creds provides core.Credentials implementations: a static
// literal pair, one sourced from the process environment, and one layered
// from a config file via koanf, keeping every external input behind a
// small typed supplier rather than reading globals ad hoc.
package creds

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	kenv "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Static is the Go analogue of original_source/include/dsclientbase.h's
// simpleCredentialsSupplier: a fixed username/password pair with a fixed
// retry budget, set once at construction.
type Static struct {
	username   string
	password   string
	maxRetries int
}

// NewStatic returns a Credentials with a fixed username/password and
// maxRetries (the number of auth retries permitted after the first
// INVALID_AUTH_DATA, matching simpleCredentialsSupplier::getMaxRetries).
func NewStatic(username, password string, maxRetries int) *Static {
	return &Static{username: username, password: password, maxRetries: maxRetries}
}

func (s *Static) Username() string { return s.username }
func (s *Static) Password() string { return s.password }
func (s *Static) MaxRetries() int  { return s.maxRetries }

// Env sources the username/password from environment variables prefixed
// with prefix (e.g. prefix "DSCLIENT_" reads DSCLIENT_USERNAME and
// DSCLIENT_PASSWORD), loaded through koanf's env provider rather than
// os.Getenv directly, matching the pack's config-loading idiom of never
// reading process globals ad hoc.
type Env struct {
	username   string
	password   string
	maxRetries int
}

// NewEnv loads username/password from environment variables named
// prefix+"USERNAME" and prefix+"PASSWORD". Missing variables resolve to
// an empty string, not an error — an empty password is a legitimate
// deepstream credential in some deployments.
func NewEnv(prefix string, maxRetries int) (*Env, error) {
	k := koanf.New(".")
	if err := k.Load(kenv.Provider(prefix, ".", nil), nil); err != nil {
		return nil, fmt.Errorf("creds: load environment: %w", err)
	}
	return &Env{
		username:   k.String(prefix + "USERNAME"),
		password:   k.String(prefix + "PASSWORD"),
		maxRetries: maxRetries,
	}, nil
}

func (e *Env) Username() string { return e.username }
func (e *Env) Password() string { return e.password }
func (e *Env) MaxRetries() int  { return e.maxRetries }

// File loads username/password/max_retries from a YAML config file via
// koanf, matching the config-layering idiom already used for flags in
// core.Config (koanf.Load + a provider), here pointed at a file provider
// instead of posflag.
type File struct {
	username   string
	password   string
	maxRetries int
}

// NewFileCredentials loads path (YAML, keys "username", "password",
// "max_retries") into a fresh koanf instance.
func NewFileCredentials(path string) (*File, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("creds: load %s: %w", path, err)
	}
	f := &File{
		username:   k.String("username"),
		password:   k.String("password"),
		maxRetries: k.Int("max_retries"),
	}
	if f.maxRetries == 0 && !k.Exists("max_retries") {
		f.maxRetries = 2
	}
	return f, nil
}

func (f *File) Username() string { return f.username }
func (f *File) Password() string { return f.password }
func (f *File) MaxRetries() int  { return f.maxRetries }
