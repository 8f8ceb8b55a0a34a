package core

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// Compile-time constants, listed in spec §6.
const (
	SendBufSize      = 4096 // buffer size of the TCP transport's inbound frame reader
	MaxUIDLen        = 64   // max length of the UID field in an RPC request frame
	MaxMethodNameLen = 128  // max length of an RPC method name
	MaxUsernameLen   = 32
	MaxPasswordLen   = 32
	MaxDirectiveLen  = 32 // longest allowed directive prefix registered with the router
	MaxHandlersCount = 16 // capacity of the directive router's handler array

	// MinPoolBlockSize is the smallest size class the sized pool ever
	// hands out, per §4.3 ("rounded up to a power-of-two size class
	// (minimum 1 KiB)").
	MinPoolBlockSize = 1024
)

// Message framing bytes, §3.
const (
	MessageSeparator byte = 0x1E // MS, terminates a frame
	PartSeparator    byte = 0x1F // PS, separates fields within a frame
)

// Credentials is the §6 "Credentials interface (required from
// collaborator)". Implementations live in pkg/creds.
type Credentials interface {
	Username() string
	Password() string
	MaxRetries() int
}

// Config holds the runtime-tunable knobs for a Client, loaded via koanf
// from CLI flags (and, by a driver's choice, environment/config files).
// Flags describe the shape; koanf holds the resolved values.
type Config struct {
	K *koanf.Koanf
	F *pflag.FlagSet

	Server         string // host:port of the bus server
	Username       string
	Password       string
	MaxRetries     int
	LogLevel       string
	MetricsListen  string // empty disables the debug/metrics HTTP server
	AuditKafka     string // broker list, empty disables the kafka audit sink
	AuditKafkaTopic string
	AuditFile      string // path template, empty disables the file audit sink
	Transport      string // "tcp" (default) or "ws"
}

// NewConfig builds the flag set and an empty koanf instance. Call
// Parse to populate Config from argv.
func NewConfig() *Config {
	c := &Config{K: koanf.New(".")}
	c.F = pflag.NewFlagSet("dsclient", pflag.ContinueOnError)

	f := c.F
	f.SortFlags = false
	f.String("server", "127.0.0.1:6020", "deepstream server address")
	f.String("user", "", "username for authentication")
	f.String("pass", "", "password for authentication")
	f.Int("max-retries", 2, "maximum auth retries before disconnecting")
	f.StringP("log", "l", "info", "log level (trace/debug/info/warn/error/disabled)")
	f.String("metrics-listen", "", "address for the debug/metrics HTTP server (empty = disabled)")
	f.String("audit-kafka", "", "kafka broker list for the RPC audit sink (empty = disabled)")
	f.String("audit-kafka-topic", "dsclient.rpc.audit", "kafka topic for the RPC audit sink")
	f.String("audit-file", "", "path template (supports $TIME and ${<Go time layout>}) for the rotating RPC audit log (empty = disabled)")
	f.String("transport", "tcp", "transport to use: tcp or ws")

	return c
}

// Parse parses argv, folds the results into K, and fills the typed fields.
func (c *Config) Parse(argv []string) error {
	if err := c.F.Parse(argv); err != nil {
		return fmt.Errorf("could not parse CLI flags: %w", err)
	}
	if err := c.K.Load(posflag.Provider(c.F, ".", c.K), nil); err != nil {
		return fmt.Errorf("could not load flags into config: %w", err)
	}

	c.Server = c.K.String("server")
	c.Username = c.K.String("user")
	c.Password = c.K.String("pass")
	c.MaxRetries = c.K.Int("max-retries")
	c.LogLevel = c.K.String("log")
	c.MetricsListen = c.K.String("metrics-listen")
	c.AuditKafka = c.K.String("audit-kafka")
	c.AuditKafkaTopic = c.K.String("audit-kafka-topic")
	c.AuditFile = c.K.String("audit-file")
	c.Transport = c.K.String("transport")

	if len(c.LogLevel) > 0 {
		lvl, err := zerolog.ParseLevel(c.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid --log level %q: %w", c.LogLevel, err)
		}
		zerolog.SetGlobalLevel(lvl)
	}

	return nil
}

// Logger returns the default console-pretty logger used by the CLI driver.
func Logger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}
