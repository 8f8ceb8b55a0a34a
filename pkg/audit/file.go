package audit

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/valyala/bytebufferpool"
)

var reTimeFmt = regexp.MustCompile(`\$\{([^}]+)\}`)

// bbpool reuses the scratch buffers used to marshal each audit record,
// matching extio.go's pool-a-byte-buffer-per-formatted-record idiom.
var bbpool bytebufferpool.Pool

// File is a Sink that appends newline-delimited JSON records to a file,
// rotating to a new file every "every" interval and optionally
// compressing each rotated file. Grounded on stages/write.go's
// time-placeholder path, compress-format switch, and atomic
// rename-from-.tmp publish, adapted from "write whatever bytes arrive on
// a channel" to "write one JSON record per audit call".
type File struct {
	zerolog.Logger

	pathTemplate string
	every        time.Duration
	compress     string // "", ".bz2", ".gz", ".zstd"
	timeFmt      string

	records chan Record
	done    chan struct{}

	fh *os.File
	wr io.WriteCloser
	n  int64
}

// FileOptions configures NewFile.
type FileOptions struct {
	// Path may contain $TIME or ${<go time layout>} placeholders,
	// resolved against Every-truncated wall time, matching
	// stages/write.go's pathTime.
	Path     string
	Every    time.Duration
	Compress string // "none", "bzip2", "gz", "zstd", or "auto" (by Path extension)
	TimeFmt  string // format for $TIME; default "20060102.1504"
	Queue    int    // buffered channel depth before records are dropped; default 1024
}

// NewFile starts a background writer goroutine and returns a Sink.
func NewFile(opt FileOptions, logger zerolog.Logger) (*File, error) {
	if opt.TimeFmt == "" {
		opt.TimeFmt = "20060102.1504"
	}
	if opt.Queue <= 0 {
		opt.Queue = 1024
	}

	f := &File{
		Logger:       logger.With().Str("component", "audit-file").Logger(),
		pathTemplate: path.Clean(opt.Path),
		every:        opt.Every,
		timeFmt:      opt.TimeFmt,
		records:      make(chan Record, opt.Queue),
		done:         make(chan struct{}),
	}

	switch strings.ToLower(opt.Compress) {
	case "", "none", "false":
	case "bzip2", "bzip", "bz2", "bz":
		f.compress = ".bz2"
	case "gz", "gzip":
		f.compress = ".gz"
	case "zstd", "zst", "zstandard":
		f.compress = ".zstd"
	case "auto":
		switch path.Ext(f.pathTemplate) {
		case ".bz2":
			f.compress = ".bz2"
		case ".gz":
			f.compress = ".gz"
		case ".zstd", ".zst":
			f.compress = ".zstd"
		}
	default:
		return nil, fmt.Errorf("audit: compress %q: invalid value", opt.Compress)
	}

	go f.run()
	return f, nil
}

// Record enqueues r for writing. Non-blocking: if the queue is full the
// record is dropped and logged, rather than stalling the caller's event
// loop.
func (f *File) Record(r Record) {
	select {
	case f.records <- r:
	default:
		f.Warn().Msg("audit queue full, dropping record")
	}
}

// Close stops the writer goroutine and flushes the current file.
func (f *File) Close() error {
	close(f.records)
	<-f.done
	return nil
}

func (f *File) run() {
	defer close(f.done)
	defer f.closeFile()

	var reload <-chan time.Time
	if f.every > 0 {
		reload = time.After(time.Until(time.Now().Truncate(f.every).Add(f.every)))
	}

	for {
		select {
		case r, ok := <-f.records:
			if !ok {
				return
			}
			if err := f.openFile(); err != nil {
				f.Error().Err(err).Msg("failed to open audit file")
				continue
			}

			bb := bbpool.Get()
			enc := json.NewEncoder(bb)
			err := enc.Encode(auditLine{
				Time:   r.Time.UTC().Format(time.RFC3339Nano),
				Method: r.Method,
				UID:    r.UID,
				Params: json.RawMessage(paramsOrNull(r.Params)),
			})
			if err != nil {
				f.Error().Err(err).Msg("failed to marshal audit record")
				bbpool.Put(bb)
				continue
			}
			n, err := f.wr.Write(bb.B)
			f.n += int64(n)
			bbpool.Put(bb)
			if err != nil {
				f.Error().Err(err).Msg("failed to write audit record")
			}

		case <-reload:
			f.closeFile()
			if f.every > 0 {
				reload = time.After(f.every)
			}
		}
	}
}

type auditLine struct {
	Time   string          `json:"time"`
	Method string          `json:"method"`
	UID    string          `json:"uid"`
	Params json.RawMessage `json:"params"`
}

func paramsOrNull(b []byte) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}

func (f *File) openFile() error {
	if f.fh != nil {
		return nil
	}

	target := f.pathTemplate
	if strings.Contains(target, "$") {
		t := time.Now().UTC()
		if f.every > 0 {
			t = t.Truncate(f.every)
		}
		target = f.resolveTime(target, t)
		if target == "" {
			return fmt.Errorf("audit: path %s: could not resolve time placeholders", f.pathTemplate)
		}
	}
	tmp := target + ".tmp"

	if err := os.MkdirAll(path.Dir(tmp), 0755); err != nil {
		return fmt.Errorf("audit: mkdir %s: %w", path.Dir(tmp), err)
	}

	fh, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("audit: open %s: %w", tmp, err)
	}
	f.fh = fh
	f.n = 0

	switch f.compress {
	case ".bz2":
		w, err := bzip2.NewWriter(fh, nil)
		if err != nil {
			return fmt.Errorf("audit: bzip2 writer: %w", err)
		}
		f.wr = w
	case ".gz":
		f.wr = gzip.NewWriter(fh)
	case ".zstd":
		w, err := zstd.NewWriter(fh)
		if err != nil {
			return fmt.Errorf("audit: zstd writer: %w", err)
		}
		f.wr = w
	default:
		f.wr = fh
	}
	return nil
}

func (f *File) resolveTime(p string, t time.Time) string {
	if strings.Contains(p, `$TIME`) {
		str := t.Format(f.timeFmt)
		if str == "" {
			return ""
		}
		p = strings.ReplaceAll(p, `$TIME`, str)
	}

	failed := false
	p = reTimeFmt.ReplaceAllStringFunc(p, func(m string) string {
		str := t.Format(m[2 : len(m)-1])
		if str == "" {
			failed = true
			return m
		}
		return str
	})
	if failed {
		return ""
	}
	return p
}

func (f *File) closeFile() {
	if f.wr == nil || f.fh == nil {
		return
	}
	tmp := f.fh.Name()
	target, found := strings.CutSuffix(tmp, ".tmp")

	if f.n == 0 {
		os.Remove(tmp)
	}
	f.wr.Close()
	f.fh.Close()
	if f.n != 0 && found {
		os.Rename(tmp, target)
	}
	f.fh, f.wr, f.n = nil, nil, 0
}
