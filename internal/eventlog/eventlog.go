// Package eventlog is an asynchronous diagnostic log sink. Records travel
// over a bounded channel to a single receiver goroutine that formats and
// writes them, so logging callers never wait on I/O unless the channel is
// full. The sink exposes itself to the rest of the program as a
// log/slog Handler.
package eventlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Buffer size of the command channel between senders and the receiver.
const channelSize = 512

// Extended levels beyond the slog built-ins.
const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// ErrClosed is returned by operations on a closed sink.
var ErrClosed = fmt.Errorf("event log is closed")

// Stream selects which outputs the receiver writes to.
type Stream int

const (
	// StreamNeither disables writing while still draining records.
	StreamNeither Stream = 0
	// StreamStdout writes to the configured stdout writer only.
	StreamStdout Stream = 1 << iota
	// StreamFile writes to the logfile only.
	StreamFile
	// StreamBoth writes to both outputs.
	StreamBoth = StreamStdout | StreamFile
)

// ParseStream maps a config string onto a Stream.
func ParseStream(s string) (Stream, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "neither", "none":
		return StreamNeither, nil
	case "stdout":
		return StreamStdout, nil
	case "file":
		return StreamFile, nil
	case "both":
		return StreamBoth, nil
	default:
		return StreamNeither, fmt.Errorf("unknown log stream %q", s)
	}
}

// ParseLevel maps a config string onto a slog level, including the trace and
// fatal extensions.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "fatal":
		return LevelFatal, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelDebug:
		return "TRACE"
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARNING"
	case l < LevelFatal:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// ANSI color per level for the stdout stream; files stay plain.
func levelColor(l slog.Level) string {
	switch levelName(l) {
	case "TRACE":
		return "\x1b[030;105m"
	case "DEBUG":
		return "\x1b[030;106m"
	case "INFO":
		return "\x1b[030;107m"
	case "WARNING":
		return "\x1b[030;103m"
	case "ERROR":
		return "\x1b[030;101m"
	default:
		return "\x1b[031;040m"
	}
}

func padLevel(name string) string {
	// Centered in a 9-column field, matching the widest level name.
	total := 9 - len(name)
	left := total / 2
	return strings.Repeat(" ", left) + name + strings.Repeat(" ", total-left)
}

// Options configure a Sink.
type Options struct {
	// Prefix names the logfile: <prefix>_<timestamp>.log.
	Prefix string
	// Dir is the logfile directory. Defaults to the working directory.
	Dir string
	// Level is the initial minimum level.
	Level slog.Level
	// Stream is the initial output selection.
	Stream Stream
	// Stdout overrides the stdout writer, for tests.
	Stdout io.Writer
	// Now overrides the record timestamp source, for tests.
	Now func() time.Time
}

type command struct {
	kind   commandKind
	rec    entry
	level  slog.Level
	stream Stream
	ack    chan struct{}
}

type commandKind int

const (
	cmdRecord commandKind = iota
	cmdSetLevel
	cmdSetStream
	cmdFlush
)

type entry struct {
	time   time.Time
	level  slog.Level
	caller string
	line   int
	msg    string
}

// Sink owns the receiver goroutine and its outputs.
type Sink struct {
	opts     Options
	commands chan command
	done     chan struct{}

	level   *slog.LevelVar
	written atomic.Uint64

	mu     sync.RWMutex
	closed bool

	filePath string
	file     io.WriteCloser
	fileErr  error
}

// New starts a sink's receiver goroutine. The logfile is created lazily on
// the first file-stream write.
func New(opts Options) *Sink {
	if opts.Prefix == "" {
		opts.Prefix = "ciflow"
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	level := new(slog.LevelVar)
	level.Set(opts.Level)

	s := &Sink{
		opts:     opts,
		commands: make(chan command, channelSize),
		done:     make(chan struct{}),
		level:    level,
		filePath: filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", opts.Prefix, opts.Now().Format("20060102_150405"))),
	}
	go s.receive(opts.Stream)
	return s
}

// FilePath reports where file-stream records are written.
func (s *Sink) FilePath() string { return s.filePath }

// Count reports the number of records actually written to an output. It lags
// sends until Flush is called.
func (s *Sink) Count() uint64 { return s.written.Load() }

// SetLevel adjusts the minimum level. Takes effect for records sent after it.
func (s *Sink) SetLevel(l slog.Level) error {
	if err := s.send(command{kind: cmdSetLevel, level: l}); err != nil {
		return err
	}
	return nil
}

// SetStream switches the active outputs.
func (s *Sink) SetStream(st Stream) error {
	return s.send(command{kind: cmdSetStream, stream: st})
}

// Flush blocks until every record sent before it has been written.
func (s *Sink) Flush() error {
	ack := make(chan struct{})
	if err := s.send(command{kind: cmdFlush, ack: ack}); err != nil {
		return err
	}
	select {
	case <-ack:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Close drains pending records and stops the receiver.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	close(s.commands)
	s.mu.Unlock()
	<-s.done
	return nil
}

func (s *Sink) send(cmd command) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	s.commands <- cmd
	return nil
}

// receive is the single consumer of the command channel.
func (s *Sink) receive(stream Stream) {
	defer close(s.done)
	for cmd := range s.commands {
		switch cmd.kind {
		case cmdRecord:
			s.write(stream, cmd.rec)
		case cmdSetLevel:
			s.level.Set(cmd.level)
		case cmdSetStream:
			stream = cmd.stream
		case cmdFlush:
			close(cmd.ack)
		}
	}
	if s.file != nil {
		_ = s.file.Close()
	}
}

func (s *Sink) write(stream Stream, rec entry) {
	wrote := false

	if stream&StreamStdout != 0 {
		header := fmt.Sprintf("%s: %s[%s]\x1b[0m %s() line %d:",
			rec.time.Format(time.RFC3339Nano), levelColor(rec.level), padLevel(levelName(rec.level)), rec.caller, rec.line)
		fmt.Fprintf(s.opts.Stdout, "%s\n   %s\n", header, rec.msg)
		wrote = true
	}

	if stream&StreamFile != 0 {
		if out := s.logfile(); out != nil {
			header := fmt.Sprintf("%s: [%s] %s() line %d:",
				rec.time.Format(time.RFC3339Nano), padLevel(levelName(rec.level)), rec.caller, rec.line)
			fmt.Fprintf(out, "%s\n   %s\n", header, rec.msg)
			wrote = true
		}
	}

	if wrote {
		s.written.Add(1)
	}
}

func (s *Sink) logfile() io.Writer {
	if s.file != nil {
		return s.file
	}
	if s.fileErr != nil {
		return nil
	}
	f, err := os.OpenFile(s.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.fileErr = err
		fmt.Fprintf(os.Stderr, "event log: open %s: %v\n", s.filePath, err)
		return nil
	}
	s.file = f
	return f
}

// Handler returns a slog.Handler that feeds this sink.
func (s *Sink) Handler() slog.Handler {
	return &handler{sink: s}
}

type handler struct {
	sink  *Sink
	attrs []slog.Attr
	group string
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.sink.level.Level()
}

func (h *handler) Handle(_ context.Context, rec slog.Record) error {
	var b strings.Builder
	b.WriteString(rec.Message)
	for _, attr := range h.attrs {
		writeAttr(&b, "", attr)
	}
	rec.Attrs(func(attr slog.Attr) bool {
		writeAttr(&b, h.group, attr)
		return true
	})

	caller, line := callerOf(rec.PC)
	t := rec.Time
	if t.IsZero() {
		t = h.sink.opts.Now()
	}

	return h.sink.send(command{kind: cmdRecord, rec: entry{
		time:   t,
		level:  rec.Level,
		caller: caller,
		line:   line,
		msg:    b.String(),
	}})
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, attr := range attrs {
		// Group prefixes are baked in here so attrs keep the group that was
		// active when they were attached.
		if h.group != "" {
			attr.Key = h.group + "." + attr.Key
		}
		merged = append(merged, attr)
	}
	return &handler{sink: h.sink, attrs: merged, group: h.group}
}

func (h *handler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &handler{sink: h.sink, attrs: h.attrs, group: group}
}

func writeAttr(b *strings.Builder, group string, attr slog.Attr) {
	key := attr.Key
	if group != "" {
		key = group + "." + key
	}
	fmt.Fprintf(b, " %s=%v", key, attr.Value.Resolve().Any())
}

func callerOf(pc uintptr) (string, int) {
	if pc == 0 {
		return "unknown", 0
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	frame, _ := frames.Next()
	name := frame.Function
	if name == "" {
		name = "unknown"
	}
	return name, frame.Line
}
