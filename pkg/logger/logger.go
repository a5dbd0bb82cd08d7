package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// New builds the process logger. format is "json" or "text".
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var dedup = &deduplicator{
	flushDelay: 2 * time.Second,
}

type deduplicator struct {
	mu         sync.Mutex
	lastMsg    string
	count      int
	flushDelay time.Duration
	timer      *time.Timer
	out        func(msg string)
}

func (d *deduplicator) emit(msg string) {
	if d.out != nil {
		d.out(msg)
		return
	}
	slog.Info(msg)
}

func (d *deduplicator) flush() {
	if d.count == 0 {
		return
	}
	if d.count == 1 {
		d.emit(d.lastMsg)
	} else {
		d.emit(fmt.Sprintf("%s (%d)", d.lastMsg, d.count))
	}
	d.count = 0
	d.lastMsg = ""
}

func (d *deduplicator) schedule() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.flushDelay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.flush()
	})
}

func (d *deduplicator) log(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if msg == d.lastMsg {
		d.count++
		d.schedule()
		return
	}

	d.flush()
	d.lastMsg = msg
	d.count = 1
	d.schedule()
}

// Dedup logs at info level, folding identical consecutive messages into one line
// with a repeat count once the stream goes quiet.
func Dedup(format string, args ...any) {
	dedup.log(fmt.Sprintf(format, args...))
}

var onceKeys sync.Map

// Once logs msg at warn level the first time key is seen in this process.
func Once(l *slog.Logger, key, msg string, args ...any) {
	if _, seen := onceKeys.LoadOrStore(key, struct{}{}); seen {
		return
	}
	if l == nil {
		l = slog.Default()
	}
	l.Warn(msg, args...)
}
