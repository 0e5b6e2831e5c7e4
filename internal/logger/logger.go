package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
)

const (
	LevelFatal slog.Level = 12
)

// asyncWriter owns the log channel and the rotating file. It is shared by
// every handler derived through WithAttrs/WithGroup.
type asyncWriter struct {
	ch          chan []byte
	writer      io.Writer
	currentDay  int      // day of year of the open file
	currentFile *os.File // nil when basePath is empty
	basePath    string
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
}

type AsyncHandler struct {
	out      *asyncWriter
	attrs    []slog.Attr
	group    string
	logLevel slog.Level
}

// NewAsyncHandler starts the writer goroutine. An empty basePath logs to
// stdout only.
func NewAsyncHandler(basePath string, logLevel slog.Level) *AsyncHandler {
	out := &asyncWriter{
		ch:       make(chan []byte, 1024),
		writer:   os.Stdout,
		basePath: basePath,
	}
	if basePath != "" {
		if err := out.rotateIfNeeded(); err != nil {
			fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		}
	}
	out.wg.Add(1)
	go out.startWorker()
	return &AsyncHandler{out: out, logLevel: logLevel}
}

func (w *asyncWriter) cleanOldLogs() {
	files, _ := filepath.Glob(w.basePath + "/*.log")
	now := time.Now()

	for _, f := range files {
		fi, err := os.Stat(f)
		if err != nil {
			continue
		}
		if now.Sub(fi.ModTime()) > 30*24*time.Hour {
			_ = os.Remove(f)
		}
	}
}

func (w *asyncWriter) rotateIfNeeded() error {
	now := time.Now()
	currentDay := now.YearDay()

	if currentDay == w.currentDay && w.currentFile != nil {
		return nil
	}

	if w.currentFile != nil {
		if err := w.currentFile.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
	}

	logPath := w.getLogPath(now)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}

	w.currentFile = f
	w.currentDay = currentDay
	w.writer = io.MultiWriter(os.Stdout, w.currentFile)
	w.cleanOldLogs()
	return nil
}

func (w *asyncWriter) getLogPath(now time.Time) string {
	return fmt.Sprintf("%s/%s.log", w.basePath, now.Format("2006-01-02"))
}

func (w *asyncWriter) startWorker() {
	defer w.wg.Done()
	for data := range w.ch {
		if w.basePath != "" {
			_ = w.rotateIfNeeded()
		}
		_, _ = w.writer.Write(data)
	}
}

func (w *asyncWriter) write(p []byte) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		_, _ = os.Stdout.Write(p)
		return
	}
	w.ch <- p
}

func (w *asyncWriter) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	w.wg.Wait()
	if w.currentFile != nil {
		_ = w.currentFile.Sync()
		_ = w.currentFile.Close()
	}
}

func (h *AsyncHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.logLevel
}

func (h *AsyncHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String()

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.BlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	case LevelFatal:
		level = color.HiRedString("FATAL")
	}

	line := fmt.Sprintf(
		"%s | %-5s | %s",
		color.GreenString(r.Time.Format("2006-01-02T15:04:05")),
		level,
		color.CyanString(r.Message),
	)

	prefix := ""
	if h.group != "" {
		prefix = h.group + "."
	}

	for _, attr := range h.attrs {
		line += color.CyanString(fmt.Sprintf(" %s%s=%v", prefix, attr.Key, attr.Value))
	}

	r.Attrs(func(attr slog.Attr) bool {
		line += color.CyanString(fmt.Sprintf(" %s%s=%v", prefix, attr.Key, attr.Value))
		return true
	})

	line += "\n"

	h.Write([]byte(line))
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)

	return &AsyncHandler{
		out:      h.out,
		attrs:    newAttrs,
		group:    h.group,
		logLevel: h.logLevel,
	}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{
		out:      h.out,
		attrs:    h.attrs,
		group:    name,
		logLevel: h.logLevel,
	}
}

func (h *AsyncHandler) Write(p []byte) {
	// the caller may reuse p
	pb := make([]byte, len(p))
	copy(pb, p)
	h.out.write(pb)
}

func (h *AsyncHandler) Close() error {
	h.out.close()
	return nil
}

type ShutdownCallback struct {
	handler *AsyncHandler
}

func (lc *ShutdownCallback) Invoke(_ context.Context) error {
	return lc.handler.Close()
}

// Init installs the async handler as the slog default.
func Init(debug bool, basePath string) *ShutdownCallback {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := NewAsyncHandler(basePath, level)
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logger initialized")
	return &ShutdownCallback{handler: handler}
}

func Debug(msg string, v ...interface{}) {
	slog.Debug(msg, v...)
}

func DebugF(msg string, v ...interface{}) {
	slog.Debug(fmt.Sprintf(msg, v...))
}

func Info(msg string, v ...interface{}) {
	slog.Info(msg, v...)
}

func InfoF(msg string, v ...interface{}) {
	slog.Info(fmt.Sprintf(msg, v...))
}

func Warn(msg string, v ...interface{}) {
	slog.Warn(msg, v...)
}

func WarnF(msg string, v ...interface{}) {
	slog.Warn(fmt.Sprintf(msg, v...))
}

func Error(msg string, v ...interface{}) {
	slog.Error(msg, v...)
}

func ErrorF(msg string, v ...interface{}) {
	slog.Error(fmt.Sprintf(msg, v...))
}

func Fatal(msg string, v ...interface{}) {
	slog.Log(context.Background(), LevelFatal, msg, v...)
}

func FatalF(msg string, v ...interface{}) {
	slog.Log(context.Background(), LevelFatal, fmt.Sprintf(msg, v...))
}
