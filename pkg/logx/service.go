package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type Config struct {
	Level string
	// Components overrides Level per component, e.g. {"quiz": "debug"}.
	// A dotted name falls back to its parent: "telegram.router" uses "telegram".
	Components map[string]string
	Console    bool
	JSON       bool
	File       FileConfig
	// Out replaces stdout for the console sink.
	Out io.Writer
}

type FileConfig struct {
	Enabled bool
	Path    string
}

type levelTable struct {
	def    zerolog.Level
	byComp map[string]zerolog.Level
}

func (t *levelTable) lookup(comp string) zerolog.Level {
	for comp != "" {
		if lv, ok := t.byComp[comp]; ok {
			return lv
		}
		i := strings.LastIndexByte(comp, '.')
		if i < 0 {
			break
		}
		comp = comp[:i]
	}
	return t.def
}

// Service owns the sinks and the level table. Apply swaps both at runtime.
type Service struct {
	mu   sync.Mutex
	file *os.File

	root   atomic.Pointer[zerolog.Logger]
	levels atomic.Pointer[levelTable]
}

// New applies cfg and returns the service with its root logger.
func New(cfg Config) (*Service, Logger) {
	setGlobals()
	s := &Service{}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

func (s *Service) levelFor(comp string) zerolog.Level {
	if t := s.levels.Load(); t != nil {
		return t.lookup(comp)
	}
	return zerolog.InfoLevel
}

// Close releases the log file, if any.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Apply swaps sinks and levels. Safe to call concurrently with logging.
func (s *Service) Apply(cfg Config) {
	table := &levelTable{def: parseLevel(cfg.Level, zerolog.InfoLevel), byComp: map[string]zerolog.Level{}}
	for comp, lv := range cfg.Components {
		name := strings.ToLower(strings.TrimSpace(comp))
		if name != "" {
			table.byComp[name] = parseLevel(lv, table.def)
		}
	}

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	var sinks []io.Writer
	if cfg.Console {
		if cfg.JSON {
			sinks = append(sinks, out)
		} else {
			sinks = append(sinks, consoleWriter(out))
		}
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = "./quizbot.log"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: open %q: %v\n", path, err)
		} else {
			s.file = f
			sinks = append(sinks, zerolog.SyncWriter(f))
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, consoleWriter(out))
	}

	// Levels are enforced per component in Logger.log.
	zl := zerolog.New(zerolog.MultiLevelWriter(sinks...)).Level(zerolog.TraceLevel).With().Timestamp().Logger()
	s.root.Store(&zl)
	s.levels.Store(table)
}

var globalsOnce sync.Once

func setGlobals() {
	globalsOnce.Do(func() {
		zerolog.ErrorFieldName = "err"
		zerolog.TimeFieldFormat = consoleTimeFormat
	})
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:          w,
		TimeFormat:   consoleTimeFormat,
		FormatCaller: func(i any) string { s, _ := i.(string); return s },
	}
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return def
	}
}
