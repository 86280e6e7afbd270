package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
)

var (
	registryMu  sync.Mutex
	registered  = map[string]struct{}{}
	factoryOnce sync.Once
)

// NewLogger registers name as a fanout logger and returns it. Packages declare
// their logger with it so that InitLoggers can reach every one of them.
func NewLogger(name string) logger.ILogger {
	registryMu.Lock()
	registered[name] = struct{}{}
	registryMu.Unlock()

	return logger.GetLogger(name)
}

// RegisteredLoggers returns the names of all loggers created by NewLogger, sorted
func RegisteredLoggers() []string {
	registryMu.Lock()
	defer registryMu.Unlock()

	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// fanoutLogger implements the ILogger interface with custom formatting
type fanoutLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *fanoutLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *fanoutLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *fanoutLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *fanoutLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *fanoutLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *fanoutLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message
func (l *fanoutLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-10s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger is the logger.Factory installed by InitLoggers. Output goes to
// stderr so that command output on stdout stays machine readable.
func CreateLogger(pkgName string) logger.ILogger {
	stdLogger := log.New(os.Stderr, "", log.Ldate|log.Ltime)

	return &fanoutLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: stdLogger,
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// ParseLevels parses a level setting of the form "<default>[,<logger>=<level>...]",
// e.g. "warn,pool=debug,sink=error". The default may be omitted and is info then.
// Overrides must name a registered logger.
func ParseLevels(setting string) (logger.LogLevel, map[string]logger.LogLevel, error) {
	def := logger.INFO
	overrides := map[string]logger.LogLevel{}

	for i, part := range strings.Split(setting, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, level, isOverride := strings.Cut(part, "=")
		if !isOverride {
			if i != 0 {
				return def, nil, fmt.Errorf("default log level %q must come first", part)
			}
			lvl, err := ParseLogLevel(part)
			if err != nil {
				return def, nil, err
			}
			def = lvl
			continue
		}

		name = strings.TrimSpace(name)
		if !isRegistered(name) {
			return def, nil, fmt.Errorf("unknown logger %q, known loggers: %s", name, strings.Join(RegisteredLoggers(), ", "))
		}
		lvl, err := ParseLogLevel(strings.TrimSpace(level))
		if err != nil {
			return def, nil, err
		}
		overrides[name] = lvl
	}

	return def, overrides, nil
}

// InitLoggers installs the custom logger factory and sets the level of every
// registered fanout logger according to setting (see ParseLevels)
func InitLoggers(setting string) error {
	def, overrides, err := ParseLevels(setting)
	if err != nil {
		return err
	}

	factoryOnce.Do(func() {
		logger.SetLoggerFactory(CreateLogger)
	})

	for _, name := range RegisteredLoggers() {
		lvl, ok := overrides[name]
		if !ok {
			lvl = def
		}
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}

func isRegistered(name string) bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	_, ok := registered[name]
	return ok
}
