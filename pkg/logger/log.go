package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type LogStatus int

const (
	VERBOSE LogStatus = iota
	DEBUG
	INFO
	SUCCESS
	NEW
	REMOVE
	STOP
	WARNING
	ERROR
	FATAL
)

func (e LogStatus) String() string {
	return []string{
		"V",
		"D",
		"I",
		"✓",
		"+",
		"-",
		"X",
		"!",
		"!!",
		"PANIC",
	}[e]
}

func (e LogStatus) Level() int { return int(e) }

func (e LogStatus) Color() *color.Color {
	return []*color.Color{
		color.New(color.FgWhite, color.Italic),
		color.New(color.FgWhite, color.Italic),
		color.New(color.FgWhite),
		color.New(color.FgHiGreen),
		color.New(color.FgGreen, color.Italic),
		color.New(color.FgYellow, color.Italic),
		color.New(color.FgHiYellow),
		color.New(color.FgYellow, color.Underline),
		color.New(color.FgHiRed, color.Bold),
		color.New(color.FgHiRed, color.Bold, color.Underline),
	}[e]
}

// Logger is a named log emitter. All emissions are routed through the
// package-level manager, which handles level filtering and formatting.
type Logger interface {
	Emit(LogStatus, string, ...interface{})
	Verbosef(string, ...interface{})
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	// Printf satisfies third-party logging interfaces (goose). Emits at INFO.
	Printf(string, ...interface{})
	Warnf(string, ...interface{})
	Errorf(string, ...interface{})
	Fatalf(string, ...interface{})
}

type loggerImpl struct {
	name string
}

func (l *loggerImpl) Emit(status LogStatus, message string, interpolations ...interface{}) {
	Log.Emit(status, l.name, message, interpolations...)
}

func (l *loggerImpl) Verbosef(message string, interpolations ...interface{}) {
	l.Emit(VERBOSE, message, interpolations...)
}

func (l *loggerImpl) Debugf(message string, interpolations ...interface{}) {
	l.Emit(DEBUG, message, interpolations...)
}

func (l *loggerImpl) Infof(message string, interpolations ...interface{}) {
	l.Emit(INFO, message, interpolations...)
}

func (l *loggerImpl) Printf(message string, interpolations ...interface{}) {
	l.Emit(INFO, message, interpolations...)
}

func (l *loggerImpl) Warnf(message string, interpolations ...interface{}) {
	l.Emit(WARNING, message, interpolations...)
}

func (l *loggerImpl) Errorf(message string, interpolations ...interface{}) {
	l.Emit(ERROR, message, interpolations...)
}

func (l *loggerImpl) Fatalf(message string, interpolations ...interface{}) {
	l.Emit(FATAL, message, interpolations...)
}

type LoggerManager interface {
	GetLogger(string) Logger
	Emit(LogStatus, string, string, ...interface{})
	SetMinLoggingLevel(int)
}

var Log LoggerManager = &loggerMgr{minLevel: INFO.Level()}

type loggerMgr struct {
	mu       sync.Mutex
	offset   int
	minLevel int
}

func (l *loggerMgr) GetLogger(name string) Logger {
	return &loggerImpl{name: name}
}

func (l *loggerMgr) SetMinLoggingLevel(level int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.minLevel = level
}

func (l *loggerMgr) Emit(status LogStatus, name string, message string, interpolations ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if status.Level() < l.minLevel {
		return
	}

	l.setNameOffset(len(name))
	padding := strings.Repeat(" ", l.offset-len(name))
	msg := fmt.Sprintf("[%s] %s(%s) %s", name, padding, status, fmt.Sprintf(message, interpolations...))

	status.Color().Print(msg)
}

func (l *loggerMgr) setNameOffset(offset int) {
	if offset > l.offset {
		l.offset = offset
	}
}

func Get(name string) Logger {
	return Log.GetLogger(name)
}

func SetMinLoggingLevel(level int) {
	Log.SetMinLoggingLevel(level)
}
