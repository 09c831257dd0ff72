// level.go: log levels and the level-to-prefix style functions (spec.md §6).

package xtrlog

import "sync/atomic"

// Level is a log severity. Zero value is None (nothing is logged).
type Level int32

const (
	None Level = iota
	Fatal
	Error
	Warning
	Info
	Debug
)

func (l Level) String() string {
	switch l {
	case None:
		return "none"
	case Fatal:
		return "fatal"
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		return "unknown"
	}
}

// atomicLevel is the sink's concurrently-read/written level field: a
// relaxed atomic load/store, as spec.md §9 calls out as the only field a
// sink mutates from multiple threads.
type atomicLevel struct {
	v atomic.Int32
}

func (a *atomicLevel) load() Level   { return Level(a.v.Load()) }
func (a *atomicLevel) store(l Level) { a.v.Store(int32(l)) }

// Style maps a level to the line prefix a trampoline writes before the
// timestamp.
type Style func(Level) string

// DefaultStyle renders single-letter prefixes; None renders an empty prefix.
func DefaultStyle(l Level) string {
	switch l {
	case Fatal:
		return "F "
	case Error:
		return "E "
	case Warning:
		return "W "
	case Info:
		return "I "
	case Debug:
		return "D "
	default:
		return ""
	}
}

// SyslogStyle renders RFC 5424 numeric priority prefixes.
func SyslogStyle(l Level) string {
	switch l {
	case Fatal:
		return "<0>"
	case Error:
		return "<3>"
	case Warning:
		return "<4>"
	case Info:
		return "<6>"
	case Debug:
		return "<7>"
	default:
		return ""
	}
}
