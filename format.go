// format.go: the format-string logging API (spec.md §4.3's "argument
// capture", §4.4's "Sink.Log(format string, args ...any)", §8's seed
// scenarios). This is the high-level counterpart to record.go's manual
// RegisterFormatter/writeRecord path: a call site's format string and
// argument types are compiled into a trampoline exactly once, cached
// under a hash of both, and every subsequent call with the same shape
// reuses the cached FormatterID — the Go analogue of the original
// design's per-call-site monomorphization, since Go has no templates to
// specialize a trampoline body at compile time.
package xtrlog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

// NoCopy wraps s so Log captures it by reference instead of copying it
// into the record's string table (record.go's NoCopyString, SPEC_FULL.md
// §4.3's "Ref side-table"). The string header itself is held in the
// sink's ref side-table, an ordinary Go slice, until the consumer renders
// the record, so its backing array stays reachable for that long.
func NoCopy(s string) NoCopyString { return NoCopyString(s) }

// argKind classifies one logged argument by storage category, mirroring
// the reference formatter's bool/int/float/string/[]byte/error/Stringer
// split (spec.md §4.3).
type argKind int

const (
	kindBool argKind = iota
	kindInt
	kindUint
	kindFloat
	kindString
	kindBytes
	kindNoCopyString
	kindNoCopyBytes
	kindError
	kindStringer
)

// classify reports v's argument kind. Every fixed-size kind occupies 8
// bytes of the args block in this implementation: bools and narrower
// integers are simply widened, the same way the ring already aligns every
// record to an 8-byte word.
func classify(v any) argKind {
	switch v.(type) {
	case bool:
		return kindBool
	case int, int8, int16, int32, int64:
		return kindInt
	case uint, uint8, uint16, uint32, uint64, uintptr:
		return kindUint
	case float32, float64:
		return kindFloat
	case string:
		return kindString
	case []byte:
		return kindBytes
	case NoCopyString:
		return kindNoCopyString
	case NoCopyBytes:
		return kindNoCopyBytes
	case error:
		return kindError
	case fmt.Stringer:
		return kindStringer
	default:
		return kindString // formatted with fmt.Sprint as a fallback
	}
}

// isStringKind reports whether kind contributes an entry to a record's
// string table rather than its fixed-size argument block.
func isStringKind(kind argKind) bool {
	switch kind {
	case kindString, kindBytes, kindNoCopyString, kindNoCopyBytes, kindError, kindStringer:
		return true
	default:
		return false
	}
}

// compiledFormat is the cached result of compiling one (format string,
// argument-kind signature) pair: a trampoline rendering literal text
// interleaved with "{}" substitutions, plus its argument shape.
type compiledFormat struct {
	id      FormatterID
	kinds   []argKind
	argsLen int // fixed-size argument block size, in bytes
}

var (
	formatCacheMu sync.Mutex
	formatCache   = map[uint64]*compiledFormat{}
)

// formatHash derives a cache key from format and the call's argument
// kinds. formatCache is keyed by this hash alone: two different
// (format, kinds) pairs with the same hash share one cache entry.
func formatHash(format string, kinds []argKind) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(format); i++ {
		h ^= uint64(format[i])
		h *= prime64
	}
	for _, k := range kinds {
		h ^= uint64(k) + 1
		h *= prime64
	}
	return h
}

// getCompiledFormat returns the cached compiledFormat for (format, args),
// compiling and registering a new trampoline on first use.
func getCompiledFormat(format string, args []any) *compiledFormat {
	kinds := make([]argKind, len(args))
	for i, a := range args {
		kinds[i] = classify(a)
	}
	key := formatHash(format, kinds)

	formatCacheMu.Lock()
	defer formatCacheMu.Unlock()
	if cf, ok := formatCache[key]; ok {
		return cf
	}

	segments := splitFormat(format)
	hasStrings := false
	argsLen := 0
	for _, k := range kinds {
		if isStringKind(k) {
			hasStrings = true
		} else {
			argsLen += 8
		}
	}

	id := RegisterFormatter(buildTrampoline(segments, kinds))
	RegisterFormatterShape(id, argsLen, hasStrings)

	cf := &compiledFormat{id: id, kinds: kinds, argsLen: argsLen}
	formatCache[key] = cf
	return cf
}

// splitFormat splits format on "{}" placeholders, returning the literal
// text segments around them; len(segments) == placeholderCount+1.
func splitFormat(format string) []string {
	return strings.Split(format, "{}")
}

// buildTrampoline compiles segments/kinds into a render function: literal
// text is written verbatim, each placeholder consumes the next argument
// of the recorded kind from args or strs in order.
func buildTrampoline(segments []string, kinds []argKind) Trampoline {
	return func(out *OutputBuffer, args []byte, strs *StringCursor, level Level, ts, name string) {
		var b strings.Builder
		argOff := 0
		for i, seg := range segments {
			b.WriteString(seg)
			if i >= len(kinds) {
				continue
			}
			switch kinds[i] {
			case kindBool:
				if getUint64(args, argOff) != 0 {
					b.WriteString("true")
				} else {
					b.WriteString("false")
				}
				argOff += 8
			case kindInt:
				b.WriteString(strconv.FormatInt(int64(getUint64(args, argOff)), 10))
				argOff += 8
			case kindUint:
				b.WriteString(strconv.FormatUint(getUint64(args, argOff), 10))
				argOff += 8
			case kindFloat:
				b.WriteString(strconv.FormatFloat(math.Float64frombits(getUint64(args, argOff)), 'g', -1, 64))
				argOff += 8
			default: // every string-table kind
				b.WriteString(EscapeArg(strs.Next()))
			}
		}
		out.WriteFormatted(level, ts, name, b.String())
	}
}

// encodeArgs serializes args into a fixed-size block and a string table,
// in the order getCompiledFormat classified them, ready for writeRecord.
func encodeArgs(kinds []argKind, args []any) (fixed []byte, strs []StringArg) {
	fixed = make([]byte, 0, 8*len(args))
	for i, a := range args {
		switch kinds[i] {
		case kindBool:
			v := uint64(0)
			if a.(bool) {
				v = 1
			}
			fixed = appendUint64(fixed, v)
		case kindInt:
			fixed = appendUint64(fixed, uint64(toInt64(a)))
		case kindUint:
			fixed = appendUint64(fixed, toUint64(a))
		case kindFloat:
			fixed = appendUint64(fixed, math.Float64bits(toFloat64(a)))
		case kindString:
			strs = append(strs, CopyString(toDisplayString(a)))
		case kindBytes:
			strs = append(strs, CopyBytes(a.([]byte)))
		case kindNoCopyString:
			strs = append(strs, refString(string(a.(NoCopyString))))
		case kindNoCopyBytes:
			strs = append(strs, refString(string(a.(NoCopyBytes))))
		case kindError:
			strs = append(strs, CopyString(a.(error).Error()))
		case kindStringer:
			strs = append(strs, CopyString(a.(fmt.Stringer).String()))
		}
	}
	return fixed, strs
}

func appendUint64(b []byte, v uint64) []byte {
	return append(b,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	default:
		return 0
	}
}

func toUint64(v any) uint64 {
	switch x := v.(type) {
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case uintptr:
		return uint64(x)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}

// toDisplayString renders an argument classified as kindString that is
// not actually a string (the fmt.Sprint fallback in classify's default
// case) the same way fmt would, via fmt.Sprint.
func toDisplayString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
