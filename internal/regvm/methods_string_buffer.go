package regvm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// stringMethod implements Str's built-in method table (spec.md §4.6).
// `matches`/`replace_pattern` use regexp2 for .NET-flavored patterns (the
// only regex engine in the example pack's dependency surface); `pad`
// uses x/text/width so East-Asian-wide runes count as two display
// columns rather than one byte/rune.
func (rt *Runtime) stringMethod(obj Value, method string, args []Value) (Value, bool, error) {
	s := string(obj.AsStr().Bytes)

	switch method {
	case "len":
		return Int(int64(len([]rune(s)))), true, nil

	case "byte_len":
		return Int(int64(len(s))), true, nil

	case "upper":
		return rt.arenaStr(strings.ToUpper(s)), true, nil

	case "lower":
		return rt.arenaStr(strings.ToLower(s)), true, nil

	case "trim":
		return rt.arenaStr(strings.TrimSpace(s)), true, nil

	case "split":
		if len(args) < 1 || args[0].kind != KindStr {
			return Value{}, true, fmt.Errorf("string.split requires a Str separator")
		}
		sep := string(args[0].AsStr().Bytes)
		parts := strings.Split(s, sep)
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = Str(p)
		}
		return Array(out), true, nil

	case "contains":
		return Bool(strings.Contains(s, string(args[0].AsStr().Bytes))), true, nil

	case "starts_with":
		return Bool(strings.HasPrefix(s, string(args[0].AsStr().Bytes))), true, nil

	case "ends_with":
		return Bool(strings.HasSuffix(s, string(args[0].AsStr().Bytes))), true, nil

	case "replace":
		if len(args) < 2 {
			return Value{}, true, fmt.Errorf("string.replace requires (old, new)")
		}
		out := strings.ReplaceAll(s, string(args[0].AsStr().Bytes), string(args[1].AsStr().Bytes))
		return rt.arenaStr(out), true, nil

	case "matches":
		if len(args) < 1 || args[0].kind != KindStr {
			return Value{}, true, fmt.Errorf("string.matches requires a Str pattern")
		}
		re, err := regexp2.Compile(string(args[0].AsStr().Bytes), 0)
		if err != nil {
			return Value{}, true, fmt.Errorf("invalid pattern: %w", err)
		}
		ok, err := re.MatchString(s)
		if err != nil {
			return Value{}, true, err
		}
		return Bool(ok), true, nil

	case "replace_pattern":
		if len(args) < 2 {
			return Value{}, true, fmt.Errorf("string.replace_pattern requires (pattern, replacement)")
		}
		re, err := regexp2.Compile(string(args[0].AsStr().Bytes), 0)
		if err != nil {
			return Value{}, true, fmt.Errorf("invalid pattern: %w", err)
		}
		out, err := re.Replace(s, string(args[1].AsStr().Bytes), -1, -1)
		if err != nil {
			return Value{}, true, err
		}
		return rt.arenaStr(out), true, nil

	case "normalize":
		return rt.arenaStr(norm.NFC.String(s)), true, nil

	case "pad":
		n, err := argInt(args, 0)
		if err != nil {
			return Value{}, true, err
		}
		padChar := " "
		if len(args) > 1 && args[1].kind == KindStr {
			padChar = string(args[1].AsStr().Bytes)
		}
		cur := 0
		for _, r := range s {
			switch width.LookupRune(r).Kind() {
			case width.EastAsianWide, width.EastAsianFullwidth:
				cur += 2
			default:
				cur++
			}
		}
		if int64(cur) >= n {
			return obj, true, nil
		}
		return rt.arenaStr(s + strings.Repeat(padChar, int(n)-cur)), true, nil

	default:
		return Value{}, false, nil
	}
}

func (rt *Runtime) arenaStr(s string) Value {
	return ArenaStr(rt.Arena.Strdup(s))
}

// bufferMethod implements Buffer's built-in method table: little-endian
// multi-byte read/write accessors plus push/resize/fill/clear
// (spec.md §4.6: "Buffer read/write operations use little-endian
// encoding for u16 and u32").
func (rt *Runtime) bufferMethod(obj Value, method string, args []Value) (Value, bool, error) {
	b := obj.AsBuffer()
	mutating := map[string]bool{
		"write_u8": true, "write_i8": true, "write_u16": true, "write_u32": true,
		"push": true, "resize": true, "fill": true, "clear": true,
	}
	if mutating[method] && obj.Phase() == PhaseCrystal {
		return Value{}, true, wantCrystalMutationErr(KindBuffer)
	}

	switch method {
	case "len":
		return Int(int64(len(b.Bytes))), true, nil

	case "push":
		v, err := argInt(args, 0)
		if err != nil {
			return Value{}, true, err
		}
		b.Bytes = append(b.Bytes, byte(v))
		return obj, true, nil

	case "clear":
		b.Bytes = b.Bytes[:0]
		return obj, true, nil

	case "resize":
		n, err := argInt(args, 0)
		if err != nil {
			return Value{}, true, err
		}
		switch {
		case int64(len(b.Bytes)) > n:
			b.Bytes = b.Bytes[:n]
		case int64(len(b.Bytes)) < n:
			b.Bytes = append(b.Bytes, make([]byte, n-int64(len(b.Bytes)))...)
		}
		return obj, true, nil

	case "fill":
		v, err := argInt(args, 0)
		if err != nil {
			return Value{}, true, err
		}
		for i := range b.Bytes {
			b.Bytes[i] = byte(v)
		}
		return obj, true, nil

	case "read_u8":
		off, err := argInt(args, 0)
		if err != nil {
			return Value{}, true, err
		}
		if off < 0 || off >= int64(len(b.Bytes)) {
			return Value{}, true, fmt.Errorf("buffer read_u8 offset %d out of range", off)
		}
		return Int(int64(b.Bytes[off])), true, nil

	case "write_u8", "write_i8":
		off, err := argInt(args, 0)
		if err != nil {
			return Value{}, true, err
		}
		v, err := argInt(args, 1)
		if err != nil {
			return Value{}, true, err
		}
		if off < 0 || off >= int64(len(b.Bytes)) {
			return Value{}, true, fmt.Errorf("buffer write offset %d out of range", off)
		}
		b.Bytes[off] = byte(v)
		return obj, true, nil

	case "read_u16":
		off, err := argInt(args, 0)
		if err != nil {
			return Value{}, true, err
		}
		if off < 0 || off+2 > int64(len(b.Bytes)) {
			return Value{}, true, fmt.Errorf("buffer read_u16 offset %d out of range", off)
		}
		return Int(int64(binary.LittleEndian.Uint16(b.Bytes[off:]))), true, nil

	case "write_u16":
		off, err := argInt(args, 0)
		if err != nil {
			return Value{}, true, err
		}
		v, err := argInt(args, 1)
		if err != nil {
			return Value{}, true, err
		}
		if off < 0 || off+2 > int64(len(b.Bytes)) {
			return Value{}, true, fmt.Errorf("buffer write_u16 offset %d out of range", off)
		}
		binary.LittleEndian.PutUint16(b.Bytes[off:], uint16(v))
		return obj, true, nil

	case "read_u32":
		off, err := argInt(args, 0)
		if err != nil {
			return Value{}, true, err
		}
		if off < 0 || off+4 > int64(len(b.Bytes)) {
			return Value{}, true, fmt.Errorf("buffer read_u32 offset %d out of range", off)
		}
		return Int(int64(binary.LittleEndian.Uint32(b.Bytes[off:]))), true, nil

	case "write_u32":
		off, err := argInt(args, 0)
		if err != nil {
			return Value{}, true, err
		}
		v, err := argInt(args, 1)
		if err != nil {
			return Value{}, true, err
		}
		if off < 0 || off+4 > int64(len(b.Bytes)) {
			return Value{}, true, fmt.Errorf("buffer write_u32 offset %d out of range", off)
		}
		binary.LittleEndian.PutUint32(b.Bytes[off:], uint32(v))
		return obj, true, nil

	default:
		return Value{}, false, nil
	}
}
