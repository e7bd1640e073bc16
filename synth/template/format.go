package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// formatFunc enumerates the closed set of format functions. Unknown names
// map to formatRaw, which substitutes the unformatted value.
type formatFunc int

const (
	formatRaw formatFunc = iota
	formatDate
	formatTime
	formatDatetime
	formatUpper
	formatLower
	formatCapitalize
	formatNumber
	formatJSON
	formatList
	formatCount
	formatTruncate
)

var formatFuncNames = map[string]formatFunc{
	"date":       formatDate,
	"time":       formatTime,
	"datetime":   formatDatetime,
	"upper":      formatUpper,
	"lower":      formatLower,
	"capitalize": formatCapitalize,
	"number":     formatNumber,
	"json":       formatJSON,
	"list":       formatList,
	"count":      formatCount,
	"truncate":   formatTruncate,
}

const defaultTruncateLen = 100

// formatNode applies a format function to a path value.
type formatNode struct {
	fn   formatFunc
	path string
	arg  string
}

// parseFormat parses "format:FN(path[,arg])".
func parseFormat(tag string) (node, error) {
	spec := strings.TrimPrefix(tag, "format:")
	open := strings.IndexByte(spec, '(')
	if open <= 0 || !strings.HasSuffix(spec, ")") {
		return nil, fmt.Errorf("%w: {%s}", ErrMalformedTag, tag)
	}

	name := strings.TrimSpace(spec[:open])
	args := spec[open+1 : len(spec)-1]

	path := args
	arg := ""
	if comma := strings.IndexByte(args, ','); comma >= 0 {
		path = strings.TrimSpace(args[:comma])
		arg = strings.TrimSpace(args[comma+1:])
	}
	if path == "" {
		return nil, fmt.Errorf("%w: {%s}", ErrMalformedTag, tag)
	}

	fn, ok := formatFuncNames[name]
	if !ok {
		fn = formatRaw
	}
	return &formatNode{fn: fn, path: path, arg: arg}, nil
}

func (n *formatNode) render(b *strings.Builder, s *state) {
	value, ok := s.lookup(n.path)
	if !ok {
		return
	}

	switch n.fn {
	case formatDate, formatTime, formatDatetime:
		t, ok := asTime(value)
		if !ok {
			return
		}
		switch n.fn {
		case formatDate:
			b.WriteString(t.Format("2006-01-02"))
		case formatTime:
			b.WriteString(t.Format("15:04:05"))
		default:
			b.WriteString(t.Format("2006-01-02 15:04:05"))
		}

	case formatUpper:
		b.WriteString(strings.ToUpper(stringify(value)))

	case formatLower:
		b.WriteString(strings.ToLower(stringify(value)))

	case formatCapitalize:
		b.WriteString(capitalize(stringify(value)))

	case formatNumber:
		num, ok := asNumber(value)
		if !ok {
			return
		}
		if num == float64(int64(num)) {
			b.WriteString(groupDigits(strconv.FormatInt(int64(num), 10)))
		} else {
			b.WriteString(strconv.FormatFloat(num, 'f', 2, 64))
		}

	case formatJSON:
		data, err := json.Marshal(value)
		if err != nil {
			return
		}
		b.Write(data)

	case formatList:
		arr, ok := value.([]any)
		if !ok {
			return
		}
		for i, item := range arr {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("- ")
			b.WriteString(stringify(item))
		}

	case formatCount:
		arr, ok := value.([]any)
		if !ok {
			return
		}
		b.WriteString(strconv.Itoa(len(arr)))

	case formatTruncate:
		maxLen := defaultTruncateLen
		if n.arg != "" {
			if parsed, err := strconv.Atoi(n.arg); err == nil && parsed > 0 {
				maxLen = parsed
			}
		}
		text := stringify(value)
		runes := []rune(text)
		if len(runes) > maxLen {
			text = string(runes[:maxLen]) + "..."
		}
		b.WriteString(text)

	default:
		b.WriteString(stringify(value))
	}
}

// stringify converts a value for substitution. Maps and arrays are
// JSON-stringified, everything else uses its natural representation.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// timeValue resolves the render-time placeholders.
func timeValue(expr string) (any, bool) {
	now := time.Now()
	switch expr {
	case "timestamp":
		return now.Format("2006-01-02 15:04:05"), true
	case "date":
		return now.Format("2006-01-02"), true
	case "time":
		return now.Format("15:04:05"), true
	default:
		return nil, false
	}
}

// asTime coerces a value to a time for the date/time format functions.
func asTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// capitalize upper-cases the first rune of a string.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// groupDigits inserts thousands separators into a decimal integer string.
func groupDigits(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
