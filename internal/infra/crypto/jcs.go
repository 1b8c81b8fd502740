package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// CanonicalizeJSON re-encodes a JSON document in RFC 8785 form.
func CanonicalizeJSON(input []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return nil, errors.New("invalid JSON: trailing data")
	}
	return CanonicalJSON(value)
}

// CanonicalJSON encodes audit bodies and intent payloads. Plain Go values are
// written directly; anything else goes through encoding/json first.
func CanonicalJSON(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	switch value := v.(type) {
	case json.RawMessage:
		return CanonicalizeJSON(value)
	case []byte:
		return CanonicalizeJSON(value)
	default:
		err := writeValue(buf, value)
		if err == nil {
			return buf.Bytes(), nil
		}
		var unsupported unsupportedTypeError
		if !errors.As(err, &unsupported) {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return CanonicalizeJSON(encoded)
	}
}

type unsupportedTypeError struct{ value any }

func (e unsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported JSON type %T", e.value)
}

func writeValue(buf *bytes.Buffer, value any) error {
	if f, ok := numericValue(value); ok {
		num, err := formatNumber(f)
		if err != nil {
			return err
		}
		buf.WriteString(num)
		return nil
	}
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(v))
	case string:
		writeQuoted(buf, v)
	case json.Number:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return fmt.Errorf("invalid JSON number: %w", err)
		}
		return writeValue(buf, f)
	case map[string]any:
		return writeMembers(buf, len(v), func(yield func(string, any) error) error {
			for _, k := range sortedKeys(v) {
				if err := yield(k, v[k]); err != nil {
					return err
				}
			}
			return nil
		})
	case map[string]string:
		return writeMembers(buf, len(v), func(yield func(string, any) error) error {
			for _, k := range sortedKeys(v) {
				if err := yield(k, v[k]); err != nil {
					return err
				}
			}
			return nil
		})
	case []any:
		return writeElements(buf, len(v), func(i int) any { return v[i] })
	case []string:
		return writeElements(buf, len(v), func(i int) any { return v[i] })
	default:
		return unsupportedTypeError{value: value}
	}
	return nil
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeMembers(buf *bytes.Buffer, n int, each func(yield func(string, any) error) error) error {
	buf.WriteByte('{')
	i := 0
	err := each(func(k string, v any) error {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		writeQuoted(buf, k)
		buf.WriteByte(':')
		return writeValue(buf, v)
	})
	if err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

func writeElements(buf *bytes.Buffer, n int, at func(int) any) error {
	buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, at(i)); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

const hexDigits = "0123456789abcdef"

func writeQuoted(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[r>>4])
				buf.WriteByte(hexDigits[r&0x0f])
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

// formatNumber follows the ECMAScript Number.prototype.toString rules.
func formatNumber(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", errors.New("invalid JSON number")
	}
	if f == 0 {
		return "0", nil
	}
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, expPart, ok := strings.Cut(sci, "e")
	if !ok {
		return "", fmt.Errorf("invalid float format: %q", sci)
	}
	exp, err := strconv.Atoi(expPart)
	if err != nil {
		return "", fmt.Errorf("invalid float exponent: %w", err)
	}
	digits := strings.ReplaceAll(mantissa, ".", "")

	if exp <= -7 || exp >= 21 {
		if len(digits) == 1 {
			return sign + digits + "e" + strconv.Itoa(exp), nil
		}
		return sign + digits[:1] + "." + digits[1:] + "e" + strconv.Itoa(exp), nil
	}
	point := exp + 1
	switch {
	case point >= len(digits):
		return sign + digits + strings.Repeat("0", point-len(digits)), nil
	case point <= 0:
		return sign + "0." + strings.Repeat("0", -point) + digits, nil
	default:
		return sign + digits[:point] + "." + digits[point:], nil
	}
}
