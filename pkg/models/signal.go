// Package models contains domain models for ecoscore.
package models

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// SignalKind identifies which variant a Signal carries.
type SignalKind uint8

const (
	// KindInvalid is the zero Signal (e.g. a JSON null). It never coerces.
	KindInvalid SignalKind = iota
	// KindNumber carries a float64 (integers included).
	KindNumber
	// KindBool carries a boolean flag.
	KindBool
	// KindString carries free text, usually a category value.
	KindString
)

// String returns the kind name.
func (k SignalKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// Signal is a single raw input value: a number, a boolean or a string.
// The zero value is invalid.
type Signal struct {
	text string
	num  float64
	kind SignalKind
	flag bool
}

// Number returns a numeric signal.
func Number(v float64) Signal { return Signal{kind: KindNumber, num: v} }

// Int returns a numeric signal from an integer.
func Int(v int) Signal { return Signal{kind: KindNumber, num: float64(v)} }

// Bool returns a boolean signal.
func Bool(v bool) Signal { return Signal{kind: KindBool, flag: v} }

// String returns a string signal.
func String(v string) Signal { return Signal{kind: KindString, text: v} }

// Kind returns the variant carried by the signal.
func (s Signal) Kind() SignalKind { return s.kind }

// Float coerces the signal to a float64.
//
// Booleans map to 0/1, numbers pass through and strings are parsed. The second
// return value is false when no usable number exists (invalid signal, parse
// failure, NaN or ±Inf); callers keep their default in that case.
func (s Signal) Float() (float64, bool) {
	var v float64
	switch s.kind {
	case KindNumber:
		v = s.num
	case KindBool:
		if s.flag {
			return 1, true
		}
		return 0, true
	case KindString:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s.text), 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Text returns the string carried by a string signal.
func (s Signal) Text() (string, bool) {
	if s.kind != KindString {
		return "", false
	}
	return s.text, true
}

// Truthy reports whether the signal represents a set flag.
// Numbers are truthy when non-zero, strings when they parse as true or a
// non-zero number.
func (s Signal) Truthy() bool {
	switch s.kind {
	case KindBool:
		return s.flag
	case KindString:
		if b, err := strconv.ParseBool(strings.TrimSpace(s.text)); err == nil {
			return b
		}
	}
	v, ok := s.Float()
	return ok && v != 0
}

// MarshalJSON encodes the signal as its natural JSON scalar.
func (s Signal) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindNumber:
		if math.IsNaN(s.num) || math.IsInf(s.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(s.num)
	case KindBool:
		return json.Marshal(s.flag)
	case KindString:
		return json.Marshal(s.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON scalar. Objects and arrays are rejected.
func (s *Signal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Signal{}
		return nil
	}
	switch data[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*s = Bool(b)
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = String(str)
	case '{', '[':
		return fmt.Errorf("signal must be a scalar, got %s", data[:1])
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*s = Number(f)
	}
	return nil
}

// SignalFromAny converts a decoded YAML/JSON scalar into a Signal.
// Unsupported types yield an invalid signal.
func SignalFromAny(v any) Signal {
	switch t := v.(type) {
	case bool:
		return Bool(t)
	case int:
		return Int(t)
	case int64:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case string:
		return String(t)
	default:
		return Signal{}
	}
}

// Signals is the raw signal map: feature or category name to value.
type Signals map[string]Signal

// Clone returns a shallow copy of the map.
func (s Signals) Clone() Signals {
	out := make(Signals, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Float returns the coerced value for key, or 0 when absent or unusable.
func (s Signals) Float(key string) float64 {
	v, _ := s[key].Float()
	return v
}

// Flag reports whether key is present and truthy.
func (s Signals) Flag(key string) bool {
	return s[key].Truthy()
}

// Add adds delta to the numeric value stored under key.
// Absent or non-numeric entries count as zero.
func (s Signals) Add(key string, delta float64) {
	s[key] = Number(s.Float(key) + delta)
}

// SignalsFromMap converts a generic decoded map into Signals.
func SignalsFromMap(m map[string]any) Signals {
	out := make(Signals, len(m))
	for k, v := range m {
		out[k] = SignalFromAny(v)
	}
	return out
}
