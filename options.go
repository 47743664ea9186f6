package tinkersheet

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Canonical option keys. Keys are snake_case; kebab-case input is
// normalized on ingest and never emitted.
const (
	OptCollapsed      = "collapsed"
	OptToolbar        = "toolbar"
	OptResizable      = "resizable"
	OptScaleControl   = "scale_control"
	OptConstrainWidth = "constrain_width"
	OptScale          = "scale"
)

// flagOptions are the boolean options the settings panel controls.
var flagOptions = []string{OptCollapsed, OptToolbar, OptResizable, OptScaleControl, OptConstrainWidth}

// IsFlagOption reports whether key is one of the boolean options.
func IsFlagOption(key string) bool {
	for _, k := range flagOptions {
		if k == key {
			return true
		}
	}
	return false
}

// IsOptionKey reports whether key is a canonical option key.
func IsOptionKey(key string) bool {
	return key == OptScale || IsFlagOption(key)
}

// DefaultScale is the widget scale used when the options carry no number.
const DefaultScale = 0.95

// Options is the configuration-options record that controls the widget's
// chrome. Values are booleans or numbers.
type Options map[string]any

// NormalizeKey maps an option key onto the canonical snake_case scheme.
func NormalizeKey(key string) string {
	return strings.ReplaceAll(strings.TrimSpace(key), "-", "_")
}

// Normalize returns a copy with every key in canonical form. When both
// spellings of a key are present the canonical one wins.
func (o Options) Normalize() Options {
	out := make(Options, len(o))
	for k, v := range o {
		nk := NormalizeKey(k)
		if _, exists := out[nk]; exists && nk != k {
			continue
		}
		out[nk] = v
	}
	return out
}

// Clone returns a shallow copy. A nil record clones to an empty one.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Canonical returns the serialized form used for identity comparison.
// encoding/json sorts map keys, so equal records produce equal strings.
func (o Options) Canonical() string {
	if len(o) == 0 {
		return "{}"
	}
	data, err := json.Marshal(map[string]any(o))
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Equal reports whether two records serialize identically.
func (o Options) Equal(other Options) bool {
	return o.Canonical() == other.Canonical()
}

// Bool reads a flag; anything other than a true boolean (or a non-zero
// number, or the string "true") reads as false.
func (o Options) Bool(key string) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		return v == "true"
	default:
		return false
	}
}

// Number reads a numeric option, falling back to def when absent or not a number.
func (o Options) Number(key string, def float64) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Toggle returns a copy with the boolean at key inverted.
func (o Options) Toggle(key string) Options {
	key = NormalizeKey(key)
	out := o.Clone()
	out[key] = !o.Bool(key)
	return out
}

// With returns a copy with key set to value.
func (o Options) With(key string, value any) Options {
	out := o.Clone()
	out[NormalizeKey(key)] = value
	return out
}

// MarkupAttributes stringifies every option for use as element attributes,
// in key order.
func (o Options) MarkupAttributes() [][2]string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2]string{NormalizeKey(k), stringify(o[k])})
	}
	return out
}

func stringify(v any) string {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	case nil:
		return ""
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
