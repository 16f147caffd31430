// Package convert renders request values the way routing providers expect them on the
// wire and merges caller supplied overrides into built parameter trees.
package convert

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DelimitComma is the separator used for coordinate pairs and list values.
const DelimitComma = ","

// DelimitPipe separates coordinate pairs in list-of-point query values.
const DelimitPipe = "|"

// FormatFloat renders x with at most six decimals, dropping trailing zeros and a
// trailing decimal point. The output never uses exponent notation.
func FormatFloat(x float64) string {
	s := strconv.FormatFloat(x, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// DelimitList joins items with sep.
func DelimitList(items []string, sep string) string {
	return strings.Join(items, sep)
}

// FormatCoordinate renders a position as "lon,lat".
func FormatCoordinate(lon, lat float64) string {
	return DelimitList([]string{FormatFloat(lon), FormatFloat(lat)}, DelimitComma)
}

// ConvertBool renders b as the lowercase words providers accept in query strings.
func ConvertBool(b bool) string {
	return strconv.FormatBool(b)
}

// Params is a tree of provider parameters. Values are JSON-compatible: strings,
// numbers, booleans, slices and nested Params.
type Params map[string]any

// DeepMerge returns a new tree holding base with overrides applied. Where both sides
// hold a mapping under the same key the mappings are merged recursively; any other
// override value replaces the base value, slices included. Neither argument is modified.
func DeepMerge(base, overrides Params) Params {
	out := make(Params, len(base)+len(overrides))
	for k, v := range base {
		out[k] = cloneValue(v)
	}

	for k, ov := range overrides {
		bm, baseIsMap := asParams(out[k])
		om, overrideIsMap := asParams(ov)
		if baseIsMap && overrideIsMap {
			out[k] = DeepMerge(bm, om)
			continue
		}
		out[k] = cloneValue(ov)
	}
	return out
}

// Set assigns v to k and returns p for chaining. A nil p is allocated.
func (p Params) Set(k string, v any) Params {
	if p == nil {
		p = Params{}
	}
	p[k] = v
	return p
}

// SetIf assigns v to k only when ok is true.
func (p Params) SetIf(ok bool, k string, v any) Params {
	if ok {
		return p.Set(k, v)
	}
	return p
}

// Clone returns a deep copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	return DeepMerge(p, nil)
}

// Query renders a flat tree as URL query values. Booleans become "true"/"false",
// floats go through FormatFloat, string slices are comma-joined and any nested value
// is JSON encoded.
func (p Params) Query() (url.Values, error) {
	q := make(url.Values, len(p))
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		s, err := queryValue(p[k])
		if err != nil {
			return nil, fmt.Errorf("query parameter %q: %w", k, err)
		}
		q.Set(k, s)
	}
	return q, nil
}

func queryValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return ConvertBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return FormatFloat(t), nil
	case float32:
		return FormatFloat(float64(t)), nil
	case []string:
		return DelimitList(t, DelimitComma), nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func asParams(v any) (Params, bool) {
	switch t := v.(type) {
	case Params:
		return t, true
	case map[string]any:
		return Params(t), true
	default:
		return nil, false
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Params:
		return DeepMerge(t, nil)
	case map[string]any:
		return DeepMerge(Params(t), nil)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []Params:
		out := make([]Params, len(t))
		for i, e := range t {
			out[i] = DeepMerge(e, nil)
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	default:
		return v
	}
}
