// Package fielddata loads the field name to value mapping a form is filled from.
package fielddata

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// AnswersKey is the sub-object questionnaire exports keep their answers under.
const AnswersKey = "collected_answers"

// ErrEmpty is returned when a source yields no fields.
var ErrEmpty = errors.New("no field data")

// FieldData maps a field name to the text to write for it.
type FieldData map[string]string

// Keys returns the field names in sorted order.
func (d FieldData) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup finds the value for name, ignoring case and treating underscores
// and spaces as equal.
func (d FieldData) Lookup(name string) (string, bool) {
	if name == "" || len(d) == 0 {
		return "", false
	}
	if v, ok := d[name]; ok {
		return v, true
	}
	want := normalize(name)
	for _, k := range d.Keys() {
		if normalize(k) == want {
			return d[k], true
		}
	}
	return "", false
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Humanize turns a snake_case key into a title-cased label.
func Humanize(key string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(key, "_", " "))
}

// Humanized returns a copy of d with every key humanized.
func (d FieldData) Humanized() FieldData {
	out := make(FieldData, len(d))
	for k, v := range d {
		out[Humanize(k)] = v
	}
	return out
}

// String renders d in the "Key: Value, Key: Value" form accepted by ParseString.
func (d FieldData) String() string {
	pairs := make([]string, 0, len(d))
	for _, k := range d.Keys() {
		pairs = append(pairs, k+": "+d[k])
	}
	return strings.Join(pairs, ", ")
}

// ParseString reads the "Key: Value, Key: Value" form. Pairs without a colon
// are skipped.
func ParseString(s string) (FieldData, error) {
	d := FieldData{}
	for _, pair := range strings.Split(s, ", ") {
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		d[key] = strings.TrimSpace(value)
	}
	if len(d) == 0 {
		return nil, ErrEmpty
	}
	return d, nil
}

// FromJSON reads a flat JSON object, or the object under collected_answers
// when present.
func FromJSON(r io.Reader) (FieldData, error) {
	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON field data: %w", err)
	}
	return fromMap(raw)
}

// FromYAML reads a YAML mapping with the same layout as FromJSON.
func FromYAML(r io.Reader) (FieldData, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid YAML field data: %w", err)
	}
	return fromMap(raw)
}

func fromMap(raw map[string]any) (FieldData, error) {
	if nested, ok := raw[AnswersKey]; ok {
		m, err := cast.ToStringMapE(nested)
		if err != nil {
			return nil, fmt.Errorf("%s is not an object: %w", AnswersKey, err)
		}
		raw = m
	}

	d := make(FieldData, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			// Lists and objects are kept as compact JSON.
			b, jerr := json.Marshal(v)
			if jerr != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			s = string(b)
		}
		d[k] = s
	}
	if len(d) == 0 {
		return nil, ErrEmpty
	}
	return d, nil
}

// FromCSV reads two-column Field,Value rows. A leading Field,Value header is skipped.
func FromCSV(r io.Reader) (FieldData, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV field data: %w", err)
	}

	d := FieldData{}
	for i, rec := range records {
		if len(rec) < 2 {
			continue
		}
		key := strings.TrimSpace(rec[0])
		if i == 0 && strings.EqualFold(key, "field") && strings.EqualFold(strings.TrimSpace(rec[1]), "value") {
			continue
		}
		if key == "" {
			continue
		}
		d[key] = strings.TrimSpace(rec[1])
	}
	if len(d) == 0 {
		return nil, ErrEmpty
	}
	return d, nil
}

// LoadFile reads field data from path, choosing the decoder by extension.
func LoadFile(fs afero.Fs, path string) (FieldData, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read field data: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FromCSV(bytes.NewReader(data))
	case ".yaml", ".yml":
		return FromYAML(bytes.NewReader(data))
	default:
		return FromJSON(bytes.NewReader(data))
	}
}
