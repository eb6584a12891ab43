package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// ShortcutField is the payload field carrying the requested global shortcut.
const ShortcutField = "shortCut"

// ErrNotFlat is returned when a JSON payload nests objects or arrays.
var ErrNotFlat = errors.New("settings payload must be a flat object of scalar values")

// Payload is a submitted settings form: field name to field value. Fields
// other than ShortcutField are opaque and persisted verbatim.
type Payload map[string]string

// Shortcut returns the requested shortcut, or "" when the field is absent.
func (p Payload) Shortcut() string {
	return p[ShortcutField]
}

// Encode serialises the whole payload as a JSON object with sorted keys.
// HTML characters are written as is.
func (p Payload) Encode() (string, error) {
	if p == nil {
		p = Payload{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]string(p)); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// FromForm converts submitted form values. A repeated field keeps its
// last value.
func FromForm(values url.Values) Payload {
	p := make(Payload, len(values))
	for k, vs := range values {
		if len(vs) == 0 {
			p[k] = ""
			continue
		}
		p[k] = vs[len(vs)-1]
	}
	return p
}

// FromJSON converts a flat JSON object. Numbers and booleans become their
// textual form and null becomes "".
func FromJSON(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding settings JSON: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: got null", ErrNotFlat)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("decoding settings JSON: unexpected data after object")
	}

	p := make(Payload, len(raw))
	for k, v := range raw {
		s, err := scalarString(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		p[k] = s
	}
	return p, nil
}

// Decode parses stored configuration content. Empty content is an empty payload.
func Decode(content string) (Payload, error) {
	if content == "" {
		return Payload{}, nil
	}
	return FromJSON([]byte(content))
}

func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return "", ErrNotFlat
	}
}
