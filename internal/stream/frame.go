package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pilotdeck/pilotdeck/internal/eventbus"
)

// ErrNotObject is returned by ParseFrame for JSON that is not an object.
var ErrNotObject = errors.New("frame is not a JSON object")

// Frame is one JSON object pushed by the server.
type Frame struct {
	raw    json.RawMessage
	fields map[string]any
}

// ParseFrame decodes data into a Frame. Numbers keep their JSON text so
// large ids are not rounded.
func ParseFrame(data []byte) (Frame, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if fields == nil {
		return Frame{}, ErrNotObject
	}
	if dec.More() {
		return Frame{}, errors.New("decode frame: trailing data after object")
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return Frame{raw: raw, fields: fields}, nil
}

// Raw returns the frame's original bytes.
func (f Frame) Raw() json.RawMessage {
	return f.raw
}

// Has reports whether the frame carries key, whatever its value.
func (f Frame) Has(key string) bool {
	_, ok := f.fields[key]
	return ok
}

// Get returns the decoded value of key.
func (f Frame) Get(key string) (any, bool) {
	v, ok := f.fields[key]
	return v, ok
}

// String returns key's value if it is a JSON string.
func (f Frame) String(key string) (string, bool) {
	s, ok := f.fields[key].(string)
	return s, ok
}

// Number returns key's value if it is a JSON number.
func (f Frame) Number(key string) (float64, bool) {
	n, ok := f.fields[key].(json.Number)
	if !ok {
		return 0, false
	}
	v, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return v, true
}

// Bool returns key's value if it is a JSON boolean.
func (f Frame) Bool(key string) (bool, bool) {
	b, ok := f.fields[key].(bool)
	return b, ok
}

// Decode unmarshals the frame into v.
func (f Frame) Decode(v any) error {
	return json.Unmarshal(f.raw, v)
}

// Rule maps a frame to a topic. Rules are independent: every rule that
// matches produces its own emission.
type Rule struct {
	Name  string
	Match func(Frame) (topic string, ok bool)
}

// TypeRule emits a frame on the topic named by its "type" field.
func TypeRule() Rule {
	return Rule{
		Name: "type",
		Match: func(f Frame) (string, bool) {
			t, ok := f.String("type")
			return t, ok && t != ""
		},
	}
}

// DownloadProgressRule emits frames carrying a "hash" string and a numeric
// "progress" on the download-progress topic.
func DownloadProgressRule() Rule {
	return Rule{
		Name: "download-progress",
		Match: func(f Frame) (string, bool) {
			hash, ok := f.String("hash")
			if !ok || hash == "" {
				return "", false
			}
			if _, ok := f.Number("progress"); !ok {
				return "", false
			}
			return eventbus.TopicDownloadProgress, true
		},
	}
}

// CatchAllRule emits every frame on the message topic.
func CatchAllRule() Rule {
	return Rule{
		Name: "message",
		Match: func(Frame) (string, bool) {
			return eventbus.TopicMessage, true
		},
	}
}

// DefaultRules returns the rule table in evaluation order.
func DefaultRules() []Rule {
	return []Rule{TypeRule(), DownloadProgressRule(), CatchAllRule()}
}

// Route evaluates rules against f in order and returns one topic per match.
// The same topic can appear more than once.
func Route(rules []Rule, f Frame) []string {
	topics := make([]string, 0, len(rules))
	for _, rule := range rules {
		if topic, ok := rule.Match(f); ok {
			topics = append(topics, topic)
		}
	}
	return topics
}
