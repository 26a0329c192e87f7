package shared

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ControlConfig is the grouped control schema of a shader:
// group name -> parameter name -> Control.
//
// The document is kept as compacted JSON so that group and parameter order
// survive every hop (API, DynamoDB, SQLite) byte for byte. Groups returns the
// typed, shape-checked view used when binding controls.
type ControlConfig struct {
	raw json.RawMessage
}

// ParseControlConfig validates data as JSON and wraps it. Any syntactically
// valid JSON is accepted; shape is only checked by Groups.
func ParseControlConfig(data []byte) (ControlConfig, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ControlConfig{}, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return ControlConfig{}, err
	}
	return ControlConfig{raw: buf.Bytes()}, nil
}

// MustControlConfig is ParseControlConfig for literals known to be valid.
func MustControlConfig(s string) ControlConfig {
	c, err := ParseControlConfig([]byte(s))
	if err != nil {
		panic("shared: invalid control config literal: " + err.Error())
	}
	return c
}

// IsZero reports whether the config is absent.
func (c ControlConfig) IsZero() bool {
	return len(c.raw) == 0
}

// Raw returns the compacted JSON document, or nil when absent.
func (c ControlConfig) Raw() json.RawMessage {
	return c.raw
}

// String returns the JSON text; "null" when absent.
func (c ControlConfig) String() string {
	if c.IsZero() {
		return "null"
	}
	return string(c.raw)
}

func (c ControlConfig) MarshalJSON() ([]byte, error) {
	if c.IsZero() {
		return []byte("null"), nil
	}
	return c.raw, nil
}

func (c *ControlConfig) UnmarshalJSON(data []byte) error {
	parsed, err := ParseControlConfig(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalDynamoDBAttributeValue stores the document as a string attribute;
// DynamoDB maps do not keep key order.
func (c ControlConfig) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	if c.IsZero() {
		return &types.AttributeValueMemberNULL{Value: true}, nil
	}
	return &types.AttributeValueMemberS{Value: string(c.raw)}, nil
}

func (c *ControlConfig) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberNULL:
		*c = ControlConfig{}
		return nil
	case *types.AttributeValueMemberS:
		parsed, err := ParseControlConfig([]byte(v.Value))
		if err != nil {
			return fmt.Errorf("decode control config: %w", err)
		}
		*c = parsed
		return nil
	default:
		return fmt.Errorf("control config: unexpected attribute type %T", av)
	}
}

// Value implements driver.Valuer for TEXT columns.
func (c ControlConfig) Value() (driver.Value, error) {
	if c.IsZero() {
		return nil, nil
	}
	return string(c.raw), nil
}

// Scan implements sql.Scanner.
func (c *ControlConfig) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = ControlConfig{}
		return nil
	case string:
		return c.UnmarshalJSON([]byte(v))
	case []byte:
		return c.UnmarshalJSON(v)
	default:
		return fmt.Errorf("control config: cannot scan %T", src)
	}
}

// ControlKind is the widget family a control binds to.
type ControlKind int

const (
	// ControlPlain is a value without bounds or options: numbers, colors,
	// strings and arrays.
	ControlPlain ControlKind = iota
	// ControlBounded is a numeric value with a min and/or max.
	ControlBounded
	// ControlChoice is any control carrying options.
	ControlChoice
)

func (k ControlKind) String() string {
	switch k {
	case ControlBounded:
		return "bounded"
	case ControlChoice:
		return "choice"
	default:
		return "plain"
	}
}

// ValueKind identifies which member of ControlValue is set.
type ValueKind int

const (
	ValueNumber ValueKind = iota
	ValueNumbers
	ValueString
	ValueStrings
)

// ControlValue is one of number, []number, string or []string.
type ControlValue struct {
	Kind    ValueKind
	Number  float64
	Numbers []float64
	Str     string
	Strs    []string
}

// NumberValue returns a numeric ControlValue.
func NumberValue(f float64) ControlValue { return ControlValue{Kind: ValueNumber, Number: f} }

// StringValue returns a string ControlValue.
func StringValue(s string) ControlValue { return ControlValue{Kind: ValueString, Str: s} }

// IsNumeric reports whether the value is a single number.
func (v ControlValue) IsNumeric() bool { return v.Kind == ValueNumber }

// Interface returns the value as a plain Go value suitable for JSON encoding.
func (v ControlValue) Interface() interface{} {
	switch v.Kind {
	case ValueNumbers:
		return append([]float64(nil), v.Numbers...)
	case ValueString:
		return v.Str
	case ValueStrings:
		return append([]string(nil), v.Strs...)
	default:
		return v.Number
	}
}

// Equal compares two values of the same kind.
func (v ControlValue) Equal(o ControlValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueNumber:
		return v.Number == o.Number
	case ValueString:
		return v.Str == o.Str
	case ValueNumbers:
		if len(v.Numbers) != len(o.Numbers) {
			return false
		}
		for i := range v.Numbers {
			if v.Numbers[i] != o.Numbers[i] {
				return false
			}
		}
		return true
	default:
		if len(v.Strs) != len(o.Strs) {
			return false
		}
		for i := range v.Strs {
			if v.Strs[i] != o.Strs[i] {
				return false
			}
		}
		return true
	}
}

func (v ControlValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *ControlValue) UnmarshalJSON(data []byte) error {
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	parsed, err := ControlValueOf(decoded)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ControlValueOf converts a decoded JSON value (or an equivalent Go value) to a
// ControlValue.
func ControlValueOf(x interface{}) (ControlValue, error) {
	switch t := x.(type) {
	case float64:
		return NumberValue(t), nil
	case float32:
		return NumberValue(float64(t)), nil
	case int:
		return NumberValue(float64(t)), nil
	case int64:
		return NumberValue(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return ControlValue{}, err
		}
		return NumberValue(f), nil
	case string:
		return StringValue(t), nil
	case []float64:
		return ControlValue{Kind: ValueNumbers, Numbers: append([]float64(nil), t...)}, nil
	case []string:
		return ControlValue{Kind: ValueStrings, Strs: append([]string(nil), t...)}, nil
	case []interface{}:
		return controlValueOfList(t)
	default:
		return ControlValue{}, fmt.Errorf("unsupported value type %T", x)
	}
}

func controlValueOfList(items []interface{}) (ControlValue, error) {
	if len(items) == 0 {
		return ControlValue{Kind: ValueNumbers, Numbers: []float64{}}, nil
	}
	switch items[0].(type) {
	case float64:
		nums := make([]float64, len(items))
		for i, it := range items {
			f, ok := it.(float64)
			if !ok {
				return ControlValue{}, errors.New("mixed array value")
			}
			nums[i] = f
		}
		return ControlValue{Kind: ValueNumbers, Numbers: nums}, nil
	case string:
		strs := make([]string, len(items))
		for i, it := range items {
			s, ok := it.(string)
			if !ok {
				return ControlValue{}, errors.New("mixed array value")
			}
			strs[i] = s
		}
		return ControlValue{Kind: ValueStrings, Strs: strs}, nil
	default:
		return ControlValue{}, fmt.Errorf("unsupported array element type %T", items[0])
	}
}

// ControlOption is one label -> value entry of a discrete-choice control.
type ControlOption struct {
	Label string
	Value ControlValue
}

// Control is the typed form of one parameter descriptor.
type Control struct {
	Name  string
	Label string
	Value ControlValue
	Min   *float64
	Max   *float64
	Step  *float64
	// Options is non-nil whenever the descriptor carried an "options" key.
	Options []ControlOption
}

// Kind derives the widget family: options win, then numeric bounds.
func (c Control) Kind() ControlKind {
	if c.Options != nil {
		return ControlChoice
	}
	if c.Value.IsNumeric() && (c.Min != nil || c.Max != nil) {
		return ControlBounded
	}
	return ControlPlain
}

// DisplayLabel returns Label, falling back to the parameter name.
func (c Control) DisplayLabel() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

// ControlGroup is one folder of controls, in document order.
type ControlGroup struct {
	Name     string
	Controls []Control
}

// ControlShapeError describes where a config deviates from the control schema.
type ControlShapeError struct {
	Path   string
	Reason string
}

func (e *ControlShapeError) Error() string {
	if e.Path == "" {
		return "control config: " + e.Reason
	}
	return fmt.Sprintf("control config %s: %s", e.Path, e.Reason)
}

// Keys returns the top-level group names in document order. A config that
// is not an object has no keys.
func (c ControlConfig) Keys() []string {
	if c.IsZero() || firstByte(c.raw) != '{' {
		return nil
	}
	var keys []string
	_ = walkObject(c.raw, "", func(key string, _ json.RawMessage) error {
		keys = append(keys, key)
		return nil
	})
	return keys
}

// Groups decodes the config into ordered, typed groups, checking shape.
func (c ControlConfig) Groups() ([]ControlGroup, error) {
	if c.IsZero() {
		return nil, nil
	}
	var groups []ControlGroup
	err := walkObject(c.raw, "", func(groupName string, groupRaw json.RawMessage) error {
		group := ControlGroup{Name: groupName}
		err := walkObject(groupRaw, groupName, func(paramName string, paramRaw json.RawMessage) error {
			ctrl, err := decodeControl(groupName+"."+paramName, paramName, paramRaw)
			if err != nil {
				return err
			}
			group.Controls = append(group.Controls, ctrl)
			return nil
		})
		if err != nil {
			return err
		}
		groups = append(groups, group)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

type controlDescriptor struct {
	Value   json.RawMessage `json:"value"`
	Min     *float64        `json:"min"`
	Max     *float64        `json:"max"`
	Step    *float64        `json:"step"`
	Options json.RawMessage `json:"options"`
	Label   *string         `json:"label"`
}

func decodeControl(path, name string, raw json.RawMessage) (Control, error) {
	if firstByte(raw) != '{' {
		return Control{}, &ControlShapeError{Path: path, Reason: "control must be an object"}
	}
	var desc controlDescriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return Control{}, &ControlShapeError{Path: path, Reason: err.Error()}
	}
	if len(desc.Value) == 0 || bytes.Equal(desc.Value, []byte("null")) {
		return Control{}, &ControlShapeError{Path: path, Reason: "missing value"}
	}

	ctrl := Control{Name: name, Min: desc.Min, Max: desc.Max, Step: desc.Step}
	if err := json.Unmarshal(desc.Value, &ctrl.Value); err != nil {
		return Control{}, &ControlShapeError{Path: path + ".value", Reason: err.Error()}
	}
	if desc.Label != nil {
		ctrl.Label = *desc.Label
	}
	hasBounds := desc.Min != nil || desc.Max != nil || desc.Step != nil
	if hasBounds && (ctrl.Value.Kind == ValueString || ctrl.Value.Kind == ValueStrings) {
		return Control{}, &ControlShapeError{Path: path, Reason: "numeric bounds on a non-numeric value"}
	}

	if len(desc.Options) > 0 && !bytes.Equal(desc.Options, []byte("null")) {
		ctrl.Options = []ControlOption{}
		err := walkObject(desc.Options, path+".options", func(label string, optRaw json.RawMessage) error {
			var v ControlValue
			if err := json.Unmarshal(optRaw, &v); err != nil {
				return &ControlShapeError{Path: path + ".options." + label, Reason: err.Error()}
			}
			ctrl.Options = append(ctrl.Options, ControlOption{Label: label, Value: v})
			return nil
		})
		if err != nil {
			return Control{}, err
		}
	}
	return ctrl, nil
}

// walkObject visits the members of a JSON object in document order. Duplicate
// keys are rejected.
func walkObject(raw json.RawMessage, path string, visit func(key string, value json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return &ControlShapeError{Path: path, Reason: err.Error()}
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return &ControlShapeError{Path: path, Reason: "expected an object"}
	}

	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return &ControlShapeError{Path: path, Reason: err.Error()}
		}
		key, _ := tok.(string)
		if seen[key] {
			return &ControlShapeError{Path: joinPath(path, key), Reason: "duplicate key"}
		}
		seen[key] = true

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return &ControlShapeError{Path: joinPath(path, key), Reason: err.Error()}
		}
		if err := visit(key, value); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return &ControlShapeError{Path: path, Reason: err.Error()}
	}
	return nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func firstByte(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}
