package bridge

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"shaderland/backend/shared"
)

// Widget is the UI element a control is rendered with.
type Widget int

const (
	WidgetText Widget = iota
	WidgetNumber
	WidgetSlider
	WidgetColor
	WidgetSelect
	WidgetPoint
	WidgetList
)

func (w Widget) String() string {
	switch w {
	case WidgetNumber:
		return "number"
	case WidgetSlider:
		return "slider"
	case WidgetColor:
		return "color"
	case WidgetSelect:
		return "select"
	case WidgetPoint:
		return "point"
	case WidgetList:
		return "list"
	default:
		return "text"
	}
}

// Binding is one bound control and its current value.
type Binding struct {
	Group   string
	Control shared.Control
	Widget  Widget
	Value   shared.ControlValue
}

// Name is the parameter name pushed to the renderer.
func (b Binding) Name() string { return b.Control.Name }

// SetError rejects an edit.
type SetError struct {
	Name   string
	Reason string
}

func (e *SetError) Error() string {
	return fmt.Sprintf("control %s: %s", e.Name, e.Reason)
}

// Panel holds the bound controls of one shader in config order.
type Panel struct {
	bindings []*Binding
	index    map[string]*Binding
}

// NewPanel binds every parameter of cfg. Parameter names must be unique
// across groups since the renderer sees one flat mapping.
func NewPanel(cfg shared.ControlConfig) (*Panel, error) {
	groups, err := cfg.Groups()
	if err != nil {
		return nil, err
	}

	p := &Panel{index: make(map[string]*Binding)}
	for _, g := range groups {
		for _, c := range g.Controls {
			if prev, dup := p.index[c.Name]; dup {
				return nil, &shared.ControlShapeError{
					Path:   g.Name + "." + c.Name,
					Reason: "parameter also defined in group " + prev.Group,
				}
			}
			b := &Binding{Group: g.Name, Control: c, Widget: widgetFor(c), Value: c.Value}
			p.bindings = append(p.bindings, b)
			p.index[c.Name] = b
		}
	}
	return p, nil
}

func widgetFor(c shared.Control) Widget {
	switch c.Kind() {
	case shared.ControlChoice:
		return WidgetSelect
	case shared.ControlBounded:
		return WidgetSlider
	}
	switch c.Value.Kind {
	case shared.ValueNumber:
		return WidgetNumber
	case shared.ValueNumbers:
		return WidgetPoint
	case shared.ValueStrings:
		return WidgetList
	}
	if IsHexColor(c.Value.Str) {
		return WidgetColor
	}
	return WidgetText
}

// Bindings returns a snapshot of the bound controls in order.
func (p *Panel) Bindings() []Binding {
	out := make([]Binding, len(p.bindings))
	for i, b := range p.bindings {
		out[i] = *b
	}
	return out
}

// Len is the number of bound controls.
func (p *Panel) Len() int { return len(p.bindings) }

// Value returns the current value of name.
func (p *Panel) Value(name string) (shared.ControlValue, bool) {
	b, ok := p.index[name]
	if !ok {
		return shared.ControlValue{}, false
	}
	return b.Value, true
}

// Params is the full name -> value mapping pushed to the renderer.
func (p *Panel) Params() map[string]interface{} {
	params := make(map[string]interface{}, len(p.bindings))
	for _, b := range p.bindings {
		params[b.Control.Name] = b.Value.Interface()
	}
	return params
}

// Set validates v against the control and stores it. Bounded values are
// clamped to their range; colors may be given by name.
func (p *Panel) Set(name string, v interface{}) error {
	b, ok := p.index[name]
	if !ok {
		return &SetError{Name: name, Reason: "no such control"}
	}

	value, err := shared.ControlValueOf(v)
	if err != nil {
		return &SetError{Name: name, Reason: err.Error()}
	}

	switch b.Widget {
	case WidgetSelect:
		for _, opt := range b.Control.Options {
			if opt.Value.Equal(value) {
				b.Value = value
				return nil
			}
		}
		return &SetError{Name: name, Reason: "not one of the options"}
	case WidgetSlider, WidgetNumber:
		if !value.IsNumeric() {
			return &SetError{Name: name, Reason: "want a number"}
		}
		value.Number = clamp(value.Number, b.Control.Min, b.Control.Max)
	case WidgetColor:
		if value.Kind != shared.ValueString {
			return &SetError{Name: name, Reason: "want a color"}
		}
		hex, err := NormalizeColor(value.Str)
		if err != nil {
			return &SetError{Name: name, Reason: err.Error()}
		}
		value.Str = hex
	case WidgetPoint:
		if value.Kind != shared.ValueNumbers || len(value.Numbers) != len(b.Value.Numbers) {
			return &SetError{Name: name, Reason: fmt.Sprintf("want %d numbers", len(b.Value.Numbers))}
		}
	default:
		if value.Kind != b.Value.Kind {
			return &SetError{Name: name, Reason: "value type changed"}
		}
	}

	b.Value = value
	return nil
}

// SetString parses text the way a command line or form field would supply it
// and then applies Set.
func (p *Panel) SetString(name, text string) error {
	b, ok := p.index[name]
	if !ok {
		return &SetError{Name: name, Reason: "no such control"}
	}

	var v interface{} = text
	switch {
	case b.Widget == WidgetSelect && b.Value.IsNumeric(),
		b.Widget == WidgetSlider, b.Widget == WidgetNumber:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return &SetError{Name: name, Reason: "want a number"}
		}
		v = f
	case b.Widget == WidgetPoint:
		parts := strings.Split(text, ",")
		nums := make([]float64, len(parts))
		for i, part := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return &SetError{Name: name, Reason: "want comma separated numbers"}
			}
			nums[i] = f
		}
		v = nums
	case b.Widget == WidgetList:
		v = strings.Split(text, ",")
	}
	return p.Set(name, v)
}

func clamp(f float64, lo, hi *float64) float64 {
	if lo != nil {
		f = math.Max(f, *lo)
	}
	if hi != nil {
		f = math.Min(f, *hi)
	}
	return f
}
