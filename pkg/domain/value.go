package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// PropertyKind names the variant held by a PropertyValue.
type PropertyKind string

const (
	KindBoolean PropertyKind = "boolean"
	KindEntity  PropertyKind = "entity"
	KindInteger PropertyKind = "integer"
	KindLong    PropertyKind = "long"
	KindString  PropertyKind = "string"
)

// Kinds lists every valid PropertyKind.
var Kinds = []PropertyKind{KindBoolean, KindEntity, KindInteger, KindLong, KindString}

// ParsePropertyKind validates a kind name (case-insensitive).
func ParsePropertyKind(s string) (PropertyKind, error) {
	k := PropertyKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown property type %q", ErrInvalidOperation, s)
}

// DocRef references another stored document, used by entity properties.
type DocRef struct {
	Type string `json:"type" yaml:"type" mapstructure:"type"`
	UUID string `json:"uuid" yaml:"uuid" mapstructure:"uuid"`
	Name string `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
}

func (r DocRef) String() string {
	if r.Name == "" {
		return r.Type + ":" + r.UUID
	}
	return r.Type + ":" + r.UUID + ":" + r.Name
}

// PropertyValue holds exactly one of boolean, entity, integer, long or string.
// The zero value is empty and is never stored by the edit operations.
type PropertyValue struct {
	kind    PropertyKind
	boolean bool
	entity  DocRef
	integer int32
	long    int64
	str     string
}

func BooleanValue(b bool) PropertyValue { return PropertyValue{kind: KindBoolean, boolean: b} }
func EntityValue(ref DocRef) PropertyValue { return PropertyValue{kind: KindEntity, entity: ref} }
func IntegerValue(i int32) PropertyValue { return PropertyValue{kind: KindInteger, integer: i} }
func LongValue(l int64) PropertyValue { return PropertyValue{kind: KindLong, long: l} }
func StringValue(s string) PropertyValue { return PropertyValue{kind: KindString, str: s} }
func (v PropertyValue) Kind() PropertyKind { return v.kind }
func (v PropertyValue) IsZero() bool { return v.kind == "" }
func (v PropertyValue) Equal(o PropertyValue) bool { return v == o }

func (v PropertyValue) AsBoolean() (bool, bool) { return v.boolean, v.kind == KindBoolean }
func (v PropertyValue) AsEntity() (DocRef, bool) { return v.entity, v.kind == KindEntity }
func (v PropertyValue) AsInteger() (int32, bool) { return v.integer, v.kind == KindInteger }
func (v PropertyValue) AsLong() (int64, bool) { return v.long, v.kind == KindLong }
func (v PropertyValue) AsString() (string, bool) { return v.str, v.kind == KindString }

// String formats the held value for display.
func (v PropertyValue) String() string {
	switch v.kind {
	case KindBoolean:
		return strconv.FormatBool(v.boolean)
	case KindEntity:
		return v.entity.String()
	case KindInteger:
		return strconv.FormatInt(int64(v.integer), 10)
	case KindLong:
		return strconv.FormatInt(v.long, 10)
	case KindString:
		return v.str
	}
	return ""
}

// NewPropertyValue builds a value of the given kind from a loosely typed input,
// as received from JSON bodies, tool arguments or command line flags.
func NewPropertyValue(kind PropertyKind, raw any) (PropertyValue, error) {
	invalid := func(cause error) (PropertyValue, error) {
		if cause != nil {
			return PropertyValue{}, fmt.Errorf("%w: %v is not a valid %s value: %v", ErrInvalidOperation, raw, kind, cause)
		}
		return PropertyValue{}, fmt.Errorf("%w: %v is not a valid %s value", ErrInvalidOperation, raw, kind)
	}

	switch kind {
	case KindBoolean:
		switch b := raw.(type) {
		case bool:
			return BooleanValue(b), nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return invalid(nil)
			}
			return BooleanValue(parsed), nil
		}
		return invalid(nil)

	case KindInteger:
		n, err := toInt64(raw)
		if err != nil {
			return invalid(err)
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return invalid(fmt.Errorf("out of range"))
		}
		return IntegerValue(int32(n)), nil

	case KindLong:
		n, err := toInt64(raw)
		if err != nil {
			return invalid(err)
		}
		return LongValue(n), nil

	case KindString:
		s, ok := raw.(string)
		if !ok {
			return invalid(nil)
		}
		return StringValue(s), nil

	case KindEntity:
		ref, err := toDocRef(raw)
		if err != nil {
			return invalid(err)
		}
		if ref.Type == "" || ref.UUID == "" {
			return invalid(fmt.Errorf("type and uuid are required"))
		}
		return EntityValue(ref), nil
	}

	return PropertyValue{}, fmt.Errorf("%w: unknown property type %q", ErrInvalidOperation, kind)
}

func toInt64(raw any) (int64, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, fmt.Errorf("not an integral number")
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	}
	return 0, fmt.Errorf("unsupported type %T", raw)
}

// toDocRef accepts a DocRef, a map (decoded with mapstructure) or a
// "type:uuid[:name]" string.
func toDocRef(raw any) (DocRef, error) {
	switch r := raw.(type) {
	case DocRef:
		return r, nil
	case *DocRef:
		if r == nil {
			return DocRef{}, fmt.Errorf("nil reference")
		}
		return *r, nil
	case string:
		parts := strings.SplitN(r, ":", 3)
		if len(parts) < 2 {
			return DocRef{}, fmt.Errorf("expected type:uuid[:name]")
		}
		ref := DocRef{Type: parts[0], UUID: parts[1]}
		if len(parts) == 3 {
			ref.Name = parts[2]
		}
		return ref, nil
	case map[string]any:
		var ref DocRef
		if err := mapstructure.Decode(r, &ref); err != nil {
			return DocRef{}, err
		}
		return ref, nil
	}
	return DocRef{}, fmt.Errorf("unsupported type %T", raw)
}

// propertyValueWire is the serialized form: an object with exactly one key set.
type propertyValueWire struct {
	Boolean *bool   `json:"boolean,omitempty" yaml:"boolean,omitempty"`
	Entity  *DocRef `json:"entity,omitempty" yaml:"entity,omitempty"`
	Integer *int32  `json:"integer,omitempty" yaml:"integer,omitempty"`
	Long    *int64  `json:"long,omitempty" yaml:"long,omitempty"`
	String  *string `json:"string,omitempty" yaml:"string,omitempty"`
}

func (v PropertyValue) toWire() *propertyValueWire {
	w := &propertyValueWire{}
	switch v.kind {
	case KindBoolean:
		w.Boolean = &v.boolean
	case KindEntity:
		w.Entity = &v.entity
	case KindInteger:
		w.Integer = &v.integer
	case KindLong:
		w.Long = &v.long
	case KindString:
		w.String = &v.str
	default:
		return nil
	}
	return w
}

func (w propertyValueWire) toValue() (PropertyValue, error) {
	var (
		v   PropertyValue
		set int
	)
	if w.Boolean != nil {
		v, set = BooleanValue(*w.Boolean), set+1
	}
	if w.Entity != nil {
		v, set = EntityValue(*w.Entity), set+1
	}
	if w.Integer != nil {
		v, set = IntegerValue(*w.Integer), set+1
	}
	if w.Long != nil {
		v, set = LongValue(*w.Long), set+1
	}
	if w.String != nil {
		v, set = StringValue(*w.String), set+1
	}
	if set != 1 {
		return PropertyValue{}, fmt.Errorf("property value must hold exactly one of %v, got %d", Kinds, set)
	}
	return v, nil
}

// MarshalJSON encodes the value as {"<kind>": <value>}; the empty value encodes as null.
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toWire())
}

func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = PropertyValue{}
		return nil
	}
	var w propertyValueWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	decoded, err := w.toValue()
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func (v PropertyValue) MarshalYAML() (any, error) {
	return v.toWire(), nil
}

func (v *PropertyValue) UnmarshalYAML(node *yaml.Node) error {
	var w propertyValueWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	decoded, err := w.toValue()
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
