package streamcable

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// structTagName is the struct tag key inspected when deriving a Schema (and
// converting to/from Value) from a Go type, in the style of the `glint`
// struct tag this package's reflection bridge is adapted from.
const structTagName = "streamcable"

// tagOptions is the comma-separated list of options following the field
// name in a struct tag, e.g. `streamcable:"note,omitempty"`.
type tagOptions []string

func parseFieldTag(tag string) (name string, opts tagOptions) {
	parts := strings.Split(tag, ",")
	return parts[0], tagOptions(parts[1:])
}

func (o tagOptions) has(name string) bool {
	for _, opt := range o {
		if opt == name {
			return true
		}
	}
	return false
}

var timeType = reflect.TypeOf(time.Time{})

// SchemaOf derives a Schema from a Go type via reflection: exported struct
// fields become Object fields (named by their streamcable tag, or their
// field name lowercased if untagged; "-" skips a field), slices and arrays
// become Array ([]byte/[N]byte become Buffer), map[string]V becomes
// Record, any other map becomes Map, pointers become Optional, and
// time.Time becomes Date. Fields tagged ",omitempty" are wrapped Optional
// regardless of their underlying kind.
func SchemaOf(t reflect.Type) (Schema, error) {
	if t == timeType {
		return Date(), nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return Boolean(), nil
	case reflect.Uint8:
		return Uint8Schema(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(), nil
	case reflect.Uint, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Uint(), nil
	case reflect.Float32, reflect.Float64:
		return Float(), nil
	case reflect.String:
		return StringSchema(), nil

	case reflect.Ptr:
		inner, err := SchemaOf(t.Elem())
		if err != nil {
			return Schema{}, err
		}
		return Optional(inner), nil

	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return Buffer(), nil
		}
		elem, err := SchemaOf(t.Elem())
		if err != nil {
			return Schema{}, err
		}
		return Array(elem), nil

	case reflect.Map:
		value, err := SchemaOf(t.Elem())
		if err != nil {
			return Schema{}, err
		}
		if t.Key().Kind() == reflect.String {
			return Record(value), nil
		}
		key, err := SchemaOf(t.Key())
		if err != nil {
			return Schema{}, err
		}
		return MapSchema(key, value), nil

	case reflect.Struct:
		fields, err := structFields(t)
		if err != nil {
			return Schema{}, err
		}
		objFields := make([]ObjectField, 0, len(fields))
		for _, f := range fields {
			fs, err := SchemaOf(f.Type)
			if err != nil {
				return Schema{}, err
			}
			if f.optional {
				fs = Optional(fs)
			}
			objFields = append(objFields, Field(f.name, fs))
		}
		return Object(objFields...), nil

	default:
		return Schema{}, unsupportedErr("no schema mapping for Go kind %s", t.Kind())
	}
}

type structField struct {
	name     string
	index    int
	Type     reflect.Type
	optional bool
}

// structFields resolves a struct type's exported, tag-visible fields in
// declaration order (not sorted - Object's constructor sorts them).
func structFields(t reflect.Type) ([]structField, error) {
	out := make([]structField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		name, opts := parseFieldTag(f.Tag.Get(structTagName))
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		out = append(out, structField{
			name:     name,
			index:    i,
			Type:     f.Type,
			optional: opts.has("omitempty"),
		})
	}
	return out, nil
}

// ValueOf converts rv, a Go value whose type SchemaOf can describe, into a
// Value. Pointers convert to Null when nil, matching the Optional schema
// SchemaOf derives for pointer fields.
func ValueOf(rv reflect.Value) (Value, error) {
	if rv.Type() == timeType {
		t := rv.Interface().(time.Time)
		return DateValue(t.UTC().Format(time.RFC3339Nano)), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return BoolValue(rv.Bool()), nil
	case reflect.Uint8:
		return Uint8Value(uint8(rv.Uint())), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(rv.Int()), nil
	case reflect.Uint, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return UintValue(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return FloatValue(rv.Float()), nil
	case reflect.String:
		return StringValue(rv.String()), nil

	case reflect.Ptr:
		if rv.IsNil() {
			return NullValue(), nil
		}
		return ValueOf(rv.Elem())

	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return BytesValue(b), nil
		}
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := ValueOf(rv.Index(i))
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return ArrayValue(items), nil

	case reflect.Map:
		keys := rv.MapKeys()
		if rv.Type().Key().Kind() == reflect.String {
			fields := make(map[string]Value, len(keys))
			for _, k := range keys {
				v, err := ValueOf(rv.MapIndex(k))
				if err != nil {
					return Value{}, err
				}
				fields[k.String()] = v
			}
			return ObjectValue(fields), nil
		}
		sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface()) })
		entries := make([]MapEntry, 0, len(keys))
		for _, k := range keys {
			kv, err := ValueOf(k)
			if err != nil {
				return Value{}, err
			}
			vv, err := ValueOf(rv.MapIndex(k))
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: kv, Value: vv})
		}
		return MapValue(entries), nil

	case reflect.Struct:
		fields, err := structFields(rv.Type())
		if err != nil {
			return Value{}, err
		}
		out := make(map[string]Value, len(fields))
		for _, f := range fields {
			v, err := ValueOf(rv.Field(f.index))
			if err != nil {
				return Value{}, err
			}
			out[f.name] = v
		}
		return ObjectValue(out), nil

	default:
		return Value{}, unsupportedErr("no value mapping for Go kind %s", rv.Kind())
	}
}

// LoadInto populates target, a pointer to a value whose type SchemaOf
// would describe the same way, from a decoded Value. It is the inverse of
// ValueOf paired with SchemaOf, except for Go array types ([N]T), for
// which it returns a KindUnsupported error.
func LoadInto(target any, value Value) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return unsupportedErr("LoadInto requires a non-nil pointer")
	}
	return loadValue(rv.Elem(), value)
}

func loadValue(dst reflect.Value, value Value) error {
	if dst.Type() == timeType {
		s, ok := value.AsDate()
		if !ok {
			return validationErr("expected date for time.Time field")
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return invalidDataErr("invalid date %q: %v", s, err)
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	}

	switch dst.Kind() {
	case reflect.Bool:
		b, ok := value.AsBool()
		if !ok {
			return validationErr("expected bool")
		}
		dst.SetBool(b)
	case reflect.Uint8:
		u, ok := value.AsUint8()
		if !ok {
			return validationErr("expected uint8")
		}
		dst.SetUint(uint64(u))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := value.AsInt()
		if !ok {
			return validationErr("expected int")
		}
		dst.SetInt(i)
	case reflect.Uint, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, ok := value.AsUint()
		if !ok {
			return validationErr("expected uint")
		}
		dst.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, ok := value.AsFloat()
		if !ok {
			return validationErr("expected float")
		}
		dst.SetFloat(f)
	case reflect.String:
		s, ok := value.AsString()
		if !ok {
			return validationErr("expected string")
		}
		dst.SetString(s)

	case reflect.Ptr:
		if value.IsNull() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		dst.Set(reflect.New(dst.Type().Elem()))
		return loadValue(dst.Elem(), value)

	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 {
			b, ok := value.AsBytes()
			if !ok {
				return validationErr("expected bytes")
			}
			out := make([]byte, len(b))
			copy(out, b)
			dst.SetBytes(out)
			return nil
		}
		items, ok := value.AsArray()
		if !ok {
			return validationErr("expected array")
		}
		out := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			if err := loadValue(out.Index(i), item); err != nil {
				return wrapErr(KindValidation, "array element "+strconv.Itoa(i), err)
			}
		}
		dst.Set(out)

	case reflect.Map:
		dst.Set(reflect.MakeMap(dst.Type()))
		if dst.Type().Key().Kind() == reflect.String {
			obj, ok := value.AsObject()
			if !ok {
				return validationErr("expected object")
			}
			for k, fv := range obj {
				ev := reflect.New(dst.Type().Elem()).Elem()
				if err := loadValue(ev, fv); err != nil {
					return wrapErr(KindValidation, "map entry "+k, err)
				}
				dst.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), ev)
			}
			return nil
		}
		entries, ok := value.AsMap()
		if !ok {
			return validationErr("expected map")
		}
		for _, e := range entries {
			kv := reflect.New(dst.Type().Key()).Elem()
			if err := loadValue(kv, e.Key); err != nil {
				return err
			}
			vv := reflect.New(dst.Type().Elem()).Elem()
			if err := loadValue(vv, e.Value); err != nil {
				return err
			}
			dst.SetMapIndex(kv, vv)
		}

	case reflect.Struct:
		obj, ok := value.AsObject()
		if !ok {
			return validationErr("expected object")
		}
		fields, err := structFields(dst.Type())
		if err != nil {
			return err
		}
		for _, f := range fields {
			fv, present := obj[f.name]
			if !present {
				continue
			}
			if err := loadValue(dst.Field(f.index), fv); err != nil {
				return wrapErr(KindValidation, "field "+f.name, err)
			}
		}

	default:
		return unsupportedErr("no decode mapping for Go kind %s", dst.Kind())
	}
	return nil
}
