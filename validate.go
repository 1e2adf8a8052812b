package streamcable

import "strconv"

// Validate reports whether value is structurally acceptable for schema s.
// It is called before encoding; its failure is the only legal source of
// pre-I/O errors, since encoding itself is a pure function of a (schema,
// value) pair that has already validated.
func (s Schema) Validate(value Value) error {
	switch s.kind {
	case KindBoolean:
		if value.kind != ValueBool {
			return validationErr("expected boolean, got %v", value.kind)
		}
	case KindUint8:
		if value.kind != ValueUint8 {
			return validationErr("expected uint8, got %v", value.kind)
		}
	case KindUint:
		if value.kind != ValueUint {
			return validationErr("expected uint, got %v", value.kind)
		}
	case KindInt:
		if value.kind != ValueInt {
			return validationErr("expected int, got %v", value.kind)
		}
	case KindFloat:
		if value.kind != ValueFloat {
			return validationErr("expected float, got %v", value.kind)
		}
	case KindString:
		if value.kind != ValueString {
			return validationErr("expected string, got %v", value.kind)
		}
	case KindU8Array, KindBuffer:
		if value.kind != ValueBytes {
			return validationErr("expected bytes, got %v", value.kind)
		}
	case KindDate:
		if value.kind != ValueDate {
			return validationErr("expected date, got %v", value.kind)
		}
	case KindBigint:
		if value.kind != ValueBigint {
			return validationErr("expected bigint, got %v", value.kind)
		}
	case KindReadableStream:
		if value.kind != ValueByteStream {
			return validationErr("expected readable stream, got %v", value.kind)
		}
	case KindAny:
		// Any accepts every value.
	case KindArray:
		items, ok := value.AsArray()
		if !ok {
			return validationErr("expected array, got %v", value.kind)
		}
		for i, item := range items {
			if err := s.elem.Validate(item); err != nil {
				return wrapErr(KindValidation, "array element "+strconv.Itoa(i), err)
			}
		}
	case KindObject:
		obj, ok := value.AsObject()
		if !ok {
			return validationErr("expected object, got %v", value.kind)
		}
		for _, f := range s.fields {
			fv, present := obj[f.Name]
			if !present {
				return validationErr("missing field %q", f.Name)
			}
			if err := f.Schema.Validate(fv); err != nil {
				return wrapErr(KindValidation, "field "+f.Name, err)
			}
		}
	case KindMap:
		entries, ok := value.AsMap()
		if !ok {
			return validationErr("expected map, got %v", value.kind)
		}
		for i, e := range entries {
			if err := s.key.Validate(e.Key); err != nil {
				return wrapErr(KindValidation, "map key "+strconv.Itoa(i), err)
			}
			if err := s.value.Validate(e.Value); err != nil {
				return wrapErr(KindValidation, "map value "+strconv.Itoa(i), err)
			}
		}
	case KindNullable:
		if value.IsNull() {
			return nil
		}
		if s.elem == nil {
			return validationErr("expected null")
		}
		return s.elem.Validate(value)
	case KindOptional:
		if value.IsNull() {
			return nil
		}
		return s.elem.Validate(value)
	case KindUnion:
		if _, err := s.matchUnion(value); err != nil {
			return err
		}
	case KindPromise:
		if value.kind != ValueFuture {
			return validationErr("expected future, got %v", value.kind)
		}
	case KindIterator:
		if value.kind != ValueIterator {
			return validationErr("expected iterator, got %v", value.kind)
		}
	case KindRecord:
		obj, ok := value.AsObject()
		if !ok {
			return validationErr("expected record (string-keyed object), got %v", value.kind)
		}
		for k, fv := range obj {
			if err := s.elem.Validate(fv); err != nil {
				return wrapErr(KindValidation, "record entry "+k, err)
			}
		}
	default:
		return unsupportedErr("unknown schema kind %v", s.kind)
	}
	return nil
}

// matchUnion returns the index of the first alternative that validates v,
// in declaration order: the first successful validation determines the
// selected index.
func (s Schema) matchUnion(v Value) (int, error) {
	for i, alt := range s.alts {
		if alt.Validate(v) == nil {
			return i, nil
		}
	}
	return 0, validationErr("value does not match any alternative in union")
}

