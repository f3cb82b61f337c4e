package store

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/livecoll/internal/ir"
)

// marshalKey converts a primary key value to canonical JSON TEXT.
func marshalKey(key ir.IRValue) (string, error) {
	switch key.(type) {
	case ir.IRString, ir.IRInt:
	default:
		return "", errors.Newf("marshal key: primary key must be string or int, got %T", key)
	}
	data, err := ir.MarshalCanonical(key)
	if err != nil {
		return "", errors.Wrap(err, "marshal key")
	}
	return string(data), nil
}

// marshalRow converts a row to canonical JSON TEXT for storage.
func marshalRow(row ir.IRObject) (string, error) {
	data, err := ir.MarshalCanonical(row)
	if err != nil {
		return "", errors.Wrap(err, "marshal row")
	}
	return string(data), nil
}

func unmarshalKey(data string) (ir.IRValue, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal key")
	}
	return v, nil
}

// unmarshalRow parses canonical JSON TEXT into a row. Large integers keep
// full precision (ir decodes via json.Number).
func unmarshalRow(data string) (ir.IRObject, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal row")
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, errors.Newf("unmarshal row: expected object, got %T", v)
	}
	return obj, nil
}
