// Package codec encodes the compound payloads that cross the guest
// boundary: event configurations going in, counter statistics coming out.
//
// Payloads are CBOR with Core Deterministic Encoding (RFC 8949 §4.2), so
// the same value always produces the same bytes and Decode(Encode(x))
// reproduces x exactly for every structure the runtime carries.
package codec

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/profiling-runtime/errors"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Guest payloads are untrusted; bound nesting and sizes.
		MaxNestedLevels:  16,
		MaxArrayElements: 4096,
		MaxMapPairs:      256,
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes v.
func Encode(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, errors.Serialization("encode payload", err)
	}
	return data, nil
}

// Decode deserializes data into v.
func Decode(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return errors.Serialization("decode payload", err)
	}
	return nil
}

// DecodeAs deserializes data into a new T.
func DecodeAs[T any](data []byte) (T, error) {
	var v T
	err := Decode(data, &v)
	return v, err
}

// Diagnose returns CBOR diagnostic notation for data, for logging.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
