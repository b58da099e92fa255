package store

import (
	"github.com/fxamacker/cbor/v2"
)

// Records use Core Deterministic Encoding so identical state always produces
// identical bytes. Keys and hashes encode as byte strings.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes a record.
func Encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Decode deserializes a record into v.
func Decode(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
