package ledger

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode is the canonical encoder shared by all ledger types. Core
// deterministic encoding (definite lengths, sorted map keys, shortest ints)
// is what makes encode(decode(bytes)) byte-exact against the chain's own
// serialization.
var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	em, err := opts.EncMode()
	if err != nil {
		panic("ledger: cbor enc mode: " + err.Error())
	}
	encMode = em
}

// MarshalCanonical encodes v with the canonical encoder.
func MarshalCanonical(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// UnmarshalCanonical decodes CBOR data into v.
func UnmarshalCanonical(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}
