package policy

import (
	"bytes"
	"encoding/hex"
)

// Digest is the (algorithm, value) pair a signature declares for its policy document.
//
// Algorithm is a short lowercase name as produced by the digest package
// (e.g. "sha256", "sha3-256"). An unrecognized algorithm is kept verbatim so a
// validator can report it rather than lose it at parse time.
type Digest struct {
	Algorithm string
	Value     []byte
}

// NewDigest copies value so the returned Digest never aliases caller memory.
func NewDigest(algorithm string, value []byte) Digest {
	return Digest{Algorithm: algorithm, Value: append([]byte(nil), value...)}
}

// Equal reports whether both algorithm and value match.
func (d Digest) Equal(o Digest) bool {
	return d.Algorithm == o.Algorithm && bytes.Equal(d.Value, o.Value)
}

func (d Digest) String() string {
	return d.Algorithm + ":" + hex.EncodeToString(d.Value)
}

func (d Digest) clone() Digest {
	return NewDigest(d.Algorithm, d.Value)
}
