// Package digest computes and compares policy document digests and maps
// algorithm names between the CAdES (OID), XAdES (URI) and JAdES (JOSE)
// vocabularies.
package digest

import (
	"crypto/sha1" //nolint:gosec // legacy policies still declare SHA-1
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"hash"

	"github.com/multiformats/go-multihash"
	mhcore "github.com/multiformats/go-multihash/core"
	"golang.org/x/crypto/sha3"

	"xdao.co/sigpolicy/policy"
)

type Algorithm = string

const (
	SHA1    Algorithm = "sha1"
	SHA224  Algorithm = "sha224"
	SHA256  Algorithm = "sha256"
	SHA384  Algorithm = "sha384"
	SHA512  Algorithm = "sha512"
	SHA3224 Algorithm = "sha3-224"
	SHA3256 Algorithm = "sha3-256"
	SHA3384 Algorithm = "sha3-384"
	SHA3512 Algorithm = "sha3-512"
)

type algInfo struct {
	newHash func() hash.Hash
	oid     string
	uri     string
	jose    string
	mhCode uint64
}

var algorithms = map[Algorithm]algInfo{
	SHA1: {
		newHash: sha1.New,
		oid:     "1.3.14.3.2.26",
		uri:     "http://www.w3.org/2000/09/xmldsig#sha1",
		jose:    "S1",
		mhCode:  multihash.SHA1,
	},
	SHA224: {
		newHash: sha256.New224,
		oid:     "2.16.840.1.101.3.4.2.4",
		uri:     "http://www.w3.org/2001/04/xmldsig-more#sha224",
		jose:    "S224",
		mhCode:  mhcore.SHA2_224,
	},
	SHA256: {
		newHash: sha256.New,
		oid:     "2.16.840.1.101.3.4.2.1",
		uri:     "http://www.w3.org/2001/04/xmlenc#sha256",
		jose:    "S256",
		mhCode:  multihash.SHA2_256,
	},
	SHA384: {
		newHash: sha512.New384,
		oid:     "2.16.840.1.101.3.4.2.2",
		uri:     "http://www.w3.org/2001/04/xmldsig-more#sha384",
		jose:    "S384",
		mhCode:  mhcore.SHA2_384,
	},
	SHA512: {
		newHash: sha512.New,
		oid:     "2.16.840.1.101.3.4.2.3",
		uri:     "http://www.w3.org/2001/04/xmlenc#sha512",
		jose:    "S512",
		mhCode:  multihash.SHA2_512,
	},
	SHA3224: {
		newHash: sha3.New224,
		oid:     "2.16.840.1.101.3.4.2.7",
		uri:     "http://www.w3.org/2007/05/xmldsig-more#sha3-224",
		jose:    "S3-224",
		mhCode:  multihash.SHA3_224,
	},
	SHA3256: {
		newHash: sha3.New256,
		oid:     "2.16.840.1.101.3.4.2.8",
		uri:     "http://www.w3.org/2007/05/xmldsig-more#sha3-256",
		jose:    "S3-256",
		mhCode:  multihash.SHA3_256,
	},
	SHA3384: {
		newHash: sha3.New384,
		oid:     "2.16.840.1.101.3.4.2.9",
		uri:     "http://www.w3.org/2007/05/xmldsig-more#sha3-384",
		jose:    "S3-384",
		mhCode:  multihash.SHA3_384,
	},
	SHA3512: {
		newHash: sha3.New512,
		oid:     "2.16.840.1.101.3.4.2.10",
		uri:     "http://www.w3.org/2007/05/xmldsig-more#sha3-512",
		jose:    "S3-512",
		mhCode:  multihash.SHA3_512,
	},
}

// Supported reports whether alg can be computed.
func Supported(alg Algorithm) bool {
	_, ok := algorithms[alg]
	return ok
}

// Compute digests data with alg.
func Compute(alg Algorithm, data []byte) (policy.Digest, error) {
	info, ok := algorithms[alg]
	if !ok {
		return policy.Digest{}, policy.NewError(policy.KindDigest, "DIGEST-ALG-001", "unsupported digest algorithm "+alg)
	}
	h := info.newHash()
	_, _ = h.Write(data)
	return policy.Digest{Algorithm: alg, Value: h.Sum(nil)}, nil
}

// Matches recomputes the digest of data with expected.Algorithm and compares
// it against expected.Value in constant time.
func Matches(expected policy.Digest, data []byte) (bool, error) {
	got, err := Compute(expected.Algorithm, data)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got.Value, expected.Value) == 1, nil
}

// Multihash encodes d as a multihash. It fails for algorithms multihash has no code for.
func Multihash(d policy.Digest) (multihash.Multihash, error) {
	info, ok := algorithms[d.Algorithm]
	if !ok || info.mhCode == 0 {
		return nil, policy.NewError(policy.KindDigest, "DIGEST-MH-001", "no multihash code for "+d.Algorithm)
	}
	mh, err := multihash.Encode(d.Value, info.mhCode)
	if err != nil {
		return nil, policy.WrapError(policy.KindDigest, "DIGEST-MH-002", "multihash encode failed", err)
	}
	return mh, nil
}

// IsZeroHashValue reports whether a declared digest value is the zero-hash
// marker: empty, a single zero byte, or the ASCII digit "0".
func IsZeroHashValue(v []byte) bool {
	switch len(v) {
	case 0:
		return true
	case 1:
		return v[0] == 0 || v[0] == '0'
	default:
		return false
	}
}
