// Package cidutil binds policy document bytes and declared digests to CIDs,
// the keys of the policy document store.
package cidutil

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"xdao.co/sigpolicy/digest"
	"xdao.co/sigpolicy/policy"
)

// ForBytes returns the CIDv1 (raw codec, sha2-256 multihash) of data.
func ForBytes(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// String is ForBytes rendered as a string, or "" on failure.
func String(data []byte) string {
	id, err := ForBytes(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// ForDigest returns the store key a document with digest d would have.
// Only sha256 digests map onto the store's CID contract.
func ForDigest(d policy.Digest) (cid.Cid, bool) {
	if d.Algorithm != digest.SHA256 || len(d.Value) != 32 {
		return cid.Undef, false
	}
	mh, err := digest.Multihash(d)
	if err != nil {
		return cid.Undef, false
	}
	return cid.NewCidV1(cid.Raw, mh), true
}
