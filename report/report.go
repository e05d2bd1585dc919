package report

import (
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"github.com/gowebpki/jcs"
	"github.com/ipfs/go-cid"

	"xdao.co/sigpolicy/cidutil"
	"xdao.co/sigpolicy/policy"
	"xdao.co/sigpolicy/validate"
)

type Digest struct {
	Algorithm string `json:"algorithm" cbor:"algorithm"`
	// Value is lowercase hex.
	Value string `json:"value" cbor:"value"`
}

type Report struct {
	Identifier string `json:"identifier" cbor:"identifier"`
	Implicit   bool   `json:"implicit" cbor:"implicit"`
	ZeroHash   bool   `json:"zeroHash" cbor:"zeroHash"`
	Status     string `json:"status" cbor:"status"`
	OK         bool   `json:"ok" cbor:"ok"`
	Source     string `json:"source,omitempty" cbor:"source,omitempty"`

	DeclaredDigest *Digest `json:"declaredDigest,omitempty" cbor:"declaredDigest,omitempty"`
	ComputedDigest *Digest `json:"computedDigest,omitempty" cbor:"computedDigest,omitempty"`
	ContentCID     string  `json:"contentCID,omitempty" cbor:"contentCID,omitempty"`
	ContentLength  int     `json:"contentLength,omitempty" cbor:"contentLength,omitempty"`

	URL                     string   `json:"url,omitempty" cbor:"url,omitempty"`
	Description             string   `json:"description,omitempty" cbor:"description,omitempty"`
	Notice                  string   `json:"notice,omitempty" cbor:"notice,omitempty"`
	DocumentationReferences []string `json:"documentationReferences,omitempty" cbor:"documentationReferences,omitempty"`

	Reasons []string `json:"reasons" cbor:"reasons"`
}

func toDigest(d policy.Digest) *Digest {
	return &Digest{Algorithm: d.Algorithm, Value: hex.EncodeToString(d.Value)}
}

// FromDescriptor projects a descriptor without any validation outcome.
func FromDescriptor(d *policy.Descriptor) Report {
	out := Report{
		Identifier: d.Identifier(),
		Implicit:   d.IsImplicit(),
		ZeroHash:   d.IsZeroHash(),
		Reasons:    []string{},
	}
	if dg, ok := d.Digest(); ok {
		out.DeclaredDigest = toDigest(dg)
	}
	if doc, ok := d.Content(); ok {
		out.ContentLength = doc.Len()
	}
	out.URL, _ = d.URL()
	out.Description, _ = d.Description()
	out.Notice, _ = d.Notice()
	if refs, ok := d.DocumentationReferences(); ok {
		out.DocumentationReferences = refs
	}
	return out
}

// FromResult projects a validation result.
func FromResult(r *validate.Result) Report {
	out := FromDescriptor(r.Descriptor)
	out.Status = string(r.Status)
	out.OK = r.OK()
	out.Source = string(r.Source)
	if r.Computed.Algorithm != "" {
		out.ComputedDigest = toDigest(r.Computed)
	}
	if r.ContentCID.Defined() {
		out.ContentCID = r.ContentCID.String()
	}
	out.Reasons = append(out.Reasons, r.Reasons...)
	return out
}

// CanonicalJSON renders r in RFC 8785 canonical form.
func CanonicalJSON(r Report) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

// CID identifies r by the CIDv1 of its canonical JSON.
func CID(r Report) (cid.Cid, error) {
	canon, err := CanonicalJSON(r)
	if err != nil {
		return cid.Undef, err
	}
	return cidutil.ForBytes(canon)
}

var cborEnc = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// EncodeCBOR renders r with core deterministic CBOR encoding.
func EncodeCBOR(r Report) ([]byte, error) {
	return cborEnc.Marshal(r)
}

// DecodeCBOR parses a report produced by EncodeCBOR.
func DecodeCBOR(b []byte) (Report, error) {
	var r Report
	if err := cbor.Unmarshal(b, &r); err != nil {
		return Report{}, err
	}
	if r.Reasons == nil {
		r.Reasons = []string{}
	}
	return r, nil
}
