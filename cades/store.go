package cades

import (
	"encoding/asn1"

	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"

	"xdao.co/sigpolicy/policy"
)

// PolicyStore is the decoded signature-policy-store attribute.
//
//	SignaturePolicyStore ::= SEQUENCE {
//	    spDocSpec   SPDocSpecification,   -- CHOICE { oid OBJECT IDENTIFIER, uri IA5String }
//	    spDocument  SignaturePolicyDocument }
//
//	SignaturePolicyDocument ::= CHOICE {
//	    sigPolicyEncoded   OCTET STRING,
//	    sigPolicyLocalURI  IA5String }
type PolicyStore struct {
	// DocSpec names the technical specification of the document (OID or URI).
	DocSpec string
	// Encoded holds the embedded policy document, if present.
	Encoded []byte
	// LocalURI points at a locally available copy when the document is not embedded.
	LocalURI string
}

// ParseStore decodes a DER SignaturePolicyStore attribute value.
func ParseStore(der []byte) (*PolicyStore, error) {
	s := cryptobyte.String(der)
	var seq cryptobyte.String
	if !s.ReadASN1(&seq, casn1.SEQUENCE) || !s.Empty() {
		return nil, decodeErr("CADES-STORE-001", "expected SignaturePolicyStore SEQUENCE")
	}

	out := &PolicyStore{}
	switch {
	case seq.PeekASN1Tag(casn1.OBJECT_IDENTIFIER):
		var oid asn1.ObjectIdentifier
		if !seq.ReadASN1ObjectIdentifier(&oid) {
			return nil, decodeErr("CADES-STORE-002", "malformed spDocSpec")
		}
		out.DocSpec = oid.String()
	case seq.PeekASN1Tag(casn1.IA5String):
		var uri []byte
		if !seq.ReadASN1Bytes(&uri, casn1.IA5String) {
			return nil, decodeErr("CADES-STORE-002", "malformed spDocSpec")
		}
		out.DocSpec = string(uri)
	default:
		return nil, decodeErr("CADES-STORE-002", "malformed spDocSpec")
	}

	switch {
	case seq.PeekASN1Tag(casn1.OCTET_STRING):
		if !seq.ReadASN1Bytes(&out.Encoded, casn1.OCTET_STRING) {
			return nil, decodeErr("CADES-STORE-003", "malformed sigPolicyEncoded")
		}
	case seq.PeekASN1Tag(casn1.IA5String):
		var uri []byte
		if !seq.ReadASN1Bytes(&uri, casn1.IA5String) {
			return nil, decodeErr("CADES-STORE-004", "malformed sigPolicyLocalURI")
		}
		out.LocalURI = string(uri)
	default:
		return nil, decodeErr("CADES-STORE-005", "missing spDocument")
	}
	if !seq.Empty() {
		return nil, decodeErr("CADES-STORE-006", "trailing data in SignaturePolicyStore")
	}
	return out, nil
}

// MarshalStore encodes a SignaturePolicyStore. DocSpec is written as an OID
// when it parses as one and as a URI otherwise.
func MarshalStore(ps *PolicyStore) ([]byte, error) {
	if ps == nil || (ps.Encoded == nil && ps.LocalURI == "") {
		return nil, policy.NewError(policy.KindInvalidArgument, "CADES-STORE-010", "policy store needs a document or local URI")
	}
	var b cryptobyte.Builder
	b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
		if oid, err := ParseOID(ps.DocSpec); err == nil {
			b.AddASN1ObjectIdentifier(oid)
		} else {
			b.AddASN1(casn1.IA5String, func(b *cryptobyte.Builder) { b.AddBytes([]byte(ps.DocSpec)) })
		}
		if ps.Encoded != nil {
			b.AddASN1OctetString(ps.Encoded)
		} else {
			b.AddASN1(casn1.IA5String, func(b *cryptobyte.Builder) { b.AddBytes([]byte(ps.LocalURI)) })
		}
	})
	return b.Bytes()
}

// ParseWithStore decodes a SignaturePolicyIdentifier and, when storeDER is
// non-empty, attaches the embedded policy document as the descriptor content.
// A store holding only a local URI fills in the URL when none was declared.
// The content is not verified against the declared digest here.
func ParseWithStore(policyDER, storeDER []byte) (*policy.Descriptor, error) {
	d, err := Parse(policyDER)
	if err != nil || len(storeDER) == 0 {
		return d, err
	}
	ps, err := ParseStore(storeDER)
	if err != nil {
		return nil, err
	}
	b := d.ToBuilder()
	if ps.Encoded != nil {
		b.Content(policy.NewDocument("sigPolicyStore", "application/octet-stream", ps.Encoded))
	} else if _, ok := d.URL(); !ok {
		b.URL(ps.LocalURI)
	}
	return b.Build()
}
