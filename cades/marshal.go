package cades

import (
	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"

	"xdao.co/sigpolicy/digest"
	"xdao.co/sigpolicy/policy"
)

// Marshal encodes d as a DER SignaturePolicyIdentifier.
//
// Description and documentation references have no CAdES encoding and are
// dropped. A zero-hash descriptor without a digest is written as sha256 with
// an empty hash value.
func Marshal(d *policy.Descriptor) ([]byte, error) {
	var b cryptobyte.Builder
	if d.IsImplicit() {
		b.AddASN1NULL()
		return b.Bytes()
	}

	id, err := ParseOID(d.Identifier())
	if err != nil {
		return nil, err
	}
	dg, ok := d.Digest()
	if !ok {
		if !d.IsZeroHash() {
			return nil, policy.NewError(policy.KindInvalidArgument, "CADES-ENC-001", "explicit CAdES policy requires a digest")
		}
		dg = policy.Digest{Algorithm: digest.SHA256}
	}
	algOID, ok := digest.OID(dg.Algorithm)
	if !ok {
		algOID = dg.Algorithm
	}
	alg, err := ParseOID(algOID)
	if err != nil {
		return nil, policy.WrapError(policy.KindInvalidArgument, "CADES-ENC-002", "digest algorithm has no OID", err)
	}

	url, hasURL := d.URL()
	notice, hasNotice := d.Notice()

	b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(id)
		b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(alg)
			})
			b.AddASN1OctetString(dg.Value)
		})
		if !hasURL && !hasNotice {
			return
		}
		b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
			if hasURL {
				b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1ObjectIdentifier(OIDQualifierURI)
					b.AddASN1(casn1.IA5String, func(b *cryptobyte.Builder) {
						b.AddBytes([]byte(url))
					})
				})
			}
			if hasNotice {
				b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1ObjectIdentifier(OIDQualifierUserNotice)
					b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
						b.AddASN1(casn1.UTF8String, func(b *cryptobyte.Builder) {
							b.AddBytes([]byte(notice))
						})
					})
				})
			}
		})
	})
	out, err := b.Bytes()
	if err != nil {
		return nil, policy.WrapError(policy.KindInternal, "CADES-ENC-003", "DER encoding failed", err)
	}
	return out, nil
}
