// Package cades decodes and encodes the CAdES signature-policy-identifier
// attribute (id-aa-ets-sigPolicyId) and the signature-policy-store attribute
// (id-aa-ets-sigPolicyStore) into policy descriptors.
//
//	SignaturePolicyIdentifier ::= CHOICE {
//	    signaturePolicyId       SignaturePolicyId,
//	    signaturePolicyImplied  NULL }
//
//	SignaturePolicyId ::= SEQUENCE {
//	    sigPolicyId          OBJECT IDENTIFIER,
//	    sigPolicyHash        OtherHashAlgAndValue,
//	    sigPolicyQualifiers  SEQUENCE SIZE (1..MAX) OF SigPolicyQualifierInfo OPTIONAL }
package cades

import (
	"encoding/asn1"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"

	"xdao.co/sigpolicy/digest"
	"xdao.co/sigpolicy/policy"
)

var (
	OIDSigPolicyID    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 15}
	OIDSigPolicyStore = asn1.ObjectIdentifier{0, 4, 0, 19122, 1, 3}

	OIDQualifierURI        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 5, 1}
	OIDQualifierUserNotice = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 5, 2}
)

const (
	tagVisibleString = casn1.Tag(26)
	tagBMPString     = casn1.Tag(30)
)

func decodeErr(ruleID, msg string) error {
	return policy.NewError(policy.KindDecode, ruleID, msg)
}

// Parse decodes a DER SignaturePolicyIdentifier attribute value.
func Parse(der []byte) (*policy.Descriptor, error) {
	b, err := parseBuilder(der)
	if err != nil {
		return nil, err
	}
	return b.Build()
}

func parseBuilder(der []byte) (*policy.Builder, error) {
	s := cryptobyte.String(der)
	if s.PeekASN1Tag(casn1.NULL) {
		var null cryptobyte.String
		if !s.ReadASN1(&null, casn1.NULL) || !null.Empty() || !s.Empty() {
			return nil, decodeErr("CADES-DEC-002", "malformed signaturePolicyImplied")
		}
		return policy.NewImplicitBuilder(), nil
	}

	var seq cryptobyte.String
	if !s.ReadASN1(&seq, casn1.SEQUENCE) || !s.Empty() {
		return nil, decodeErr("CADES-DEC-001", "expected SignaturePolicyId SEQUENCE or NULL")
	}

	var id asn1.ObjectIdentifier
	if !seq.ReadASN1ObjectIdentifier(&id) {
		return nil, decodeErr("CADES-DEC-010", "missing sigPolicyId")
	}
	b := policy.NewBuilder(id.String())

	dg, err := readHash(&seq)
	if err != nil {
		return nil, err
	}
	b.Digest(dg)
	if digest.IsZeroHashValue(dg.Value) {
		b.ZeroHash(true)
	}

	if seq.PeekASN1Tag(casn1.SEQUENCE) {
		if err := readQualifiers(&seq, b); err != nil {
			return nil, err
		}
	}
	if !seq.Empty() {
		return nil, decodeErr("CADES-DEC-003", "trailing data in SignaturePolicyId")
	}
	return b, nil
}

// readHash reads OtherHashAlgAndValue. Unknown algorithms keep their dotted OID.
func readHash(s *cryptobyte.String) (policy.Digest, error) {
	var hashSeq, algID cryptobyte.String
	if !s.ReadASN1(&hashSeq, casn1.SEQUENCE) || !hashSeq.ReadASN1(&algID, casn1.SEQUENCE) {
		return policy.Digest{}, decodeErr("CADES-DEC-020", "missing sigPolicyHash")
	}
	var algOID asn1.ObjectIdentifier
	if !algID.ReadASN1ObjectIdentifier(&algOID) {
		return policy.Digest{}, decodeErr("CADES-DEC-021", "malformed hash AlgorithmIdentifier")
	}
	var value []byte
	if !hashSeq.ReadASN1Bytes(&value, casn1.OCTET_STRING) || !hashSeq.Empty() {
		return policy.Digest{}, decodeErr("CADES-DEC-022", "malformed hashValue")
	}
	alg, ok := digest.FromOID(algOID.String())
	if !ok {
		alg = algOID.String()
	}
	return policy.NewDigest(alg, value), nil
}

func readQualifiers(s *cryptobyte.String, b *policy.Builder) error {
	var quals cryptobyte.String
	if !s.ReadASN1(&quals, casn1.SEQUENCE) {
		return decodeErr("CADES-DEC-030", "malformed sigPolicyQualifiers")
	}
	for !quals.Empty() {
		var info cryptobyte.String
		var qid asn1.ObjectIdentifier
		if !quals.ReadASN1(&info, casn1.SEQUENCE) || !info.ReadASN1ObjectIdentifier(&qid) {
			return decodeErr("CADES-DEC-031", "malformed SigPolicyQualifierInfo")
		}
		switch {
		case qid.Equal(OIDQualifierURI):
			var uri []byte
			if !info.ReadASN1Bytes(&uri, casn1.IA5String) {
				return decodeErr("CADES-DEC-032", "malformed SPuri")
			}
			b.URL(string(uri))
		case qid.Equal(OIDQualifierUserNotice):
			text, ok, err := readUserNotice(&info)
			if err != nil {
				return err
			}
			if ok {
				b.Notice(text)
			}
		default:
			// Unknown qualifiers are skipped.
		}
	}
	return nil
}

// readUserNotice returns explicitText, which is optional in SPUserNotice.
func readUserNotice(s *cryptobyte.String) (string, bool, error) {
	var notice cryptobyte.String
	if !s.ReadASN1(&notice, casn1.SEQUENCE) {
		return "", false, decodeErr("CADES-DEC-033", "malformed SPUserNotice")
	}
	if notice.PeekASN1Tag(casn1.SEQUENCE) {
		// noticeRef is display-only organisation data with no descriptor field.
		if !notice.SkipASN1(casn1.SEQUENCE) {
			return "", false, decodeErr("CADES-DEC-034", "malformed noticeRef")
		}
	}
	if notice.Empty() {
		return "", false, nil
	}
	var raw cryptobyte.String
	var tag casn1.Tag
	if !notice.ReadAnyASN1(&raw, &tag) {
		return "", false, decodeErr("CADES-DEC-035", "malformed explicitText")
	}
	text, err := displayText(tag, raw)
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

func displayText(tag casn1.Tag, raw []byte) (string, error) {
	switch tag {
	case casn1.UTF8String, casn1.IA5String, tagVisibleString:
		return string(raw), nil
	case tagBMPString:
		if len(raw)%2 != 0 {
			return "", decodeErr("CADES-DEC-036", "odd-length BMPString")
		}
		u := make([]uint16, 0, len(raw)/2)
		for i := 0; i < len(raw); i += 2 {
			u = append(u, uint16(raw[i])<<8|uint16(raw[i+1]))
		}
		return string(utf16.Decode(u)), nil
	default:
		return "", decodeErr("CADES-DEC-037", "unsupported DisplayText type")
	}
}

// ParseOID parses a dotted OID, accepting an optional "urn:oid:" prefix.
func ParseOID(s string) (asn1.ObjectIdentifier, error) {
	s = policy.NormalizeIdentifier(s)
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return nil, policy.NewError(policy.KindInvalidArgument, "CADES-OID-001", "not a dotted OID: "+s)
	}
	oid := make(asn1.ObjectIdentifier, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, policy.NewError(policy.KindInvalidArgument, "CADES-OID-001", "not a dotted OID: "+s)
		}
		oid = append(oid, n)
	}
	return oid, nil
}
