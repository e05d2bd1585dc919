package cades

import (
	"bytes"
	"crypto/sha256"
	"encoding/asn1"
	"testing"

	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"

	"xdao.co/sigpolicy/digest"
	"xdao.co/sigpolicy/policy"
)

const testPolicyOID = "2.16.724.1.3.1.1.2.1.9"

func TestParse_Implicit(t *testing.T) {
	d, err := Parse([]byte{0x05, 0x00})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !d.IsImplicit() {
		t.Fatalf("expected implicit descriptor, got %q", d.Identifier())
	}
	if _, ok := d.Digest(); ok {
		t.Fatalf("implicit descriptor must not carry a digest")
	}
}

func TestMarshalParse_Explicit(t *testing.T) {
	sum := sha256.Sum256([]byte("policy document"))
	in, err := policy.NewBuilder(testPolicyOID).
		Digest(policy.NewDigest(digest.SHA256, sum[:])).
		URL("https://sede.060.gob.es/politica_de_firma_anexo_1.pdf").
		Notice("Politica de firma").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	der, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Parse(der)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if out.Identifier() != testPolicyOID {
		t.Fatalf("Identifier: got %q", out.Identifier())
	}
	got, ok := out.Digest()
	if !ok || got.Algorithm != digest.SHA256 || !bytes.Equal(got.Value, sum[:]) {
		t.Fatalf("Digest: got %v, %v", got, ok)
	}
	if out.IsZeroHash() {
		t.Fatalf("unexpected zero-hash")
	}
	if u, ok := out.URL(); !ok || u != "https://sede.060.gob.es/politica_de_firma_anexo_1.pdf" {
		t.Fatalf("URL: got %q, %v", u, ok)
	}
	if n, ok := out.Notice(); !ok || n != "Politica de firma" {
		t.Fatalf("Notice: got %q, %v", n, ok)
	}
	if _, ok := out.Description(); ok {
		t.Fatalf("CAdES has no description")
	}
}

func TestMarshalParse_ZeroHash(t *testing.T) {
	in, err := policy.NewBuilder(testPolicyOID).ZeroHash(true).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	der, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Parse(der)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !out.IsZeroHash() {
		t.Fatalf("zero-hash not detected")
	}
	if out.RequiresDigestCheck() {
		t.Fatalf("zero-hash descriptor must not require a digest check")
	}
}

func TestMarshal_ExplicitWithoutDigest(t *testing.T) {
	in, err := policy.Explicit(testPolicyOID)
	if err != nil {
		t.Fatalf("Explicit: %v", err)
	}
	if _, err := Marshal(in); policy.RuleID(err) != "CADES-ENC-001" {
		t.Fatalf("expected CADES-ENC-001, got %v", err)
	}
}

// buildPolicyID assembles a SignaturePolicyId by hand to cover encodings
// Marshal never emits (noticeRef, BMPString, unknown digest OIDs, extra qualifiers).
func buildPolicyID(t *testing.T, algOID asn1.ObjectIdentifier, value []byte, quals func(b *cryptobyte.Builder)) []byte {
	t.Helper()
	oid, err := ParseOID(testPolicyOID)
	if err != nil {
		t.Fatalf("ParseOID: %v", err)
	}
	var b cryptobyte.Builder
	b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(oid)
		b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(algOID)
				b.AddASN1NULL()
			})
			b.AddASN1OctetString(value)
		})
		if quals != nil {
			b.AddASN1(casn1.SEQUENCE, quals)
		}
	})
	der, err := b.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	return der
}

func TestParse_UserNoticeWithNoticeRefAndBMPString(t *testing.T) {
	sha1OID := asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	der := buildPolicyID(t, sha1OID, bytes.Repeat([]byte{7}, 20), func(b *cryptobyte.Builder) {
		b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(asn1.ObjectIdentifier{1, 2, 3, 4})
			b.AddASN1(casn1.UTF8String, func(b *cryptobyte.Builder) { b.AddBytes([]byte("ignored")) })
		})
		b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(OIDQualifierUserNotice)
			b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1(casn1.UTF8String, func(b *cryptobyte.Builder) { b.AddBytes([]byte("Org")) })
					b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) { b.AddASN1Int64(1) })
				})
				b.AddASN1(tagBMPString, func(b *cryptobyte.Builder) {
					b.AddBytes([]byte{0x00, 'h', 0x00, 'i'})
				})
			})
		})
	})

	d, err := Parse(der)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n, ok := d.Notice(); !ok || n != "hi" {
		t.Fatalf("Notice: got %q, %v", n, ok)
	}
	if _, ok := d.URL(); ok {
		t.Fatalf("unexpected URL")
	}
	if got, _ := d.Digest(); got.Algorithm != digest.SHA1 {
		t.Fatalf("Digest algorithm: got %q", got.Algorithm)
	}
}

func TestParse_UnknownDigestAlgorithmKept(t *testing.T) {
	md5OID := asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 5}
	d, err := Parse(buildPolicyID(t, md5OID, bytes.Repeat([]byte{1}, 16), nil))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, ok := d.Digest()
	if !ok || got.Algorithm != "1.2.840.113549.2.5" {
		t.Fatalf("Digest: got %v, %v", got, ok)
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":         nil,
		"trailing NULL": {0x05, 0x00, 0x00},
		"integer":       {0x02, 0x01, 0x01},
		"no hash":       {0x30, 0x03, 0x06, 0x01, 0x2a},
	}
	for name, der := range cases {
		_, err := Parse(der)
		if !policy.IsKind(err, policy.KindDecode) {
			t.Fatalf("%s: expected KindDecode, got %v", name, err)
		}
	}
}

func TestParseWithStore_EmbeddedDocument(t *testing.T) {
	doc := []byte("embedded policy")
	sum := sha256.Sum256(doc)
	d, err := policy.NewBuilder(testPolicyOID).Digest(policy.NewDigest(digest.SHA256, sum[:])).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	idDER, err := Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	storeDER, err := MarshalStore(&PolicyStore{DocSpec: "1.2.3", Encoded: doc})
	if err != nil {
		t.Fatalf("MarshalStore: %v", err)
	}

	out, err := ParseWithStore(idDER, storeDER)
	if err != nil {
		t.Fatalf("ParseWithStore: %v", err)
	}
	content, ok := out.Content()
	if !ok || !bytes.Equal(content.Bytes(), doc) {
		t.Fatalf("content not attached")
	}
}

func TestParseStore_LocalURI(t *testing.T) {
	der, err := MarshalStore(&PolicyStore{DocSpec: "https://example.test/spec", LocalURI: "file:///etc/policy.der"})
	if err != nil {
		t.Fatalf("MarshalStore: %v", err)
	}
	ps, err := ParseStore(der)
	if err != nil {
		t.Fatalf("ParseStore: %v", err)
	}
	if ps.DocSpec != "https://example.test/spec" || ps.LocalURI != "file:///etc/policy.der" || ps.Encoded != nil {
		t.Fatalf("unexpected store %+v", ps)
	}

	idDER, err := Marshal(policy.Implicit())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	d, err := ParseWithStore(idDER, der)
	if err != nil {
		t.Fatalf("ParseWithStore: %v", err)
	}
	if u, ok := d.URL(); !ok || u != "file:///etc/policy.der" {
		t.Fatalf("URL: got %q, %v", u, ok)
	}
}

func TestParseOID(t *testing.T) {
	oid, err := ParseOID("urn:oid:1.2.840.113549")
	if err != nil {
		t.Fatalf("ParseOID: %v", err)
	}
	if oid.String() != "1.2.840.113549" {
		t.Fatalf("got %s", oid)
	}
	for _, bad := range []string{"", "1", "http://x", "1.a.3"} {
		if _, err := ParseOID(bad); err == nil {
			t.Fatalf("ParseOID(%q) should fail", bad)
		}
	}
}
