package jades

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"xdao.co/sigpolicy/digest"
	"xdao.co/sigpolicy/policy"
)

func TestParseHeader_NoSigPID(t *testing.T) {
	d, err := ParseHeader([]byte(`{"alg":"ES256","kid":"k1"}`))
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if !d.IsImplicit() {
		t.Fatalf("expected implicit, got %q", d.Identifier())
	}
}

func TestParseHeader_Published(t *testing.T) {
	sum := sha256.Sum256([]byte("policy"))
	hdr := `{"alg":"ES256","sigPId":{` +
		`"id":"urn:oid:1.2.3.4",` +
		`"digAlg":"http://www.w3.org/2001/04/xmlenc#sha256",` +
		`"digVal":"` + base64.StdEncoding.EncodeToString(sum[:]) + `",` +
		`"spQ":[{"spURI":"https://example.test/p.pdf"},{"spUserNotice":{"noticeRef":{"orgtn":"x","notNums":[1]},"explText":"hello"}}]}}`

	d, err := ParseHeader([]byte(hdr))
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if d.Identifier() != "1.2.3.4" {
		t.Fatalf("Identifier: got %q", d.Identifier())
	}
	dg, ok := d.Digest()
	if !ok || dg.Algorithm != digest.SHA256 || !bytes.Equal(dg.Value, sum[:]) {
		t.Fatalf("Digest: got %v, %v", dg, ok)
	}
	if u, _ := d.URL(); u != "https://example.test/p.pdf" {
		t.Fatalf("URL: got %q", u)
	}
	if n, _ := d.Notice(); n != "hello" {
		t.Fatalf("Notice: got %q", n)
	}
}

func TestParseSigPID_DraftNames(t *testing.T) {
	sum := sha256.Sum256([]byte("policy"))
	raw := `{"id":"https://example.test/policy","hashAV":"S512","hashV":"` +
		base64.RawURLEncoding.EncodeToString(sum[:]) + `","digPSp":true,` +
		`"spQualifiers":[{"spUserNotice":{"explText":"draft"}}]}`

	d, err := ParseSigPID([]byte(raw))
	if err != nil {
		t.Fatalf("ParseSigPID: %v", err)
	}
	if d.Identifier() != "https://example.test/policy" {
		t.Fatalf("Identifier: got %q", d.Identifier())
	}
	dg, _ := d.Digest()
	if dg.Algorithm != digest.SHA512 || !bytes.Equal(dg.Value, sum[:]) {
		t.Fatalf("Digest: got %v", dg)
	}
	if n, _ := d.Notice(); n != "draft" {
		t.Fatalf("Notice: got %q", n)
	}
}

func TestParseSigPID_NoDigestAndZeroHash(t *testing.T) {
	d, err := ParseSigPID([]byte(`{"id":"1.2.3"}`))
	if err != nil {
		t.Fatalf("ParseSigPID: %v", err)
	}
	if _, ok := d.Digest(); ok || d.IsZeroHash() {
		t.Fatalf("expected no digest and no zero-hash")
	}

	d, err = ParseSigPID([]byte(`{"id":"1.2.3","digVal":"MA=="}`))
	if err != nil {
		t.Fatalf("ParseSigPID: %v", err)
	}
	if !d.IsZeroHash() {
		t.Fatalf("expected zero-hash")
	}
	if dg, _ := d.Digest(); dg.Algorithm != digest.SHA256 {
		t.Fatalf("default algorithm: got %q", dg.Algorithm)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := ParseHeader([]byte(`not json`)); policy.RuleID(err) != "JADES-DEC-001" {
		t.Fatalf("expected JADES-DEC-001, got %v", err)
	}
	if _, err := ParseHeader([]byte(`{"sigPId":"str"}`)); policy.RuleID(err) != "JADES-DEC-002" {
		t.Fatalf("expected JADES-DEC-002, got %v", err)
	}
	if _, err := ParseSigPID([]byte(`{"digVal":"MA=="}`)); policy.RuleID(err) != "JADES-DEC-010" {
		t.Fatalf("expected JADES-DEC-010, got %v", err)
	}
	if _, err := ParseSigPID([]byte(`{"id":"1.2","digVal":"***"}`)); policy.RuleID(err) != "JADES-DEC-021" {
		t.Fatalf("expected JADES-DEC-021, got %v", err)
	}
}

func TestParseSigPID_UppercaseURN(t *testing.T) {
	d, err := ParseSigPID([]byte(`{"id":"URN:OID:1.2.3"}`))
	if err != nil {
		t.Fatalf("ParseSigPID: %v", err)
	}
	if d.Identifier() != "1.2.3" {
		t.Fatalf("Identifier: got %q", d.Identifier())
	}
}
