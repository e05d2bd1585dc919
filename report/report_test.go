package report

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"testing"

	"xdao.co/sigpolicy/compliance"
	"xdao.co/sigpolicy/digest"
	"xdao.co/sigpolicy/policy"
	"xdao.co/sigpolicy/storage"
	"xdao.co/sigpolicy/validate"
)

func validResult(t *testing.T) *validate.Result {
	t.Helper()
	doc := []byte("policy document")
	sum := sha256.Sum256(doc)
	d, err := policy.NewBuilder("2.16.724.1.3.1.1.2.1.9").
		Digest(policy.NewDigest(digest.SHA256, sum[:])).
		Content(policy.NewDocument("p", "application/pdf", doc)).
		URL("https://example.test/p.pdf").
		DocumentationReferences([]string{"https://example.test/ref"}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	res, err := (&validate.Engine{}).Validate(context.Background(), d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return res
}

func TestFromResult(t *testing.T) {
	r := FromResult(validResult(t))
	if r.Status != "valid" || !r.OK || r.Source != "descriptor" {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.DeclaredDigest == nil || r.ComputedDigest == nil || *r.DeclaredDigest != *r.ComputedDigest {
		t.Fatalf("digests: %+v %+v", r.DeclaredDigest, r.ComputedDigest)
	}
	if r.ContentCID == "" || r.ContentLength != len("policy document") {
		t.Fatalf("content: %q %d", r.ContentCID, r.ContentLength)
	}
	if r.Reasons == nil {
		t.Fatalf("reasons must be non-nil")
	}
}

func TestFromDescriptor_Implicit(t *testing.T) {
	r := FromDescriptor(policy.Implicit())
	if !r.Implicit || r.Identifier != policy.ImplicitIdentifier || r.DeclaredDigest != nil {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestCanonicalJSONAndCID(t *testing.T) {
	r := FromResult(validResult(t))
	canon, err := CanonicalJSON(r)
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	if !bytes.HasPrefix(canon, []byte(`{"computedDigest":`)) {
		t.Fatalf("keys not sorted: %s", canon)
	}
	if bytes.ContainsAny(canon, "\n\t") {
		t.Fatalf("canonical form contains whitespace: %s", canon)
	}

	a, err := CID(r)
	if err != nil {
		t.Fatalf("CID: %v", err)
	}
	b, err := CID(FromResult(validResult(t)))
	if err != nil {
		t.Fatalf("CID: %v", err)
	}
	if a != b {
		t.Fatalf("equal reports produced different CIDs: %s vs %s", a, b)
	}

	r.Reasons = append(r.Reasons, "extra")
	c, _ := CID(r)
	if c == a {
		t.Fatalf("different reports share a CID")
	}
}

func TestCBOR(t *testing.T) {
	r := FromResult(validResult(t))
	enc, err := EncodeCBOR(r)
	if err != nil {
		t.Fatalf("EncodeCBOR: %v", err)
	}
	again, _ := EncodeCBOR(r)
	if !bytes.Equal(enc, again) {
		t.Fatalf("encoding is not deterministic")
	}
	back, err := DecodeCBOR(enc)
	if err != nil {
		t.Fatalf("DecodeCBOR: %v", err)
	}
	if back.Identifier != r.Identifier || back.ContentCID != r.ContentCID || back.ComputedDigest.Value != r.ComputedDigest.Value {
		t.Fatalf("decoded report differs: %+v", back)
	}
	if _, err := DecodeCBOR([]byte{0xff}); err == nil {
		t.Fatalf("expected malformed CBOR to fail")
	}
}

func TestFromError(t *testing.T) {
	_, strictErr := (&validate.Engine{Mode: compliance.Strict, RejectImplicit: true}).Validate(context.Background(), policy.Implicit())

	_, argErr := policy.Explicit("")
	cases := []struct {
		err  error
		want ErrorCode
	}{
		{strictErr, ErrStrict},
		{argErr, ErrInvalidRequest},
		{policy.NewError(policy.KindDecode, "CADES-DEC-001", "bad"), ErrDecode},
		{fmt.Errorf("get: %w", storage.ErrNotFound), ErrNotFound},
		{storage.ErrCIDMismatch, ErrCIDMismatch},
		{errors.New("boom"), ErrInternal},
		{NewError(ErrFetch, "x"), ErrFetch},
	}
	for _, tc := range cases {
		got := FromError(tc.err)
		if got.Code != tc.want {
			t.Fatalf("FromError(%v): got %s want %s", tc.err, got.Code, tc.want)
		}
	}
	if FromError(nil) != nil {
		t.Fatalf("nil error should map to nil")
	}
	if got := FromError(argErr); got.RuleID != "POLICY-ARG-001" || !strings.Contains(got.Error(), "INVALID_REQUEST") {
		t.Fatalf("unexpected %+v", got)
	}
}
