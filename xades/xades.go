// Package xades decodes and encodes the XAdES SignaturePolicyIdentifier
// qualifying property into policy descriptors.
//
// Elements are matched by local name, so both the v1.3.2 and v1.4.1 XAdES
// namespaces (and any prefix) are accepted.
package xades

import (
	"encoding/base64"
	"encoding/xml"
	"strings"

	"xdao.co/sigpolicy/digest"
	"xdao.co/sigpolicy/policy"
)

const (
	NamespaceXAdES = "http://uri.etsi.org/01903/v1.3.2#"
	NamespaceDSig  = "http://www.w3.org/2000/09/xmldsig#"
)

type signaturePolicyIdentifier struct {
	XMLName xml.Name           `xml:"SignaturePolicyIdentifier"`
	NS      string             `xml:"xmlns,attr,omitempty"`
	ID      *signaturePolicyID `xml:"SignaturePolicyId"`
	Implied *struct{}          `xml:"SignaturePolicyImplied"`
}

type signaturePolicyID struct {
	SigPolicyID sigPolicyID     `xml:"SigPolicyId"`
	Hash        *sigPolicyHash  `xml:"SigPolicyHash"`
	Qualifiers  *sigPolicyQuals `xml:"SigPolicyQualifiers"`
}

type sigPolicyID struct {
	Identifier  identifier `xml:"Identifier"`
	Description *string    `xml:"Description"`
	DocRefs     *docRefs   `xml:"DocumentationReferences"`
}

type identifier struct {
	Qualifier string `xml:"Qualifier,attr,omitempty"`
	Value     string `xml:",chardata"`
}

type docRefs struct {
	Refs []string `xml:"DocumentationReference"`
}

type sigPolicyHash struct {
	Method digestMethod `xml:"DigestMethod"`
	Value  digestValue  `xml:"DigestValue"`
}

type digestMethod struct {
	NS        string `xml:"xmlns,attr,omitempty"`
	Algorithm string `xml:"Algorithm,attr"`
}

type digestValue struct {
	NS    string `xml:"xmlns,attr,omitempty"`
	Value string `xml:",chardata"`
}

type sigPolicyQuals struct {
	Qualifiers []sigPolicyQual `xml:"SigPolicyQualifier"`
}

type sigPolicyQual struct {
	SPURI      *string       `xml:"SPURI"`
	UserNotice *spUserNotice `xml:"SPUserNotice"`
}

type spUserNotice struct {
	ExplicitText *string `xml:"ExplicitText"`
}

func decodeErr(ruleID, msg string, cause error) error {
	return policy.WrapError(policy.KindDecode, ruleID, msg, cause)
}

// Parse decodes a SignaturePolicyIdentifier element.
func Parse(data []byte) (*policy.Descriptor, error) {
	var spi signaturePolicyIdentifier
	if err := xml.Unmarshal(data, &spi); err != nil {
		return nil, decodeErr("XADES-DEC-001", "malformed SignaturePolicyIdentifier", err)
	}
	switch {
	case spi.Implied != nil && spi.ID != nil:
		return nil, decodeErr("XADES-DEC-002", "both SignaturePolicyId and SignaturePolicyImplied present", nil)
	case spi.Implied != nil:
		return policy.Implicit(), nil
	case spi.ID == nil:
		return nil, decodeErr("XADES-DEC-003", "missing SignaturePolicyId", nil)
	}

	id := policy.NormalizeIdentifier(spi.ID.SigPolicyID.Identifier.Value)
	if id == "" {
		return nil, decodeErr("XADES-DEC-010", "empty SigPolicyId/Identifier", nil)
	}
	b := policy.NewBuilder(id)

	if desc := spi.ID.SigPolicyID.Description; desc != nil {
		b.Description(strings.TrimSpace(*desc))
	}
	if refs := spi.ID.SigPolicyID.DocRefs; refs != nil {
		out := make([]string, 0, len(refs.Refs))
		for _, r := range refs.Refs {
			out = append(out, strings.TrimSpace(r))
		}
		b.DocumentationReferences(out)
	}

	if h := spi.ID.Hash; h != nil {
		dg, err := readHash(h)
		if err != nil {
			return nil, err
		}
		b.Digest(dg)
		if digest.IsZeroHashValue(dg.Value) {
			b.ZeroHash(true)
		}
	}

	if q := spi.ID.Qualifiers; q != nil {
		for _, qual := range q.Qualifiers {
			if qual.SPURI != nil {
				b.URL(strings.TrimSpace(*qual.SPURI))
			}
			if qual.UserNotice != nil && qual.UserNotice.ExplicitText != nil {
				b.Notice(strings.TrimSpace(*qual.UserNotice.ExplicitText))
			}
		}
	}
	return b.Build()
}

func readHash(h *sigPolicyHash) (policy.Digest, error) {
	uri := strings.TrimSpace(h.Method.Algorithm)
	if uri == "" {
		return policy.Digest{}, decodeErr("XADES-DEC-020", "missing DigestMethod Algorithm", nil)
	}
	alg, ok := digest.FromURI(uri)
	if !ok {
		alg = uri
	}
	raw := strings.Join(strings.Fields(h.Value.Value), "")
	value, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return policy.Digest{}, decodeErr("XADES-DEC-021", "invalid DigestValue base64", err)
	}
	return policy.NewDigest(alg, value), nil
}
