package xades

import (
	"encoding/base64"
	"encoding/xml"
	"strings"

	"xdao.co/sigpolicy/digest"
	"xdao.co/sigpolicy/policy"
)

// Marshal renders d as a SignaturePolicyIdentifier element in the XAdES
// v1.3.2 namespace. Dotted OIDs are written as urn:oid: identifiers.
func Marshal(d *policy.Descriptor) ([]byte, error) {
	spi := signaturePolicyIdentifier{NS: NamespaceXAdES}
	if d.IsImplicit() {
		spi.Implied = &struct{}{}
		return xml.Marshal(spi)
	}

	id := identifier{Value: d.Identifier()}
	if looksLikeOID(id.Value) {
		id = identifier{Qualifier: "OIDAsURN", Value: "urn:oid:" + id.Value}
	}
	body := &signaturePolicyID{SigPolicyID: sigPolicyID{Identifier: id}}
	if desc, ok := d.Description(); ok {
		body.SigPolicyID.Description = &desc
	}
	if refs, ok := d.DocumentationReferences(); ok {
		body.SigPolicyID.DocRefs = &docRefs{Refs: refs}
	}

	dg, ok := d.Digest()
	if !ok {
		if !d.IsZeroHash() {
			return nil, policy.NewError(policy.KindInvalidArgument, "XADES-ENC-001", "explicit XAdES policy requires a digest")
		}
		dg = policy.Digest{Algorithm: digest.SHA256, Value: []byte("0")}
	}
	uri, ok := digest.URI(dg.Algorithm)
	if !ok {
		uri = dg.Algorithm
	}
	body.Hash = &sigPolicyHash{
		Method: digestMethod{NS: NamespaceDSig, Algorithm: uri},
		Value:  digestValue{NS: NamespaceDSig, Value: base64.StdEncoding.EncodeToString(dg.Value)},
	}

	var quals []sigPolicyQual
	if u, ok := d.URL(); ok {
		quals = append(quals, sigPolicyQual{SPURI: &u})
	}
	if n, ok := d.Notice(); ok {
		quals = append(quals, sigPolicyQual{UserNotice: &spUserNotice{ExplicitText: &n}})
	}
	if len(quals) > 0 {
		body.Qualifiers = &sigPolicyQuals{Qualifiers: quals}
	}
	spi.ID = body

	out, err := xml.Marshal(spi)
	if err != nil {
		return nil, policy.WrapError(policy.KindInternal, "XADES-ENC-002", "xml encoding failed", err)
	}
	return out, nil
}

func looksLikeOID(s string) bool {
	if !strings.Contains(s, ".") {
		return false
	}
	for _, r := range s {
		if r != '.' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
