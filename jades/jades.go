// Package jades reads the JAdES sigPId protected header parameter into
// policy descriptors.
//
// Both the published member names (digAlg, digVal, spQ, spDSpec) and the
// earlier draft names (hashAV, hashV, spQualifiers, digPSp) are accepted.
package jades

import (
	"encoding/base64"
	"strings"

	"github.com/goccy/go-json"

	"xdao.co/sigpolicy/digest"
	"xdao.co/sigpolicy/policy"
)

// HeaderParam is the protected header member carrying the policy identifier.
const HeaderParam = "sigPId"

// SigPID is the decoded sigPId header value.
type SigPID struct {
	ID string `json:"id"`

	// DigAlg is an XML-DSig style URI; HashAV a JOSE name such as "S256".
	DigAlg string `json:"digAlg,omitempty"`
	HashAV string `json:"hashAV,omitempty"`

	DigVal string `json:"digVal,omitempty"`
	HashV  string `json:"hashV,omitempty"`

	// DigPSp reports that the digest covers the policy specification
	// rather than the raw policy document.
	DigPSp bool `json:"digPSp,omitempty"`

	SpDSpec string `json:"spDSpec,omitempty"`

	SpQ          []Qualifier `json:"spQ,omitempty"`
	SpQualifiers []Qualifier `json:"spQualifiers,omitempty"`
}

// Qualifier is one element of the sigPId qualifier array. At most one of the
// members is expected per element.
type Qualifier struct {
	SpURI        string      `json:"spURI,omitempty"`
	SpUserNotice *UserNotice `json:"spUserNotice,omitempty"`
	SpDSpec      string      `json:"spDSpec,omitempty"`
}

type UserNotice struct {
	NoticeRef *json.RawMessage `json:"noticeRef,omitempty"`
	ExplText  string           `json:"explText,omitempty"`
}

func decodeErr(ruleID, msg string, cause error) error {
	return policy.WrapError(policy.KindDecode, ruleID, msg, cause)
}

// ParseHeader decodes a JWS protected header (raw JSON, not base64url) and
// returns the descriptor for its sigPId member. A header without sigPId
// signals an implicit policy.
func ParseHeader(protected []byte) (*policy.Descriptor, error) {
	var hdr map[string]json.RawMessage
	if err := json.Unmarshal(protected, &hdr); err != nil {
		return nil, decodeErr("JADES-DEC-001", "malformed protected header", err)
	}
	raw, ok := hdr[HeaderParam]
	if !ok || string(raw) == "null" {
		return policy.Implicit(), nil
	}
	return ParseSigPID(raw)
}

// ParseSigPID decodes the sigPId member value alone.
func ParseSigPID(raw []byte) (*policy.Descriptor, error) {
	var sp SigPID
	if err := json.Unmarshal(raw, &sp); err != nil {
		return nil, decodeErr("JADES-DEC-002", "malformed sigPId", err)
	}
	return sp.Descriptor()
}

// Descriptor converts the decoded member into a policy descriptor.
func (sp *SigPID) Descriptor() (*policy.Descriptor, error) {
	id := policy.NormalizeIdentifier(sp.ID)
	if id == "" {
		return nil, decodeErr("JADES-DEC-010", "sigPId without id", nil)
	}
	b := policy.NewBuilder(id)

	value := sp.DigVal
	if value == "" {
		value = sp.HashV
	}
	if value != "" {
		alg, err := sp.algorithm()
		if err != nil {
			return nil, err
		}
		v, err := decodeBase64(value)
		if err != nil {
			return nil, decodeErr("JADES-DEC-021", "invalid digest value encoding", err)
		}
		b.Digest(policy.NewDigest(alg, v))
		if digest.IsZeroHashValue(v) {
			b.ZeroHash(true)
		}
	}

	quals := sp.SpQ
	if len(quals) == 0 {
		quals = sp.SpQualifiers
	}
	for _, q := range quals {
		if q.SpURI != "" {
			b.URL(q.SpURI)
		}
		if q.SpUserNotice != nil && q.SpUserNotice.ExplText != "" {
			b.Notice(q.SpUserNotice.ExplText)
		}
	}
	return b.Build()
}

func (sp *SigPID) algorithm() (string, error) {
	switch {
	case sp.DigAlg != "":
		if alg, ok := digest.FromURI(sp.DigAlg); ok {
			return alg, nil
		}
		return sp.DigAlg, nil
	case sp.HashAV != "":
		if alg, ok := digest.FromJOSE(sp.HashAV); ok {
			return alg, nil
		}
		return sp.HashAV, nil
	default:
		// digAlg defaults to SHA-256 in the published profile.
		return digest.SHA256, nil
	}
}

// decodeBase64 accepts standard and URL-safe alphabets, padded or not.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "-_") {
		return base64.RawURLEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
