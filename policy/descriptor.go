// Package policy models the signature policy descriptor a signature carries:
// the identifier of the policy governing its validation, plus the optional
// digest, content, and display metadata that come with it.
//
// A Descriptor is immutable once built. Parsers assemble one through a Builder;
// validation engines only read it.
package policy

import "strings"

// ImplicitIdentifier is the reserved identifier of the implied policy: no
// externally verifiable document exists and acceptance is a local trust decision.
const ImplicitIdentifier = "IMPLICIT_POLICY"

const oidURNPrefix = "urn:oid:"

// NormalizeIdentifier trims s and strips a case-insensitive urn:oid: prefix,
// so an OID policy carried as a URN compares equal to its dotted form.
func NormalizeIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(oidURNPrefix) && strings.EqualFold(s[:len(oidURNPrefix)], oidURNPrefix) {
		return s[len(oidURNPrefix):]
	}
	return s
}

type optional[T any] struct {
	v   T
	set bool
}

func some[T any](v T) optional[T] { return optional[T]{v: v, set: true} }

func (o optional[T]) get() (T, bool) { return o.v, o.set }

// Descriptor is the signature policy descriptor.
//
// Every optional field distinguishes "never set" from "set to an empty value";
// the accessors report presence through their second return value.
type Descriptor struct {
	identifier string
	zeroHash   bool

	digest      optional[Digest]
	content     optional[*Document]
	description optional[string]
	docRefs     optional[[]string]
	url         optional[string]
	notice      optional[string]
}

// Implicit returns the descriptor of the implied policy with all optional fields unset.
func Implicit() *Descriptor {
	return &Descriptor{identifier: ImplicitIdentifier}
}

// Explicit returns a descriptor for the policy named by identifier (an OID or URI).
// It fails with KindInvalidArgument when identifier is empty.
func Explicit(identifier string) (*Descriptor, error) {
	if identifier == "" {
		return nil, NewError(KindInvalidArgument, "POLICY-ARG-001", "policy identifier is required")
	}
	return &Descriptor{identifier: identifier}, nil
}

// Identifier returns the identifier fixed at construction.
func (d *Descriptor) Identifier() string { return d.identifier }

// IsImplicit reports whether d describes the implied policy.
func (d *Descriptor) IsImplicit() bool { return d.identifier == ImplicitIdentifier }

// IsZeroHash reports whether the signer asserted that no digest check is needed.
func (d *Descriptor) IsZeroHash() bool { return d.zeroHash }

// RequiresDigestCheck reports whether a validator must compare the policy
// document digest. Implicit policies never are; zero-hash takes precedence over
// a declared digest; without a digest there is nothing to compare.
func (d *Descriptor) RequiresDigestCheck() bool {
	if d.IsImplicit() || d.zeroHash {
		return false
	}
	return d.digest.set
}

// Digest returns a copy of the declared policy digest, if the signature carried one.
func (d *Descriptor) Digest() (Digest, bool) {
	v, ok := d.digest.get()
	if !ok {
		return Digest{}, false
	}
	return v.clone(), true
}

// Content returns the resolved policy document, if any.
func (d *Descriptor) Content() (*Document, bool) {
	v, ok := d.content.get()
	if !ok {
		return nil, false
	}
	return v.clone(), true
}

// Description returns the free-text policy description.
func (d *Descriptor) Description() (string, bool) { return d.description.get() }

// DocumentationReferences returns a copy of the references in insertion order.
// A set-but-empty list returns a non-nil empty slice and true.
func (d *Descriptor) DocumentationReferences() ([]string, bool) {
	v, ok := d.docRefs.get()
	if !ok {
		return nil, false
	}
	return append([]string{}, v...), true
}

// URL returns the location hint for the policy document (SPURI qualifier).
func (d *Descriptor) URL() (string, bool) { return d.url.get() }

// Notice returns the user notice text to display during verification.
func (d *Descriptor) Notice() (string, bool) { return d.notice.get() }

// ToBuilder returns a Builder seeded with a copy of d. The identifier cannot be changed.
func (d *Descriptor) ToBuilder() *Builder {
	return &Builder{d: d.clone()}
}

func (d *Descriptor) clone() Descriptor {
	out := *d
	if v, ok := d.digest.get(); ok {
		out.digest = some(v.clone())
	}
	if v, ok := d.content.get(); ok {
		out.content = some(v.clone())
	}
	if v, ok := d.docRefs.get(); ok {
		out.docRefs = some(append([]string{}, v...))
	}
	return out
}

// Builder assembles a Descriptor. It is meant for a single owner during the
// parsing phase and is not safe for concurrent use.
//
// Build may be called more than once; each call returns an independent Descriptor.
type Builder struct {
	d Descriptor
}

// NewBuilder starts an explicit descriptor. An empty identifier is reported by Build.
func NewBuilder(identifier string) *Builder {
	return &Builder{d: Descriptor{identifier: identifier}}
}

// NewImplicitBuilder starts a descriptor for the implied policy.
func NewImplicitBuilder() *Builder {
	return &Builder{d: Descriptor{identifier: ImplicitIdentifier}}
}

// ZeroHash records the signer's assertion that no digest check is needed.
func (b *Builder) ZeroHash(v bool) *Builder {
	b.d.zeroHash = v
	return b
}

// Digest sets the declared digest; it is not checked against any content.
func (b *Builder) Digest(v Digest) *Builder {
	b.d.digest = some(v.clone())
	return b
}

// Content stores a private copy of doc. Setting it does not verify the digest.
// A nil doc is recorded as set-but-empty and counts as unresolved for validation.
func (b *Builder) Content(doc *Document) *Builder {
	b.d.content = some(doc.clone())
	return b
}

// Description sets the display-only policy description.
func (b *Builder) Description(v string) *Builder {
	b.d.description = some(v)
	return b
}

// DocumentationReferences stores a copy of refs, keeping their order.
func (b *Builder) DocumentationReferences(refs []string) *Builder {
	b.d.docRefs = some(append([]string{}, refs...))
	return b
}

// URL sets the location hint for the policy document.
func (b *Builder) URL(v string) *Builder {
	b.d.url = some(v)
	return b
}

// Notice sets the user notice text.
func (b *Builder) Notice(v string) *Builder {
	b.d.notice = some(v)
	return b
}

// Build returns the immutable Descriptor.
func (b *Builder) Build() (*Descriptor, error) {
	if b.d.identifier == "" {
		return nil, NewError(KindInvalidArgument, "POLICY-ARG-001", "policy identifier is required")
	}
	out := b.d.clone()
	return &out, nil
}
