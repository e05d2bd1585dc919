// Package validate checks a signature policy descriptor against its policy
// document: it resolves the document bytes and compares their digest with the
// one the signature declared.
package validate

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/sigpolicy/cidutil"
	"xdao.co/sigpolicy/compliance"
	"xdao.co/sigpolicy/digest"
	"xdao.co/sigpolicy/fetch"
	"xdao.co/sigpolicy/internal/metrics"
	"xdao.co/sigpolicy/policy"
	"xdao.co/sigpolicy/storage"
)

// Status is the outcome of validating one descriptor. Only StatusValid,
// StatusZeroHash and StatusImplicit count as passing.
type Status string

const (
	StatusImplicit             Status = "implicit"
	StatusImplicitRejected     Status = "implicit_rejected"
	StatusZeroHash             Status = "zero_hash"
	StatusNoDigest             Status = "no_digest"
	StatusUnsupportedAlgorithm Status = "unsupported_algorithm"
	StatusContentUnavailable   Status = "content_unavailable"
	StatusDigestMismatch       Status = "digest_mismatch"
	StatusValid                Status = "valid"
)

// Source names where the policy document bytes came from.
type Source string

const (
	SourceNone       Source = ""
	SourceDescriptor Source = "descriptor"
	SourceStore      Source = "store"
	SourceProvider   Source = "provider"
	SourceFetch      Source = "fetch"
)

// Result is the outcome of one validation.
type Result struct {
	// Descriptor is the input descriptor, rebuilt with the resolved content
	// attached when the document was found outside the descriptor.
	Descriptor *policy.Descriptor
	Status     Status
	Source     Source

	// Computed is the digest of the resolved content; zero when nothing was computed.
	Computed policy.Digest
	// ContentCID is the store key of the resolved content, cid.Undef when none.
	ContentCID cid.Cid

	// Reasons records retrieval failures and other notes, in the order they occurred.
	Reasons []string
}

// OK reports whether the outcome is acceptable without further review.
func (r *Result) OK() bool {
	switch r.Status {
	case StatusValid, StatusZeroHash, StatusImplicit:
		return true
	default:
		return false
	}
}

// ErrStrict is wrapped by every strict-mode rejection.
var ErrStrict = errors.New("validate: strict mode rejected outcome")

// StrictError reports the status strict mode refused to accept.
type StrictError struct {
	Status Status
}

func (e *StrictError) Error() string {
	return fmt.Sprintf("strict mode: policy status %s", e.Status)
}

func (e *StrictError) Unwrap() error { return ErrStrict }

// Engine resolves policy documents and compares digests.
//
// Every collaborator is optional. A missing Fetcher, Store or Provider simply
// removes that source from content resolution.
type Engine struct {
	Fetcher  fetch.Fetcher
	Store    storage.Store
	Provider *fetch.Provider

	Mode           compliance.ComplianceMode
	RejectImplicit bool
	// StoreFetched writes documents obtained from the provider or a fetch into
	// Store once they match the declared digest.
	StoreFetched bool

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Validate evaluates d. In strict mode a non-OK outcome is returned together
// with a *StrictError, so callers can still report it.
func (e *Engine) Validate(ctx context.Context, d *policy.Descriptor) (*Result, error) {
	if d == nil {
		return nil, policy.NewError(policy.KindInvalidArgument, "VALIDATE-ARG-001", "nil descriptor")
	}
	start := time.Now()
	res, err := e.evaluate(ctx, d)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	e.Metrics.ObserveValidation(string(res.Status), elapsed)
	e.logger().Debug("policy validated",
		zap.String("identifier", d.Identifier()),
		zap.String("status", string(res.Status)),
		zap.String("source", string(res.Source)),
		zap.Strings("reasons", res.Reasons),
		zap.Duration("elapsed", elapsed),
	)

	if e.Mode == compliance.Strict && !res.OK() {
		return res, &StrictError{Status: res.Status}
	}
	return res, nil
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Engine) evaluate(ctx context.Context, d *policy.Descriptor) (*Result, error) {
	res := &Result{Descriptor: d}

	if d.IsImplicit() {
		res.Status = StatusImplicit
		if e.RejectImplicit {
			res.Status = StatusImplicitRejected
		}
		return res, nil
	}
	if d.IsZeroHash() {
		res.Status = StatusZeroHash
		return res, nil
	}
	want, ok := d.Digest()
	if !ok {
		res.Status = StatusNoDigest
		return res, nil
	}
	if !digest.Supported(want.Algorithm) {
		res.Status = StatusUnsupportedAlgorithm
		res.Reasons = append(res.Reasons, "cannot compute digest algorithm "+want.Algorithm)
		return res, nil
	}

	doc, src := e.resolveContent(ctx, d, want, res)
	if doc == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Status = StatusContentUnavailable
		return res, nil
	}
	res.Source = src

	data := doc.Bytes()
	computed, err := digest.Compute(want.Algorithm, data)
	if err != nil {
		return nil, err
	}
	res.Computed = computed
	if id, err := cidutil.ForBytes(data); err == nil {
		res.ContentCID = id
	}

	if subtle.ConstantTimeCompare(computed.Value, want.Value) != 1 {
		res.Status = StatusDigestMismatch
		res.Reasons = append(res.Reasons, fmt.Sprintf("declared %s, computed %s", want, computed))
	} else {
		res.Status = StatusValid
		e.storeFetched(ctx, src, data, res)
	}

	if src != SourceDescriptor {
		withContent, err := d.ToBuilder().Content(doc).Build()
		if err != nil {
			return nil, err
		}
		res.Descriptor = withContent
	}
	return res, nil
}

// resolveContent tries, in order: the descriptor's own content, the store
// keyed by the declared sha256 digest, the configured provider, and the URL.
func (e *Engine) resolveContent(ctx context.Context, d *policy.Descriptor, want policy.Digest, res *Result) (*policy.Document, Source) {
	if doc, ok := d.Content(); ok && doc != nil {
		e.Metrics.IncContentSource(string(SourceDescriptor))
		return doc, SourceDescriptor
	}

	if e.Store != nil {
		if id, ok := cidutil.ForDigest(want); ok {
			data, err := e.Store.Get(ctx, id)
			switch {
			case err == nil:
				e.Metrics.IncContentSource(string(SourceStore))
				return policy.NewDocument(id.String(), "application/octet-stream", data), SourceStore
			case !storage.IsNotFound(err):
				res.Reasons = append(res.Reasons, "store: "+err.Error())
			}
		}
	}

	if e.Provider != nil {
		doc, err := e.Provider.Lookup(ctx, d)
		switch {
		case err == nil:
			e.Metrics.IncContentSource(string(SourceProvider))
			return doc, SourceProvider
		case !errors.Is(err, fetch.ErrNotConfigured):
			res.Reasons = append(res.Reasons, "provider: "+err.Error())
		}
	}

	u, hasURL := d.URL()
	if !hasURL || u == "" {
		res.Reasons = append(res.Reasons, "no policy URL declared")
		return nil, SourceNone
	}
	if e.Fetcher == nil {
		res.Reasons = append(res.Reasons, "fetching disabled")
		return nil, SourceNone
	}
	doc, err := e.Fetcher.Fetch(ctx, u)
	if err != nil {
		e.Metrics.IncFetchFailure()
		e.logger().Warn("policy document fetch failed", zap.String("url", u), zap.Error(err))
		res.Reasons = append(res.Reasons, "fetch: "+err.Error())
		return nil, SourceNone
	}
	e.Metrics.IncContentSource(string(SourceFetch))
	return doc, SourceFetch
}

func (e *Engine) storeFetched(ctx context.Context, src Source, data []byte, res *Result) {
	if !e.StoreFetched || e.Store == nil || (src != SourceFetch && src != SourceProvider) {
		return
	}
	id, err := e.Store.Put(ctx, data)
	if err != nil {
		e.logger().Warn("storing policy document failed", zap.Error(err))
		res.Reasons = append(res.Reasons, "store put: "+err.Error())
		return
	}
	e.logger().Debug("policy document stored", zap.Stringer("cid", id))
}
