// Package bundle moves policy documents between stores as a deterministic TAR
// archive. Each document is a documents/<cid> entry; index.json names which
// signature policy identifier each document belongs to.
package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gowebpki/jcs"
	"github.com/ipfs/go-cid"

	"xdao.co/sigpolicy/cidutil"
	"xdao.co/sigpolicy/storage"
)

// FormatVersion is the current index.json schema version.
const FormatVersion = 1

const (
	indexName      = "index.json"
	documentPrefix = "documents/"
)

var epoch0 = time.Unix(0, 0).UTC()

// Entry binds a policy identifier to the stored bytes of its document.
type Entry struct {
	Identifier string `json:"identifier"`
	CID        string `json:"cid"`
	Size       int    `json:"size"`
	MediaType  string `json:"mediaType,omitempty"`
}

// Index is the decoded index.json of a bundle.
type Index struct {
	Version   int     `json:"version"`
	CIDCodec  string  `json:"cidCodec"`
	Multihash string  `json:"multihash"`
	Policies  []Entry `json:"policies"`
}

// Export writes the documents referenced by entries to w. Size is filled in
// from the store; Identifier and CID are required.
//
// Output is byte-for-byte deterministic for a given set of entries: documents
// are written in CID order, policies in identifier order and TAR headers are
// normalized.
func Export(ctx context.Context, w io.Writer, store storage.Store, entries []Entry) error {
	if store == nil {
		return fmt.Errorf("bundle: nil store")
	}

	ids := map[string]cid.Cid{}
	byIdentifier := map[string]Entry{}
	for _, e := range entries {
		if e.Identifier == "" {
			return fmt.Errorf("bundle: entry without identifier")
		}
		if _, dup := byIdentifier[e.Identifier]; dup {
			return fmt.Errorf("bundle: duplicate identifier %q", e.Identifier)
		}
		id, err := cid.Decode(e.CID)
		if err != nil || !id.Defined() {
			return storage.ErrInvalidCID
		}
		e.CID = id.String()
		ids[e.CID] = id
		byIdentifier[e.Identifier] = e
	}

	keys := make([]string, 0, len(ids))
	for k := range ids {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tar.NewWriter(w)
	sizes := make(map[string]int, len(keys))
	for _, k := range keys {
		doc, err := store.Get(ctx, ids[k])
		if err != nil {
			_ = tw.Close()
			return fmt.Errorf("bundle: %s: %w", k, err)
		}
		if cidutil.String(doc) != k {
			_ = tw.Close()
			return storage.ErrCIDMismatch
		}
		if err := writeFile(tw, documentPrefix+k, doc); err != nil {
			_ = tw.Close()
			return err
		}
		sizes[k] = len(doc)
	}

	idx := Index{
		Version:   FormatVersion,
		CIDCodec:  "raw",
		Multihash: "sha2-256",
		Policies:  make([]Entry, 0, len(byIdentifier)),
	}
	for _, e := range byIdentifier {
		e.Size = sizes[e.CID]
		idx.Policies = append(idx.Policies, e)
	}
	sort.Slice(idx.Policies, func(i, j int) bool {
		return idx.Policies[i].Identifier < idx.Policies[j].Identifier
	})

	b, err := marshalIndex(idx)
	if err != nil {
		_ = tw.Close()
		return err
	}
	if err := writeFile(tw, indexName, b); err != nil {
		_ = tw.Close()
		return err
	}
	return tw.Close()
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown skips unknown entries instead of failing.
	IgnoreUnknown bool
}

// Import reads a bundle from r, writes every document into store and returns
// the bundle index. Each document is checked against both its entry name and
// the CID the store reports. An index that names a document the bundle does
// not carry (and the store does not already hold) is an error.
func Import(ctx context.Context, r io.Reader, store storage.Store, opts ImportOptions) (*Index, error) {
	if store == nil {
		return nil, fmt.Errorf("bundle: nil store")
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var idx *Index

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return nil, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return nil, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		if name == indexName {
			if idx != nil {
				return nil, fmt.Errorf("bundle: duplicate %s", indexName)
			}
			b, err := io.ReadAll(tr)
			if err != nil {
				return nil, err
			}
			idx = &Index{}
			if err := json.Unmarshal(b, idx); err != nil {
				return nil, fmt.Errorf("bundle: decode %s: %w", indexName, err)
			}
			if idx.Version != FormatVersion {
				return nil, fmt.Errorf("bundle: unsupported index version %d", idx.Version)
			}
			continue
		}

		if !strings.HasPrefix(name, documentPrefix) {
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return nil, fmt.Errorf("bundle: unknown entry: %s", name)
		}

		id, err := cid.Decode(strings.TrimPrefix(name, documentPrefix))
		if err != nil || !id.Defined() {
			return nil, storage.ErrInvalidCID
		}
		key := id.String()
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("bundle: duplicate document entry: %s", key)
		}
		seen[key] = struct{}{}

		doc, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		if cidutil.String(doc) != key {
			return nil, storage.ErrCIDMismatch
		}
		putID, err := store.Put(ctx, doc)
		if err != nil {
			return nil, err
		}
		if putID.String() != key {
			return nil, storage.ErrCIDMismatch
		}
	}

	if idx == nil {
		return nil, fmt.Errorf("bundle: missing %s", indexName)
	}
	for _, e := range idx.Policies {
		if _, ok := seen[e.CID]; ok {
			continue
		}
		id, err := cid.Decode(e.CID)
		if err != nil {
			return nil, storage.ErrInvalidCID
		}
		if !store.Has(ctx, id) {
			return nil, fmt.Errorf("bundle: policy %q references missing document %s", e.Identifier, e.CID)
		}
	}
	return idx, nil
}

func marshalIndex(idx Index) ([]byte, error) {
	b, err := json.Marshal(idx)
	if err != nil {
		return nil, err
	}
	b, err = jcs.Transform(b)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
