package bundle_test

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/sigpolicy/cidutil"
	"xdao.co/sigpolicy/storage"
	"xdao.co/sigpolicy/storage/bundle"
)

func put(t *testing.T, s storage.Store, doc string) string {
	t.Helper()
	id, err := s.Put(context.Background(), []byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	return id.String()
}

func TestBundle_ExportIsDeterministic(t *testing.T) {
	ctx := context.Background()
	src := storage.NewMemory()
	a := put(t, src, "policy a")
	b := put(t, src, "policy b")

	var outA, outB bytes.Buffer
	if err := bundle.Export(ctx, &outA, src, []bundle.Entry{
		{Identifier: "1.2.3.2", CID: b},
		{Identifier: "1.2.3.1", CID: a, MediaType: "application/pdf"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := bundle.Export(ctx, &outB, src, []bundle.Entry{
		{Identifier: "1.2.3.1", CID: a, MediaType: "application/pdf"},
		{Identifier: "1.2.3.2", CID: b},
	}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(outA.Bytes(), outB.Bytes()) {
		t.Fatalf("expected deterministic bundle bytes")
	}
}

func TestBundle_ImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := storage.NewMemory()
	id := put(t, src, "policy document")

	var buf bytes.Buffer
	entries := []bundle.Entry{
		{Identifier: "2.16.724.1.3.1.1.2.1.9", CID: id, MediaType: "application/pdf"},
		{Identifier: "https://example.test/policy", CID: id},
	}
	if err := bundle.Export(ctx, &buf, src, entries); err != nil {
		t.Fatal(err)
	}

	dst := storage.NewMemory()
	idx, err := bundle.Import(ctx, bytes.NewReader(buf.Bytes()), dst, bundle.ImportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Policies) != 2 || idx.Policies[0].Identifier != "2.16.724.1.3.1.1.2.1.9" {
		t.Fatalf("unexpected index %+v", idx)
	}
	if idx.Policies[0].Size != len("policy document") || idx.Policies[0].MediaType != "application/pdf" {
		t.Fatalf("unexpected entry %+v", idx.Policies[0])
	}
	if !dst.Has(ctx, mustDecode(t, id)) {
		t.Fatalf("document not imported")
	}
}

func TestBundle_ExportMissingDocument(t *testing.T) {
	missing := cidutil.String([]byte("never stored"))
	err := bundle.Export(context.Background(), &bytes.Buffer{}, storage.NewMemory(), []bundle.Entry{{Identifier: "1.2", CID: missing}})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBundle_ImportRejectsTamperedDocument(t *testing.T) {
	id := cidutil.String([]byte("original"))
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	writeEntry(t, tw, "documents/"+id, []byte("tampered"))
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	_, err := bundle.Import(context.Background(), &buf, storage.NewMemory(), bundle.ImportOptions{})
	if !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
}

func TestBundle_ImportUnknownEntries(t *testing.T) {
	build := func() *bytes.Buffer {
		var buf bytes.Buffer
		tw := tar.NewWriter(&buf)
		writeEntry(t, tw, "notes/readme.txt", []byte("hi"))
		writeEntry(t, tw, "index.json", []byte(`{"version":1,"cidCodec":"raw","multihash":"sha2-256","policies":[]}`))
		if err := tw.Close(); err != nil {
			t.Fatal(err)
		}
		return &buf
	}

	if _, err := bundle.Import(context.Background(), build(), storage.NewMemory(), bundle.ImportOptions{}); err == nil {
		t.Fatalf("expected unknown entry to fail closed")
	}
	if _, err := bundle.Import(context.Background(), build(), storage.NewMemory(), bundle.ImportOptions{IgnoreUnknown: true}); err != nil {
		t.Fatalf("IgnoreUnknown: %v", err)
	}
}

func TestBundle_ImportDanglingIndex(t *testing.T) {
	missing := cidutil.String([]byte("absent"))
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	writeEntry(t, tw, "index.json", []byte(`{"version":1,"cidCodec":"raw","multihash":"sha2-256","policies":[{"identifier":"1.2","cid":"`+missing+`","size":6}]}`))
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := bundle.Import(context.Background(), &buf, storage.NewMemory(), bundle.ImportOptions{}); err == nil {
		t.Fatalf("expected dangling index entry to fail")
	}
}

func writeEntry(t *testing.T, tw *tar.Writer, name string, content []byte) {
	t.Helper()
	hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), ModTime: time.Unix(0, 0), Typeflag: tar.TypeReg}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
}

func mustDecode(t *testing.T, s string) cid.Cid {
	t.Helper()
	id, err := cid.Decode(s)
	if err != nil {
		t.Fatal(err)
	}
	return id
}
