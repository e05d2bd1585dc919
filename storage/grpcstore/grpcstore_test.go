package grpcstore

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/sigpolicy/cidutil"
	"xdao.co/sigpolicy/internal/metrics"
	"xdao.co/sigpolicy/storage"
	"xdao.co/sigpolicy/storage/localfs"
	"xdao.co/sigpolicy/storage/testkit"
)

func newBufconnClient(t *testing.T, backing storage.Store) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterPolicyStoreServer(srv, &Server{Store: backing})
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.DialContext(ctx) }
	cc, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c := NewClient(cc)
	c.Timeout = 2 * time.Second
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGRPCStore_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		return newBufconnClient(t, storage.NewMemory())
	})
}

func TestGRPCStore_LocalFSRoundTrip(t *testing.T) {
	backing, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	c := newBufconnClient(t, backing)
	ctx := context.Background()

	payload := []byte("hello policy store")
	id, err := c.Put(ctx, payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !backing.Has(ctx, id) {
		t.Fatalf("document not persisted in backing store")
	}
	got, err := c.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestGRPCStore_MissingBackingStore(t *testing.T) {
	c := newBufconnClient(t, nil)
	if _, err := c.Put(context.Background(), []byte("x")); err == nil {
		t.Fatalf("expected FailedPrecondition error")
	}
}

func TestServer_RecordsStoreOps(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	srv := &Server{Store: storage.NewMemory(), Metrics: m}
	ctx := context.Background()

	if _, err := srv.Put(ctx, wrapperspb.Bytes([]byte("doc"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	missing, _ := cidutil.ForBytes([]byte("absent"))
	_, err = srv.Get(ctx, wrapperspb.String(missing.String()))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{`method="Put",result="ok"`, `method="Get",result="NotFound"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %s:\n%s", want, body)
		}
	}
}
