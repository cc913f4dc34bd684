package grpccas

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"bpimesh.org/mesh/cidutil"
	"bpimesh.org/mesh/storage"
	"bpimesh.org/mesh/storage/localfs"
)

// testClient wires a Client to an in-process server over bufconn.
func testClient(t *testing.T) *Client {
	t.Helper()

	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterCASServer(srv, &Server{CAS: cas})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(func(ctx context.Context, s string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })

	return &Client{cc: cc, rpc: NewCASClient(cc), Timeout: 2 * time.Second}
}

func TestClient_RoundTrip(t *testing.T) {
	client := testClient(t)

	payload := []byte("hello grpccas")
	id, err := client.Put(payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	want, err := cidutil.CIDv1RawSHA256CID(payload)
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID: %v", err)
	}
	if id != want {
		t.Fatalf("Put CID: got %s want %s", id, want)
	}

	if !client.Has(id) {
		t.Fatal("Has: expected true after Put")
	}
	got, err := client.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("Get bytes: got %q want %q", got, payload)
	}
}

func TestClient_SentinelMapping(t *testing.T) {
	client := testClient(t)

	absent, err := cidutil.CIDv1RawSHA256CID([]byte("never stored"))
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID: %v", err)
	}
	if _, err := client.Get(absent); err != storage.ErrNotFound {
		t.Fatalf("Get of absent object: got %v want %v", err, storage.ErrNotFound)
	}
	if client.Has(absent) {
		t.Fatal("Has of absent object: expected false")
	}

	if _, err := client.Get(cid.Undef); err != storage.ErrInvalidCID {
		t.Fatalf("Get of undef CID: got %v want %v", err, storage.ErrInvalidCID)
	}
	if client.Has(cid.Undef) {
		t.Fatal("Has of undef CID: expected false")
	}
}
