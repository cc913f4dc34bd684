package sealer

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bpimesh.org/mesh/blsagg"
	"bpimesh.org/mesh/cidutil"
	"bpimesh.org/mesh/consensus"
	"bpimesh.org/mesh/enc"
	"bpimesh.org/mesh/header"
	"bpimesh.org/mesh/poe"
	"bpimesh.org/mesh/storage"
	"bpimesh.org/mesh/storage/localfs"
	"bpimesh.org/mesh/valset"
	"bpimesh.org/mesh/vrf"
)

func testLogBlockJSON(t *testing.T, height uint64, count uint32) []byte {
	t.Helper()
	lb := poe.LogBlock{
		V:          1,
		App:        "app-1",
		Height:     height,
		MerkleRoot: poe.ReceiptsRoot([][]byte{{byte(height)}}),
		Count:      count,
		Range: poe.TimeRange{
			FromTS: "2025-08-01T00:00:00Z",
			ToTS:   "2025-08-01T01:00:00Z",
		},
	}
	b, err := json.Marshal(lb)
	if err != nil {
		t.Fatalf("marshal logblock: %v", err)
	}
	return b
}

// testNet builds n validators whose BLS keys match the returned signer
// slice, plus a genesis header over that set.
func testNet(t *testing.T, n int) (*valset.Set, []blsagg.PrivateKey, *header.Header) {
	t.Helper()
	set := valset.New(valset.DefaultConfig(), 0)
	signers := make([]blsagg.PrivateKey, n)
	for i := 0; i < n; i++ {
		seed := make([]byte, 8)
		binary.LittleEndian.PutUint64(seed, uint64(i+1))
		sk, pk := blsagg.GenerateKeypair(seed)
		_, vpk := vrf.GenerateKeypair(seed)
		signers[i] = sk
		err := set.Add(valset.ValidatorInfo{
			Index:     uint64(i),
			BLSPubkey: pk,
			VRFPubkey: vpk,
			Stake:     5000,
			Status:    valset.StatusActive,
		})
		if err != nil {
			t.Fatalf("add validator %d: %v", i, err)
		}
	}
	setHash, err := set.SetHash()
	if err != nil {
		t.Fatalf("set hash: %v", err)
	}
	genesis := header.Genesis(header.GenesisConfig{
		ChainID:          "testnet",
		Timestamp:        time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		ValidatorSetHash: setHash,
	})
	return set, signers, genesis
}

func testRequest(t *testing.T, set *valset.Set, signers []blsagg.PrivateKey, prev *header.Header) Request {
	t.Helper()
	return Request{
		App: "app-1",
		LogBlocks: []ArtifactRef{
			{Bytes: testLogBlockJSON(t, 1, 10)},
			{Bytes: testLogBlockJSON(t, 2, 20)},
		},
		BillingWindow: "2025-08",
		PrevHeader:    prev,
		Validators:    set,
		Signers:       signers,
		Round:         0,
	}
}

func assertCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	var coded *CodedError
	if !errors.As(err, &coded) {
		t.Fatalf("err = %v, want *CodedError", err)
	}
	if coded.Code != code {
		t.Fatalf("code = %s, want %s (err: %v)", coded.Code, code, err)
	}
	if got := CodeOf(err); got != code {
		t.Fatalf("CodeOf = %s, want %s", got, code)
	}
}

func TestSealHappyPath(t *testing.T) {
	set, signers, genesis := testNet(t, 4)
	sealed, err := Seal(testRequest(t, set, signers, genesis), Options{Mode: consensus.Strict})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if sealed.Header.Height != 1 {
		t.Errorf("height = %d, want 1", sealed.Header.Height)
	}
	if sealed.Header.PrevHash != enc.Hash(genesis.Hash()) {
		t.Error("header does not link to prev")
	}
	if err := header.ValidateChain(genesis, sealed.Header); err != nil {
		t.Errorf("chain validation: %v", err)
	}
	if sealed.Header.ReceiptsRoot.IsZero() {
		t.Error("receipts root is zero")
	}

	if sealed.Bundle.Phi <= 0 {
		t.Errorf("bundle phi = %v, want > 0", sealed.Bundle.Phi)
	}
	if got := len(sealed.Bundle.LogBlocks); got != 2 {
		t.Errorf("bundle logblock roots = %d, want 2", got)
	}

	if sealed.Commit.HeaderHash != sealed.Header.Hash() {
		t.Error("commit is over a different header")
	}
	// All 4 validators signed; threshold for 4 is 3.
	if got := sealed.Commit.SignatureCount(); got != 4 {
		t.Errorf("signature count = %d, want 4", got)
	}
	if !sealed.Verification.IsValid {
		t.Errorf("verification failed: %v", sealed.Verification.Errors)
	}
	if sealed.HeaderCID != "" || sealed.CommitCID != "" || sealed.BundleCID != "" {
		t.Error("CIDs set without a CAS")
	}
}

func TestSealPartialSigners(t *testing.T) {
	set, signers, genesis := testNet(t, 4)
	// Validator 1 abstains; 3 of 4 still clears the threshold.
	signers[1] = blsagg.PrivateKey{}
	sealed, err := Seal(testRequest(t, set, signers, genesis), Options{Mode: consensus.Strict})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if got := sealed.Commit.SignatureCount(); got != 3 {
		t.Errorf("signature count = %d, want 3", got)
	}
}

func TestSealBelowThreshold(t *testing.T) {
	set, signers, genesis := testNet(t, 4)
	signers[1] = blsagg.PrivateKey{}
	signers[2] = blsagg.PrivateKey{}
	_, err := Seal(testRequest(t, set, signers, genesis), Options{})
	if err == nil {
		t.Fatal("Seal succeeded with 2 of 4 signers")
	}
	assertCode(t, err, ErrBelowThreshold)
}

func TestSealStoresArtifacts(t *testing.T) {
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs: %v", err)
	}
	set, signers, genesis := testNet(t, 4)
	sealed, err := Seal(testRequest(t, set, signers, genesis), Options{CAS: cas})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	for _, tc := range []struct {
		name string
		cid  string
	}{
		{"bundle", sealed.BundleCID},
		{"header", sealed.HeaderCID},
		{"commit", sealed.CommitCID},
	} {
		if tc.cid == "" {
			t.Errorf("%s CID not set", tc.name)
			continue
		}
		b, err := hydrate(ArtifactRef{CID: tc.cid}, cas)
		if err != nil {
			t.Errorf("%s not retrievable: %v", tc.name, err)
			continue
		}
		if len(b) == 0 {
			t.Errorf("%s stored empty", tc.name)
		}
	}

	// The stored commit round-trips and still verifies.
	b, err := hydrate(ArtifactRef{CID: sealed.CommitCID}, cas)
	if err != nil {
		t.Fatalf("hydrate commit: %v", err)
	}
	commit, err := consensus.ParseCommit(b)
	if err != nil {
		t.Fatalf("parse stored commit: %v", err)
	}
	if v := consensus.VerifyCommit(commit, set, consensus.Strict); !v.IsValid {
		t.Errorf("stored commit fails verification: %v", v.Errors)
	}
}

func TestSealHydratesLogBlocksFromCAS(t *testing.T) {
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs: %v", err)
	}
	lb := testLogBlockJSON(t, 1, 10)
	id, err := cas.Put(lb)
	if err != nil {
		t.Fatalf("put logblock: %v", err)
	}

	set, signers, genesis := testNet(t, 4)
	req := testRequest(t, set, signers, genesis)
	req.LogBlocks = []ArtifactRef{{CID: id.String()}}
	sealed, err := Seal(req, Options{CAS: cas})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if got := len(sealed.Bundle.LogBlocks); got != 1 {
		t.Errorf("bundle logblock roots = %d, want 1", got)
	}
}

func TestSealRequestValidation(t *testing.T) {
	set, signers, genesis := testNet(t, 4)
	base := func() Request { return testRequest(t, set, signers, genesis) }

	tests := []struct {
		name   string
		mutate func(*Request)
		code   ErrorCode
	}{
		{"empty app", func(r *Request) { r.App = "" }, ErrInvalidRequest},
		{"no logblocks", func(r *Request) { r.LogBlocks = nil }, ErrInvalidRequest},
		{"nil prev header", func(r *Request) { r.PrevHeader = nil }, ErrInvalidRequest},
		{"nil validators", func(r *Request) { r.Validators = nil }, ErrInvalidRequest},
		{"no signers", func(r *Request) { r.Signers = nil }, ErrInvalidRequest},
		{"too many signers", func(r *Request) { r.Signers = make([]blsagg.PrivateKey, 9) }, ErrInvalidRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := base()
			tc.mutate(&req)
			_, err := Seal(req, Options{})
			if err == nil {
				t.Fatal("Seal accepted invalid request")
			}
			assertCode(t, err, tc.code)
		})
	}
}

func TestHydrateRefValidation(t *testing.T) {
	if _, err := hydrate(ArtifactRef{}, nil); err == nil {
		t.Error("empty ref accepted")
	}
	if _, err := hydrate(ArtifactRef{CID: "bafy", Bytes: []byte("x")}, nil); err == nil {
		t.Error("ambiguous ref accepted")
	}

	id, err := cidutil.CIDv1RawSHA256CID([]byte("not stored"))
	if err != nil {
		t.Fatalf("cid: %v", err)
	}
	_, err = hydrate(ArtifactRef{CID: id.String()}, nil)
	assertCode(t, err, ErrMissingCAS)

	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs: %v", err)
	}
	_, err = hydrate(ArtifactRef{CID: id.String()}, cas)
	assertCode(t, err, ErrNotFound)

	_, err = hydrate(ArtifactRef{CID: "not-a-cid"}, cas)
	assertCode(t, err, ErrInvalidCID)
}

func TestSealChainExtension(t *testing.T) {
	set, signers, genesis := testNet(t, 7)
	prev := genesis
	for i := 0; i < 3; i++ {
		sealed, err := Seal(testRequest(t, set, signers, prev), Options{Mode: consensus.Strict})
		if err != nil {
			t.Fatalf("Seal height %d: %v", i+1, err)
		}
		if err := header.ValidateChain(prev, sealed.Header); err != nil {
			t.Fatalf("chain break at height %d: %v", i+1, err)
		}
		prev = sealed.Header
	}
	if prev.Height != 3 {
		t.Errorf("final height = %d, want 3", prev.Height)
	}
}

var _ storage.CAS = (*localfs.CAS)(nil)
