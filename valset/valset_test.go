package valset

import (
	"errors"
	"fmt"
	"testing"

	"bpimesh.org/mesh/blsagg"
	"bpimesh.org/mesh/vrf"
)

func testValidator(t *testing.T, index uint64, stake uint64) ValidatorInfo {
	t.Helper()
	_, blsPub := blsagg.GenerateKeypair([]byte(fmt.Sprintf("valset_bls_%d", index)))
	_, vrfPub := vrf.GenerateKeypair([]byte(fmt.Sprintf("valset_vrf_%d", index)))
	return ValidatorInfo{
		Index:     index,
		BLSPubkey: blsPub,
		VRFPubkey: vrfPub,
		Stake:     stake,
		Address:   fmt.Sprintf("validator-%d.mesh", index),
		Status:    StatusActive,
	}
}

func testSet(t *testing.T, n int) *Set {
	t.Helper()
	s := New(DefaultConfig(), 1)
	for i := 0; i < n; i++ {
		if err := s.Add(testValidator(t, uint64(i), 1000+uint64(i)*500)); err != nil {
			t.Fatalf("add validator %d: %v", i, err)
		}
	}
	return s
}

func TestAddRemoveGet(t *testing.T) {
	s := testSet(t, 4)
	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
	v, ok := s.Get(2)
	if !ok || v.Index != 2 {
		t.Fatalf("Get(2) = %+v, %v", v, ok)
	}

	removed, err := s.Remove(2)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed.Index != 2 {
		t.Errorf("removed index = %d, want 2", removed.Index)
	}
	if s.Has(2) {
		t.Error("Has(2) true after Remove")
	}
	if _, err := s.Remove(2); !errors.Is(err, ErrUnknownIndex) {
		t.Errorf("second Remove error = %v, want ErrUnknownIndex", err)
	}
}

func TestAddRejectsDuplicateIndex(t *testing.T) {
	s := testSet(t, 2)
	err := s.Add(testValidator(t, 1, 5000))
	if !errors.Is(err, ErrDuplicateIndex) {
		t.Fatalf("Add duplicate error = %v, want ErrDuplicateIndex", err)
	}
}

func TestAddRejectsLowStake(t *testing.T) {
	s := New(DefaultConfig(), 1)
	err := s.Add(testValidator(t, 0, 999))
	var se *StakeError
	if !errors.As(err, &se) {
		t.Fatalf("Add error = %v, want *StakeError", err)
	}
	if se.Stake != 999 || se.MinStake != 1000 {
		t.Errorf("StakeError = %+v", se)
	}
}

func TestAddRejectsWhenFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxValidators = 2
	s := New(cfg, 1)
	for i := uint64(0); i < 2; i++ {
		if err := s.Add(testValidator(t, i, 2000)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := s.Add(testValidator(t, 9, 2000)); !errors.Is(err, ErrSetFull) {
		t.Fatalf("Add to full set error = %v, want ErrSetFull", err)
	}
}

func TestTotalStakeTracksMutations(t *testing.T) {
	s := New(DefaultConfig(), 1)
	s.Add(testValidator(t, 0, 1000))
	s.Add(testValidator(t, 1, 2000))
	if s.TotalStake() != 3000 {
		t.Fatalf("TotalStake() = %d, want 3000", s.TotalStake())
	}
	s.Remove(0)
	if s.TotalStake() != 2000 {
		t.Fatalf("TotalStake() after remove = %d, want 2000", s.TotalStake())
	}
}

func TestValidatorsOrderedByIndex(t *testing.T) {
	s := New(DefaultConfig(), 1)
	for _, idx := range []uint64{7, 0, 3, 12} {
		if err := s.Add(testValidator(t, idx, 2000)); err != nil {
			t.Fatalf("add %d: %v", idx, err)
		}
	}
	want := []uint64{0, 3, 7, 12}
	got := s.Validators()
	for i, v := range got {
		if v.Index != want[i] {
			t.Fatalf("Validators()[%d].Index = %d, want %d", i, v.Index, want[i])
		}
	}
}

func TestActiveValidatorsFilterStatus(t *testing.T) {
	s := testSet(t, 3)
	if err := s.SetStatus(1, StatusJailed); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	active := s.ActiveValidators()
	if len(active) != 2 {
		t.Fatalf("ActiveValidators() len = %d, want 2", len(active))
	}
	for _, v := range active {
		if v.Index == 1 {
			t.Error("jailed validator in active list")
		}
	}
	if len(s.LeaderValidators()) != 2 {
		t.Errorf("LeaderValidators() len = %d, want 2", len(s.LeaderValidators()))
	}
}

func TestSetHashDeterministicAndOrderIndependent(t *testing.T) {
	a := New(DefaultConfig(), 1)
	b := New(DefaultConfig(), 1)
	vals := []ValidatorInfo{
		testValidator(t, 0, 1000),
		testValidator(t, 1, 2000),
		testValidator(t, 2, 3000),
	}
	for _, v := range vals {
		if err := a.Add(v); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	for i := len(vals) - 1; i >= 0; i-- {
		if err := b.Add(vals[i]); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	ha, err := a.SetHash()
	if err != nil {
		t.Fatalf("SetHash: %v", err)
	}
	hb, err := b.SetHash()
	if err != nil {
		t.Fatalf("SetHash: %v", err)
	}
	if ha != hb {
		t.Error("set hash depends on insertion order")
	}
}

func TestSetHashChangesOnMutation(t *testing.T) {
	s := testSet(t, 3)
	before, err := s.SetHash()
	if err != nil {
		t.Fatalf("SetHash: %v", err)
	}
	if err := s.Add(testValidator(t, 10, 5000)); err != nil {
		t.Fatalf("add: %v", err)
	}
	after, err := s.SetHash()
	if err != nil {
		t.Fatalf("SetHash: %v", err)
	}
	if before == after {
		t.Error("set hash unchanged after adding validator")
	}
}

func TestSetHashEmptySet(t *testing.T) {
	s := New(DefaultConfig(), 1)
	if _, err := s.SetHash(); !errors.Is(err, ErrEmptySet) {
		t.Fatalf("SetHash on empty set error = %v, want ErrEmptySet", err)
	}
}

func TestInclusionProof(t *testing.T) {
	s := testSet(t, 5)
	root, err := s.SetHash()
	if err != nil {
		t.Fatalf("SetHash: %v", err)
	}
	for _, idx := range s.Indices() {
		p, err := s.InclusionProof(idx)
		if err != nil {
			t.Fatalf("InclusionProof(%d): %v", idx, err)
		}
		if !p.Verify(root) {
			t.Errorf("proof for validator %d does not verify", idx)
		}
		v, _ := s.Get(idx)
		if !p.VerifyValidator(v, root) {
			t.Errorf("VerifyValidator failed for validator %d", idx)
		}
	}
}

func TestInclusionProofRejectsWrongValidator(t *testing.T) {
	s := testSet(t, 4)
	root, _ := s.SetHash()
	p, err := s.InclusionProof(1)
	if err != nil {
		t.Fatalf("InclusionProof: %v", err)
	}

	other, _ := s.Get(2)
	if p.VerifyValidator(other, root) {
		t.Error("proof for validator 1 verified against validator 2")
	}

	tampered, _ := s.Get(1)
	tampered.Stake++
	if p.VerifyValidator(tampered, root) {
		t.Error("proof verified with altered stake")
	}
}

func TestInclusionProofRejectsWrongRoot(t *testing.T) {
	s := testSet(t, 4)
	p, err := s.InclusionProof(0)
	if err != nil {
		t.Fatalf("InclusionProof: %v", err)
	}
	other := testSet(t, 3)
	wrongRoot, _ := other.SetHash()
	if p.Verify(wrongRoot) {
		t.Error("proof verified against foreign set hash")
	}
}

func TestInclusionProofUnknownIndex(t *testing.T) {
	s := testSet(t, 2)
	if _, err := s.InclusionProof(99); !errors.Is(err, ErrUnknownIndex) {
		t.Fatalf("InclusionProof(99) error = %v, want ErrUnknownIndex", err)
	}
}

func TestLeafBytesLayout(t *testing.T) {
	v := testValidator(t, 0x0102030405060708, 0x1122334455667788)
	leaf := v.LeafBytes()
	wantLen := 8 + blsagg.PublicKeySize + vrf.PublicKeySize + 8
	if len(leaf) != wantLen {
		t.Fatalf("leaf length = %d, want %d", len(leaf), wantLen)
	}
	// little-endian index prefix
	if leaf[0] != 0x08 || leaf[7] != 0x01 {
		t.Errorf("index not little-endian: % x", leaf[:8])
	}
	// little-endian stake suffix
	if leaf[wantLen-8] != 0x88 || leaf[wantLen-1] != 0x11 {
		t.Errorf("stake not little-endian: % x", leaf[wantLen-8:])
	}
}
