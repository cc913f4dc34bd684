package econ

import (
	"math/big"
	"testing"

	"bpimesh.org/mesh/poe"
)

func TestDefaultFeeSplitValid(t *testing.T) {
	if err := DefaultFeeSplit().Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestValidateRejectsUnbalancedSplit(t *testing.T) {
	f := DefaultFeeSplit()
	f.TreasuryNetBP = 31
	if err := f.Validate(); err == nil {
		t.Fatal("unbalanced split passed validation")
	}
	f = DefaultFeeSplit()
	f.MinerLockedBP = -1
	if err := f.Validate(); err == nil {
		t.Fatal("negative split passed validation")
	}
}

func TestSplitExactAmounts(t *testing.T) {
	// 1_000_000 units: fee 10000, parts 2000/3000/2000/3000
	d, err := DefaultFeeSplit().Split(big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	cases := []struct {
		name string
		got  *big.Int
		want int64
	}{
		{"total fee", d.TotalFee, 10000},
		{"miner locked", d.MinerLocked, 2000},
		{"miner spendable", d.MinerSpendable, 3000},
		{"owner salary", d.OwnerSalary, 2000},
		{"treasury", d.Treasury, 3000},
	}
	for _, tc := range cases {
		if tc.got.Int64() != tc.want {
			t.Errorf("%s = %s, want %d", tc.name, tc.got, tc.want)
		}
	}
}

func TestSplitRemainderGoesToTreasury(t *testing.T) {
	// 10_001: fee = 100, locked/owner = 20, spendable = 30,
	// treasury = 100-20-30-20 = 30
	// 999: fee = 9, locked = 1, spendable = 2, owner = 1, treasury = 5
	for _, amount := range []int64{10_001, 999, 1, 7, 123_456_789} {
		d, err := DefaultFeeSplit().Split(big.NewInt(amount))
		if err != nil {
			t.Fatalf("Split(%d): %v", amount, err)
		}
		if d.Sum().Cmp(d.TotalFee) != 0 {
			t.Errorf("Split(%d): parts sum %s != fee %s", amount, d.Sum(), d.TotalFee)
		}
		if d.Treasury.Sign() < 0 {
			t.Errorf("Split(%d): negative treasury %s", amount, d.Treasury)
		}
	}
}

func TestSplitZeroAmount(t *testing.T) {
	d, err := DefaultFeeSplit().Split(big.NewInt(0))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if d.TotalFee.Sign() != 0 || d.Sum().Sign() != 0 {
		t.Error("zero amount produced nonzero fee")
	}
}

func TestSplitNegativeAmount(t *testing.T) {
	if _, err := DefaultFeeSplit().Split(big.NewInt(-100)); err == nil {
		t.Fatal("negative amount accepted")
	}
}

func TestSplitLargeAmount(t *testing.T) {
	amount, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	d, err := DefaultFeeSplit().Split(amount)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if d.Sum().Cmp(d.TotalFee) != 0 {
		t.Errorf("parts sum %s != fee %s", d.Sum(), d.TotalFee)
	}
}

func TestMintDecision(t *testing.T) {
	calc := poe.NewDefaultCalculator()
	th := DefaultThresholds()

	// heavy usage clears tau_NEX
	heavy := poe.ResourceUsage{CPUMillis: 500_000, MemoryMBSec: 100_000, EgressMB: 1000, ReceiptsCount: 5000}
	m := th.MintDecision(heavy, calc)
	if !m.Minted || m.NEX <= th.TauNEX {
		t.Errorf("heavy usage mint = %+v", m)
	}

	// zero usage mints nothing
	m = th.MintDecision(poe.ResourceUsage{}, calc)
	if m.Minted || m.NEX != 0 {
		t.Errorf("zero usage mint = %+v", m)
	}
	if m.Phi != 0 || m.Gamma != 0 {
		t.Errorf("zero usage phi/gamma = %f/%f", m.Phi, m.Gamma)
	}
}

func TestMintDecisionBelowThreshold(t *testing.T) {
	calc := poe.NewDefaultCalculator()
	th := DefaultThresholds()

	// tiny usage: NEX well under 100
	tiny := poe.ResourceUsage{CPUMillis: 10, ReceiptsCount: 1}
	m := th.MintDecision(tiny, calc)
	if m.Minted {
		t.Errorf("tiny usage minted %f NEX", m.NEX)
	}
	if m.Phi <= 0 || m.Gamma <= 0 {
		t.Error("tiny usage must still report positive phi/gamma")
	}
}
