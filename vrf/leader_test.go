package vrf

import "testing"

func testSelector(stakes []uint64) (*LeaderSelector, []Keypair) {
	keys := GenerateTestKeys(len(stakes))
	validators := make([]Validator, len(stakes))
	for i := range stakes {
		validators[i] = Validator{PublicKey: keys[i].Public, Stake: stakes[i]}
	}
	return NewLeaderSelector(validators), keys
}

func TestSelectLeaderWalksCumulativeStake(t *testing.T) {
	sel, keys := testSelector([]uint64{100, 200, 300})
	if sel.TotalStake() != 600 {
		t.Fatalf("TotalStake = %d, want 600", sel.TotalStake())
	}

	// Craft outputs landing in each validator's stake interval.
	mk := func(v uint64) Output {
		var o Output
		for i := 0; i < 8; i++ {
			o[i] = byte(v >> (8 * i))
		}
		return o
	}

	cases := []struct {
		draw uint64
		want PublicKey
	}{
		{0, keys[0].Public},
		{99, keys[0].Public},
		{100, keys[1].Public},
		{299, keys[1].Public},
		{300, keys[2].Public},
		{599, keys[2].Public},
	}
	for _, tc := range cases {
		got, ok := sel.SelectLeader(mk(tc.draw))
		if !ok {
			t.Fatalf("SelectLeader(draw=%d) found no leader", tc.draw)
		}
		if got != tc.want {
			t.Fatalf("SelectLeader(draw=%d) picked wrong validator", tc.draw)
		}
	}
}

func TestSelectLeaderEmptyAndZeroStake(t *testing.T) {
	empty := NewLeaderSelector(nil)
	if _, ok := empty.SelectLeader(Output{}); ok {
		t.Fatalf("empty selector returned a leader")
	}

	zero, _ := testSelector([]uint64{0, 0})
	if _, ok := zero.SelectLeader(Output{}); ok {
		t.Fatalf("zero-stake selector returned a leader")
	}
}

func TestSelectLeaderDeterministic(t *testing.T) {
	sel, keys := testSelector([]uint64{50, 50, 50, 50})
	_, output := keys[0].Private.Prove([]byte("round 1"))

	first, ok := sel.SelectLeader(output)
	if !ok {
		t.Fatalf("no leader selected")
	}
	for i := 0; i < 5; i++ {
		again, _ := sel.SelectLeader(output)
		if again != first {
			t.Fatalf("selection not deterministic on repeat %d", i)
		}
	}
}

func TestIsEligible(t *testing.T) {
	sel, keys := testSelector([]uint64{900, 100})

	// threshold 1.0 with probability 0 output: the 90% validator is eligible.
	var low Output
	if !sel.IsEligible(keys[0].Public, low, 1.0) {
		t.Fatalf("high-stake validator with zero-probability output not eligible")
	}

	// A maxed-out output (probability ~1) is never below any share.
	var high Output
	for i := 0; i < 8; i++ {
		high[i] = 0xFF
	}
	if sel.IsEligible(keys[0].Public, high, 1.0) {
		t.Fatalf("probability ~1 output deemed eligible")
	}

	// Unknown validator is never eligible.
	_, stranger := GenerateKeypair([]byte("stranger"))
	if sel.IsEligible(stranger, low, 1.0) {
		t.Fatalf("unknown validator deemed eligible")
	}

	// Zero threshold disables eligibility.
	if sel.IsEligible(keys[0].Public, low, 0) {
		t.Fatalf("zero threshold deemed eligible")
	}
}
