package vrf

// Validator pairs a VRF public key with its stake weight.
type Validator struct {
	PublicKey PublicKey
	Stake     uint64
}

// LeaderSelector performs stake-weighted leader selection over a fixed
// validator list. Order matters: selection walks cumulative stake in slice
// order, so callers MUST supply a canonical ordering.
type LeaderSelector struct {
	validators []Validator
	totalStake uint64
}

// NewLeaderSelector builds a selector over validators.
func NewLeaderSelector(validators []Validator) *LeaderSelector {
	var total uint64
	for _, v := range validators {
		total += v.Stake
	}
	return &LeaderSelector{
		validators: append([]Validator(nil), validators...),
		totalStake: total,
	}
}

// TotalStake returns the summed stake.
func (s *LeaderSelector) TotalStake() uint64 { return s.totalStake }

// ValidatorCount returns the number of validators.
func (s *LeaderSelector) ValidatorCount() int { return len(s.validators) }

// SelectLeader picks the validator whose cumulative stake interval contains
// the output's uniform draw. Returns false when the set is empty or carries
// no stake.
func (s *LeaderSelector) SelectLeader(output Output) (PublicKey, bool) {
	if len(s.validators) == 0 || s.totalStake == 0 {
		return PublicKey{}, false
	}

	draw := output.UniformUint64(s.totalStake)
	var cumulative uint64
	for _, v := range s.validators {
		cumulative += v.Stake
		if draw < cumulative {
			return v.PublicKey, true
		}
	}
	// Unreachable when stakes sum to totalStake.
	return s.validators[len(s.validators)-1].PublicKey, true
}

// IsEligible reports whether pk may propose given its VRF output: the
// output probability must fall below the validator's stake share scaled by
// threshold. Unknown or zero-stake validators are never eligible.
func (s *LeaderSelector) IsEligible(pk PublicKey, output Output, threshold float64) bool {
	if s.totalStake == 0 || threshold <= 0 {
		return false
	}
	var stake uint64
	for _, v := range s.validators {
		if v.PublicKey == pk {
			stake = v.Stake
			break
		}
	}
	if stake == 0 {
		return false
	}
	share := float64(stake) / float64(s.totalStake)
	return output.Probability() < share*threshold
}
