// Package valset maintains consensus validator sets with Merkle-committed
// membership and inclusion proofs.
//
// A set commits to its members through a Merkle root over canonical
// validator leaf encodings; the root is what block headers carry as the
// validator set hash.
package valset

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"bpimesh.org/mesh/blsagg"
	"bpimesh.org/mesh/enc"
	"bpimesh.org/mesh/merkle"
	"bpimesh.org/mesh/vrf"
)

var (
	ErrDuplicateIndex = errors.New("valset: duplicate validator index")
	ErrUnknownIndex   = errors.New("valset: unknown validator index")
	ErrSetFull        = errors.New("valset: validator set is full")
	ErrEmptySet       = errors.New("valset: validator set is empty")
)

// StakeError reports a stake below the configured minimum.
type StakeError struct {
	Stake    uint64
	MinStake uint64
}

func (e *StakeError) Error() string {
	return fmt.Sprintf("valset: stake %d below minimum %d", e.Stake, e.MinStake)
}

// Status is a validator's participation state.
type Status uint8

const (
	StatusActive Status = iota
	StatusInactive
	StatusJailed
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	case StatusJailed:
		return "jailed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Metadata carries operational validator details not covered by the
// commitment.
type Metadata struct {
	Name         string
	Region       string
	RegisteredAt time.Time
	LastActive   time.Time
}

// ValidatorInfo describes one validator.
type ValidatorInfo struct {
	Index     uint64
	BLSPubkey blsagg.PublicKey
	VRFPubkey vrf.PublicKey
	Stake     uint64
	Address   string
	Status    Status
	Metadata  Metadata
}

// LeafBytes returns the canonical commitment encoding:
// index_le || bls_pk || vrf_pk || stake_le.
//
// Address, status, and metadata are deliberately excluded: the commitment
// covers only consensus-relevant identity and weight.
func (v ValidatorInfo) LeafBytes() []byte {
	b := enc.NewBuilder(8 + blsagg.PublicKeySize + vrf.PublicKeySize + 8)
	b.U64(v.Index)
	b.Raw(v.BLSPubkey[:])
	b.Raw(v.VRFPubkey[:])
	b.U64(v.Stake)
	return b.Bytes()
}

// Hash returns the validator's leaf hash under the ValidatorLeaf domain.
func (v ValidatorInfo) Hash() enc.Hash {
	return enc.DomainHash(enc.ValidatorLeaf, v.LeafBytes())
}

// Config bounds set membership.
type Config struct {
	MaxValidators int
	MinStake      uint64
	EpochDuration uint64
}

// DefaultConfig returns the governance defaults.
func DefaultConfig() Config {
	return Config{
		MaxValidators: 100,
		MinStake:      1000,
		EpochDuration: 1000,
	}
}

// Set is a mutable validator set for one epoch.
//
// Iteration and commitment order is ascending validator index. Mutations
// invalidate the cached commitment; SetHash rebuilds it on demand.
type Set struct {
	config     Config
	validators map[uint64]ValidatorInfo
	epoch      uint64
	totalStake uint64

	// commitment cache, invalidated on mutation
	tree    *merkle.Tree
	setHash *enc.Hash
}

// New returns an empty set for epoch with config.
func New(config Config, epoch uint64) *Set {
	return &Set{
		config:     config,
		validators: make(map[uint64]ValidatorInfo),
		epoch:      epoch,
	}
}

// FromValidators builds a set and adds each validator.
func FromValidators(config Config, epoch uint64, validators []ValidatorInfo) (*Set, error) {
	s := New(config, epoch)
	for _, v := range validators {
		if err := s.Add(v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add inserts a validator, enforcing capacity, minimum stake, and index
// uniqueness.
func (s *Set) Add(v ValidatorInfo) error {
	if len(s.validators) >= s.config.MaxValidators {
		return ErrSetFull
	}
	if v.Stake < s.config.MinStake {
		return &StakeError{Stake: v.Stake, MinStake: s.config.MinStake}
	}
	if _, exists := s.validators[v.Index]; exists {
		return ErrDuplicateIndex
	}
	s.validators[v.Index] = v
	s.totalStake += v.Stake
	s.invalidate()
	return nil
}

// Remove deletes the validator at index and returns it.
func (s *Set) Remove(index uint64) (ValidatorInfo, error) {
	v, ok := s.validators[index]
	if !ok {
		return ValidatorInfo{}, ErrUnknownIndex
	}
	delete(s.validators, index)
	s.totalStake -= v.Stake
	s.invalidate()
	return v, nil
}

// Get returns the validator at index.
func (s *Set) Get(index uint64) (ValidatorInfo, bool) {
	v, ok := s.validators[index]
	return v, ok
}

// Has reports whether index is in the set.
func (s *Set) Has(index uint64) bool {
	_, ok := s.validators[index]
	return ok
}

// SetStatus updates a validator's status (not part of the commitment).
func (s *Set) SetStatus(index uint64, status Status) error {
	v, ok := s.validators[index]
	if !ok {
		return ErrUnknownIndex
	}
	v.Status = status
	s.validators[index] = v
	return nil
}

// Len returns the number of validators.
func (s *Set) Len() int { return len(s.validators) }

// TotalStake returns the summed stake of all validators.
func (s *Set) TotalStake() uint64 { return s.totalStake }

// Epoch returns the set's epoch.
func (s *Set) Epoch() uint64 { return s.epoch }

// SetEpoch advances the epoch. The commitment includes the epoch only via
// proofs, so the cache survives.
func (s *Set) SetEpoch(epoch uint64) { s.epoch = epoch }

// Indices returns validator indices in ascending order.
func (s *Set) Indices() []uint64 {
	out := make([]uint64, 0, len(s.validators))
	for idx := range s.validators {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validators returns all validators in ascending index order.
func (s *Set) Validators() []ValidatorInfo {
	indices := s.Indices()
	out := make([]ValidatorInfo, 0, len(indices))
	for _, idx := range indices {
		out = append(out, s.validators[idx])
	}
	return out
}

// ActiveValidators returns validators with StatusActive, in index order.
func (s *Set) ActiveValidators() []ValidatorInfo {
	var out []ValidatorInfo
	for _, v := range s.Validators() {
		if v.Status == StatusActive {
			out = append(out, v)
		}
	}
	return out
}

// LeaderValidators returns (vrf pubkey, stake) pairs for active validators
// in index order, for use with vrf.NewLeaderSelector.
func (s *Set) LeaderValidators() []vrf.Validator {
	active := s.ActiveValidators()
	out := make([]vrf.Validator, 0, len(active))
	for _, v := range active {
		out = append(out, vrf.Validator{PublicKey: v.VRFPubkey, Stake: v.Stake})
	}
	return out
}

func (s *Set) invalidate() {
	s.tree = nil
	s.setHash = nil
}

func (s *Set) buildCommitment() error {
	if s.setHash != nil {
		return nil
	}
	if len(s.validators) == 0 {
		return ErrEmptySet
	}
	leaves := make([]enc.Hash, 0, len(s.validators))
	for _, v := range s.Validators() {
		leaves = append(leaves, v.Hash())
	}
	tree, err := merkle.NewFromHashes(leaves)
	if err != nil {
		return err
	}
	root := tree.Root()
	s.tree = tree
	s.setHash = &root
	return nil
}

// SetHash returns the Merkle root committing to the set's membership.
func (s *Set) SetHash() (enc.Hash, error) {
	if err := s.buildCommitment(); err != nil {
		return enc.Hash{}, err
	}
	return *s.setHash, nil
}
