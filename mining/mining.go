// Package mining implements the proof-of-effort mining engine.
//
// A miner converts a billing window's resource usage into Φ/Γ through the
// poe calculator, then searches for a nonce whose blake3 work hash clears
// the difficulty target. Difficulty retargets toward a configured proof
// time; rewards scale with both difficulty and Γ, so effort claims back
// their mint share only when real usage stands behind them.
package mining

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"bpimesh.org/mesh/poe"
)

// Config bounds the engine's behavior.
type Config struct {
	InitialDifficulty          uint64
	TargetProofTime            time.Duration
	MaxProofChainLength        int
	MinValidatorSignatures     int
	BaseReward                 uint64
	DifficultyAdjustmentFactor float64
	ConsensusThreshold         float64
	MaxPendingProofs           int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		InitialDifficulty:          1000,
		TargetProofTime:            10 * time.Second,
		MaxProofChainLength:        1000,
		MinValidatorSignatures:     3,
		BaseReward:                 1_000_000,
		DifficultyAdjustmentFactor: 0.1,
		ConsensusThreshold:         0.67,
		MaxPendingProofs:           100,
	}
}

// Proof is one mined proof of effort.
type Proof struct {
	ID       string
	Phi      float64
	Gamma    float64
	Usage    poe.ResourceUsage
	Nonce    uint64
	Hash     [32]byte
	Reward   uint64
	Attempts uint64
	Elapsed  time.Duration
	MinedAt  time.Time
}

// Stats is a snapshot of the engine's counters.
type Stats struct {
	TotalProofs       uint64
	TotalRewards      uint64
	TotalAttempts     uint64
	AverageProofTime  time.Duration
	CurrentDifficulty uint64
	ChainLength       int
	PendingProofs     int
}

var (
	ErrPendingFull             = errors.New("mining: pending proof pool is full")
	ErrDuplicateProof          = errors.New("mining: proof already pending")
	ErrUnknownProof            = errors.New("mining: unknown pending proof")
	ErrBadWorkHash             = errors.New("mining: work hash does not match proof contents")
	ErrInsufficientEndorsement = errors.New("mining: not enough validator endorsements")
)

// Engine mines proofs of effort over resource usage claims.
//
// An Engine is safe for concurrent use; the proof chain and difficulty are
// guarded by one mutex since mining time dominates.
type Engine struct {
	cfg  Config
	calc *poe.Calculator
	log  *zap.Logger

	mu         sync.Mutex
	difficulty uint64
	chain      []*Proof
	pending    map[string]*Proof
	stats      Stats
	totalTime  time.Duration
}

// NewEngine returns an engine with cfg and calc. A nil logger disables
// logging.
func NewEngine(cfg Config, calc *poe.Calculator, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	difficulty := cfg.InitialDifficulty
	if difficulty < 1 {
		difficulty = 1
	}
	return &Engine{
		cfg:        cfg,
		calc:       calc,
		log:        log,
		difficulty: difficulty,
		pending:    make(map[string]*Proof),
	}
}

// Difficulty returns the current difficulty.
func (e *Engine) Difficulty() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.difficulty
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.CurrentDifficulty = e.difficulty
	s.ChainLength = len(e.chain)
	s.PendingProofs = len(e.pending)
	if s.TotalProofs > 0 {
		s.AverageProofTime = e.totalTime / time.Duration(s.TotalProofs)
	}
	return s
}

// Chain returns a copy of the proof chain, oldest first.
func (e *Engine) Chain() []*Proof {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Proof(nil), e.chain...)
}

// workTarget maps difficulty to the threshold a work hash's leading 8 bytes
// must stay under. Difficulty 1 accepts everything.
func workTarget(difficulty uint64) uint64 {
	if difficulty <= 1 {
		return math.MaxUint64
	}
	return math.MaxUint64 / difficulty
}

// checkInterval is how many nonces are tried between context checks.
const checkInterval = 1024

// MineProof mines one proof for usage.
//
// The work preimage commits to the proof ID, Φ, Γ, and the usage claim, so
// a found nonce is valid only for this exact claim. Mining aborts with the
// context's error when ctx is cancelled.
func (e *Engine) MineProof(ctx context.Context, usage poe.ResourceUsage) (*Proof, error) {
	phi, gamma, _ := e.calc.CalculatePoE(usage)
	id := uuid.NewString()

	e.mu.Lock()
	difficulty := e.difficulty
	e.mu.Unlock()
	target := workTarget(difficulty)

	preimage := proofPreimage(id, phi, gamma, usage)
	start := time.Now()

	var (
		nonce    uint64
		attempts uint64
		hash     [32]byte
	)
	buf := make([]byte, len(preimage)+8)
	copy(buf, preimage)
	for {
		if attempts%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				e.log.Debug("mining aborted",
					zap.String("proof_id", id),
					zap.Uint64("attempts", attempts),
				)
				return nil, err
			}
		}
		binary.LittleEndian.PutUint64(buf[len(preimage):], nonce)
		hash = blake3.Sum256(buf)
		attempts++
		if binary.BigEndian.Uint64(hash[:8]) < target {
			break
		}
		nonce++
	}
	elapsed := time.Since(start)

	proof := &Proof{
		ID:       id,
		Phi:      phi,
		Gamma:    gamma,
		Usage:    usage,
		Nonce:    nonce,
		Hash:     hash,
		Reward:   e.reward(difficulty, gamma),
		Attempts: attempts,
		Elapsed:  elapsed,
		MinedAt:  start.UTC(),
	}

	e.mu.Lock()
	e.appendProofLocked(proof)
	e.retargetLocked(elapsed)
	newDifficulty := e.difficulty
	e.mu.Unlock()

	e.log.Info("proof mined",
		zap.String("proof_id", id),
		zap.Float64("phi", phi),
		zap.Float64("gamma", gamma),
		zap.Uint64("nonce", nonce),
		zap.Uint64("attempts", attempts),
		zap.Duration("elapsed", elapsed),
		zap.Uint64("reward", proof.Reward),
		zap.Uint64("difficulty", newDifficulty),
	)
	return proof, nil
}

// proofPreimage is the canonical work preimage for one proof attempt.
func proofPreimage(id string, phi, gamma float64, usage poe.ResourceUsage) []byte {
	buf := make([]byte, 0, len(id)+2*8+5*8)
	buf = append(buf, id...)
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(phi))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(gamma))
	buf = binary.LittleEndian.AppendUint64(buf, usage.CPUMillis)
	buf = binary.LittleEndian.AppendUint64(buf, usage.MemoryMBSec)
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(usage.StorageGBDay))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(usage.EgressMB))
	buf = binary.LittleEndian.AppendUint64(buf, usage.ReceiptsCount)
	return buf
}

// reward computes the payout for a proof mined at difficulty with Γ.
func (e *Engine) reward(difficulty uint64, gamma float64) uint64 {
	scale := float64(difficulty) / 1000.0
	if scale < 1.0 {
		scale = 1.0
	}
	return uint64(float64(e.cfg.BaseReward) * scale * gamma)
}

func (e *Engine) appendProofLocked(p *Proof) {
	e.chain = append(e.chain, p)
	if max := e.cfg.MaxProofChainLength; max > 0 && len(e.chain) > max {
		e.chain = e.chain[len(e.chain)-max:]
	}
	e.stats.TotalProofs++
	e.stats.TotalRewards += p.Reward
	e.stats.TotalAttempts += p.Attempts
	e.totalTime += p.Elapsed
}

// workHash recomputes the work hash a proof's ID, Φ, Γ, usage, and nonce
// commit to.
func workHash(p *Proof) [32]byte {
	preimage := proofPreimage(p.ID, p.Phi, p.Gamma, p.Usage)
	buf := make([]byte, len(preimage)+8)
	copy(buf, preimage)
	binary.LittleEndian.PutUint64(buf[len(preimage):], p.Nonce)
	return blake3.Sum256(buf)
}

// SubmitProof admits a proof mined elsewhere into the pending pool.
//
// The work hash is recomputed from the proof's contents before admission, so
// a claim whose hash does not stand behind its usage is rejected outright.
// The pool is capped at MaxPendingProofs; pending proofs wait for validator
// endorsement via ConfirmProof.
func (e *Engine) SubmitProof(p *Proof) error {
	if p == nil || p.ID == "" {
		return ErrBadWorkHash
	}
	if workHash(p) != p.Hash {
		return ErrBadWorkHash
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.pending[p.ID]; exists {
		return ErrDuplicateProof
	}
	if max := e.cfg.MaxPendingProofs; max > 0 && len(e.pending) >= max {
		return ErrPendingFull
	}
	e.pending[p.ID] = p
	e.log.Debug("proof pending",
		zap.String("proof_id", p.ID),
		zap.Int("pending", len(e.pending)),
	)
	return nil
}

// ConfirmProof moves a pending proof onto the chain once validators stand
// behind it: at least MinValidatorSignatures endorsements, and the endorsing
// fraction of the validator set clearing ConsensusThreshold.
func (e *Engine) ConfirmProof(id string, endorsements, validators int) (*Proof, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pending[id]
	if !ok {
		return nil, ErrUnknownProof
	}
	if endorsements < e.cfg.MinValidatorSignatures {
		return nil, ErrInsufficientEndorsement
	}
	if th := e.cfg.ConsensusThreshold; th > 0 && validators > 0 &&
		float64(endorsements)/float64(validators) < th {
		return nil, ErrInsufficientEndorsement
	}
	delete(e.pending, id)
	e.appendProofLocked(p)
	e.log.Info("proof confirmed",
		zap.String("proof_id", id),
		zap.Int("endorsements", endorsements),
		zap.Int("validators", validators),
	)
	return p, nil
}

// RejectProof drops a pending proof that failed endorsement.
func (e *Engine) RejectProof(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pending[id]; !ok {
		return ErrUnknownProof
	}
	delete(e.pending, id)
	return nil
}

// PendingCount returns the number of proofs awaiting confirmation.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// retargetLocked nudges difficulty toward TargetProofTime by the configured
// adjustment factor. Difficulty never drops below 1.
func (e *Engine) retargetLocked(elapsed time.Duration) {
	if e.cfg.TargetProofTime <= 0 || e.cfg.DifficultyAdjustmentFactor <= 0 {
		return
	}
	factor := e.cfg.DifficultyAdjustmentFactor
	var next float64
	if elapsed < e.cfg.TargetProofTime {
		next = float64(e.difficulty) * (1 + factor)
	} else {
		next = float64(e.difficulty) * (1 - factor)
	}
	if next < 1 {
		next = 1
	}
	e.difficulty = uint64(next)
}
