// Package poe implements the PoE (Proof of Economics) Φ/Γ scoring pipeline:
// a weighted resource-usage scalar Φ, its saturating transform Γ = Φ/(1+Φ),
// and the NEX mint amount K·Γ·A derived for a billing window.
//
// All functions here are pure; the calculator carries only configuration.
package poe

import (
	"fmt"
	"math"
)

// Court-agreement keys for weights and scales.
const (
	KeyCPUMillis     = "cpu_ms"
	KeyMemoryMBSec   = "memory_mb_s"
	KeyStorageGBDay  = "storage_gb_day"
	KeyEgressMB      = "egress_mb"
	KeyReceiptsCount = "receipts_count"
)

// weightSumEpsilon bounds the tolerated drift of the weight sum from 1.
const weightSumEpsilon = 1e-3

// Weights configures the relative importance of each usage component.
// Weights must be in [0,1] and sum to 1 within weightSumEpsilon.
type Weights struct {
	CPUMillis     float64
	MemoryMBSec   float64
	StorageGBDay  float64
	EgressMB      float64
	ReceiptsCount float64
}

// DefaultWeights returns the governance defaults.
func DefaultWeights() Weights {
	return Weights{
		CPUMillis:     0.35,
		MemoryMBSec:   0.15,
		StorageGBDay:  0.15,
		EgressMB:      0.15,
		ReceiptsCount: 0.20,
	}
}

// Validate checks the weight-sum invariant.
func (w Weights) Validate() error {
	for _, v := range []float64{w.CPUMillis, w.MemoryMBSec, w.StorageGBDay, w.EgressMB, w.ReceiptsCount} {
		if v < 0 || v > 1 {
			return fmt.Errorf("poe: weight %v out of [0,1]", v)
		}
	}
	sum := w.CPUMillis + w.MemoryMBSec + w.StorageGBDay + w.EgressMB + w.ReceiptsCount
	if math.Abs(sum-1.0) > weightSumEpsilon {
		return fmt.Errorf("poe: weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// WeightsFromCourtConfig overlays court-agreement values on the defaults
// and re-validates.
func WeightsFromCourtConfig(config map[string]float64) (Weights, error) {
	w := DefaultWeights()
	overlay(config, KeyCPUMillis, &w.CPUMillis)
	overlay(config, KeyMemoryMBSec, &w.MemoryMBSec)
	overlay(config, KeyStorageGBDay, &w.StorageGBDay)
	overlay(config, KeyEgressMB, &w.EgressMB)
	overlay(config, KeyReceiptsCount, &w.ReceiptsCount)
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// Scales holds the per-component normalization divisors. All must be > 0.
type Scales struct {
	CPUMillis     float64
	MemoryMBSec   float64
	StorageGBDay  float64
	EgressMB      float64
	ReceiptsCount float64
}

// DefaultScales returns the governance defaults.
func DefaultScales() Scales {
	return Scales{
		CPUMillis:     1000,
		MemoryMBSec:   1000,
		StorageGBDay:  1,
		EgressMB:      10,
		ReceiptsCount: 100,
	}
}

// Validate checks that every scale is positive.
func (s Scales) Validate() error {
	for _, v := range []float64{s.CPUMillis, s.MemoryMBSec, s.StorageGBDay, s.EgressMB, s.ReceiptsCount} {
		if v <= 0 {
			return fmt.Errorf("poe: scale %v must be positive", v)
		}
	}
	return nil
}

// ScalesFromCourtConfig overlays court-agreement values on the defaults.
func ScalesFromCourtConfig(config map[string]float64) (Scales, error) {
	s := DefaultScales()
	overlay(config, KeyCPUMillis, &s.CPUMillis)
	overlay(config, KeyMemoryMBSec, &s.MemoryMBSec)
	overlay(config, KeyStorageGBDay, &s.StorageGBDay)
	overlay(config, KeyEgressMB, &s.EgressMB)
	overlay(config, KeyReceiptsCount, &s.ReceiptsCount)
	if err := s.Validate(); err != nil {
		return Scales{}, err
	}
	return s, nil
}

func overlay(config map[string]float64, key string, dst *float64) {
	if v, ok := config[key]; ok {
		*dst = v
	}
}

// ResourceUsage aggregates the five metered components over a window.
type ResourceUsage struct {
	CPUMillis     uint64  `json:"cpu_ms"`
	MemoryMBSec   uint64  `json:"memory_mb_s"`
	StorageGBDay  float64 `json:"storage_gb_day"`
	EgressMB      float64 `json:"egress_mb"`
	ReceiptsCount uint64  `json:"receipts_count"`
}

// Add accumulates other into u.
func (u *ResourceUsage) Add(other ResourceUsage) {
	u.CPUMillis += other.CPUMillis
	u.MemoryMBSec += other.MemoryMBSec
	u.StorageGBDay += other.StorageGBDay
	u.EgressMB += other.EgressMB
	u.ReceiptsCount += other.ReceiptsCount
}

// TotalValue returns the unweighted component sum, for display only.
func (u ResourceUsage) TotalValue() float64 {
	return float64(u.CPUMillis) + float64(u.MemoryMBSec) +
		u.StorageGBDay + u.EgressMB + float64(u.ReceiptsCount)
}

// IsZero reports whether every component is zero.
func (u ResourceUsage) IsZero() bool {
	return u.CPUMillis == 0 && u.MemoryMBSec == 0 &&
		u.StorageGBDay == 0 && u.EgressMB == 0 && u.ReceiptsCount == 0
}

// Calculator computes Φ/Γ/NEX under a weight/scale configuration.
type Calculator struct {
	weights Weights
	scales  Scales

	// kWindow is the protocol emission scalar (governance parameter).
	kWindow float64
	// adoptionFactor is the network growth oracle multiplier.
	adoptionFactor float64
}

// NewCalculator validates the configuration and returns a calculator with
// kWindow=1000 and adoptionFactor=1.
func NewCalculator(weights Weights, scales Scales) (*Calculator, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if err := scales.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{
		weights:        weights,
		scales:         scales,
		kWindow:        1000,
		adoptionFactor: 1,
	}, nil
}

// NewDefaultCalculator returns a calculator with governance defaults.
func NewDefaultCalculator() *Calculator {
	c, err := NewCalculator(DefaultWeights(), DefaultScales())
	if err != nil {
		// Defaults always validate.
		panic(err)
	}
	return c
}

// WithKWindow sets the emission scalar and returns the calculator.
func (c *Calculator) WithKWindow(k float64) *Calculator {
	c.kWindow = k
	return c
}

// WithAdoptionFactor sets the adoption multiplier and returns the calculator.
func (c *Calculator) WithAdoptionFactor(a float64) *Calculator {
	c.adoptionFactor = a
	return c
}

// Weights returns the configured weights.
func (c *Calculator) Weights() Weights { return c.weights }

// Scales returns the configured scales.
func (c *Calculator) Scales() Scales { return c.scales }

// Phi computes Φ = Σᵢ wᵢ·(uᵢ/sᵢ).
func (c *Calculator) Phi(usage ResourceUsage) float64 {
	phi := 0.0
	phi += c.weights.CPUMillis * (float64(usage.CPUMillis) / c.scales.CPUMillis)
	phi += c.weights.MemoryMBSec * (float64(usage.MemoryMBSec) / c.scales.MemoryMBSec)
	phi += c.weights.StorageGBDay * (usage.StorageGBDay / c.scales.StorageGBDay)
	phi += c.weights.EgressMB * (usage.EgressMB / c.scales.EgressMB)
	phi += c.weights.ReceiptsCount * (float64(usage.ReceiptsCount) / c.scales.ReceiptsCount)
	return phi
}

// Gamma computes Γ(Φ) = Φ/(1+Φ) ∈ [0,1).
func (c *Calculator) Gamma(phi float64) float64 {
	return phi / (1.0 + phi)
}

// NEXMint computes the mint amount K_window · Γ · A.
func (c *Calculator) NEXMint(gamma float64) float64 {
	return c.kWindow * gamma * c.adoptionFactor
}

// CalculatePoE runs the full Φ → Γ → NEX pipeline.
func (c *Calculator) CalculatePoE(usage ResourceUsage) (phi, gamma, nexMint float64) {
	phi = c.Phi(usage)
	gamma = c.Gamma(phi)
	nexMint = c.NEXMint(gamma)
	return phi, gamma, nexMint
}
