// Package econ implements fee distribution and mint gating for the mesh
// economy.
//
// All fee math is exact integer arithmetic on big.Int amounts in the
// smallest token unit. Basis points are taken of the gross transaction
// amount; the four split components sum to the total 1% fee, with any
// rounding remainder assigned to the treasury so distributions always
// balance.
package econ

import (
	"fmt"
	"math/big"

	"bpimesh.org/mesh/poe"
)

const bpDenominator = 10000

// FeeSplit allocates the total fee across recipients, in basis points of
// the gross amount.
type FeeSplit struct {
	TotalFeeBP       int64
	MinerLockedBP    int64
	MinerSpendableBP int64
	OwnerSalaryBP    int64
	TreasuryNetBP    int64
}

// DefaultFeeSplit returns the governance split: a 1% total fee allocated
// 0.2% miner locked, 0.3% miner spendable, 0.2% owner salary, 0.3% treasury.
func DefaultFeeSplit() FeeSplit {
	return FeeSplit{
		TotalFeeBP:       100,
		MinerLockedBP:    20,
		MinerSpendableBP: 30,
		OwnerSalaryBP:    20,
		TreasuryNetBP:    30,
	}
}

// Validate checks that the components sum to the total fee and nothing is
// negative.
func (f FeeSplit) Validate() error {
	for _, bp := range []int64{f.TotalFeeBP, f.MinerLockedBP, f.MinerSpendableBP, f.OwnerSalaryBP, f.TreasuryNetBP} {
		if bp < 0 {
			return fmt.Errorf("econ: negative basis points in fee split")
		}
	}
	sum := f.MinerLockedBP + f.MinerSpendableBP + f.OwnerSalaryBP + f.TreasuryNetBP
	if sum != f.TotalFeeBP {
		return fmt.Errorf("econ: fee split components sum to %d bp, want %d", sum, f.TotalFeeBP)
	}
	return nil
}

// Distribution is the outcome of splitting one transaction's fee.
type Distribution struct {
	TotalFee       *big.Int
	MinerLocked    *big.Int
	MinerSpendable *big.Int
	OwnerSalary    *big.Int
	Treasury       *big.Int
}

func takeBP(amount *big.Int, bp int64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(bp))
	return out.Quo(out, big.NewInt(bpDenominator))
}

// Split computes the fee distribution for amount. Each component is floored
// independently; the treasury absorbs the rounding remainder so the parts
// sum to TotalFee exactly.
func (f FeeSplit) Split(amount *big.Int) (Distribution, error) {
	if err := f.Validate(); err != nil {
		return Distribution{}, err
	}
	if amount.Sign() < 0 {
		return Distribution{}, fmt.Errorf("econ: cannot split negative amount")
	}

	d := Distribution{
		TotalFee:       takeBP(amount, f.TotalFeeBP),
		MinerLocked:    takeBP(amount, f.MinerLockedBP),
		MinerSpendable: takeBP(amount, f.MinerSpendableBP),
		OwnerSalary:    takeBP(amount, f.OwnerSalaryBP),
	}
	d.Treasury = new(big.Int).Set(d.TotalFee)
	d.Treasury.Sub(d.Treasury, d.MinerLocked)
	d.Treasury.Sub(d.Treasury, d.MinerSpendable)
	d.Treasury.Sub(d.Treasury, d.OwnerSalary)
	return d, nil
}

// Sum returns the total of the distributed parts. It always equals TotalFee
// for a distribution produced by Split.
func (d Distribution) Sum() *big.Int {
	out := new(big.Int).Set(d.MinerLocked)
	out.Add(out, d.MinerSpendable)
	out.Add(out, d.OwnerSalary)
	out.Add(out, d.Treasury)
	return out
}

// Thresholds gate token minting on proof-of-effort output.
type Thresholds struct {
	TauNEX float64
	TauFLX float64
	TauGEN float64
}

// DefaultThresholds returns the governance mint activation thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{TauNEX: 100, TauFLX: 50, TauGEN: 500}
}

// Mint is the outcome of evaluating a billing window for minting.
type Mint struct {
	Phi    float64
	Gamma  float64
	NEX    float64
	Minted bool
}

// MintDecision evaluates usage through calc and applies the activation
// rule: NEX is minted only when the Φ-derived amount exceeds τ_NEX.
func (t Thresholds) MintDecision(usage poe.ResourceUsage, calc *poe.Calculator) Mint {
	phi, gamma, nex := calc.CalculatePoE(usage)
	m := Mint{Phi: phi, Gamma: gamma}
	if nex > t.TauNEX {
		m.NEX = nex
		m.Minted = true
	}
	return m
}
