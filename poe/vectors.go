package poe

import (
	"fmt"
	"math"
)

// TestVector is a golden Φ/Γ/NEX fixture under default weights and scales.
type TestVector struct {
	Name          string        `json:"name"`
	Usage         ResourceUsage `json:"usage"`
	ExpectedPhi   float64       `json:"expected_phi"`
	ExpectedGamma float64       `json:"expected_gamma"`
	ExpectedNEX   float64       `json:"expected_nex"`
}

// vectorEpsilon is the comparison tolerance for golden vectors.
const vectorEpsilon = 1e-3

// GoldenVectors returns the frozen conformance vectors. Expected values
// assume default weights/scales, kWindow=1000, adoptionFactor=1.
func GoldenVectors() []TestVector {
	return []TestVector{
		{
			Name: "basic_computation",
			Usage: ResourceUsage{
				CPUMillis:     1000,
				MemoryMBSec:   500,
				StorageGBDay:  1.0,
				EgressMB:      10.0,
				ReceiptsCount: 100,
			},
			ExpectedPhi:   0.925,
			ExpectedGamma: 0.4805194805194805,
			ExpectedNEX:   480.5194805194805,
		},
		{
			Name:          "zero_usage",
			Usage:         ResourceUsage{},
			ExpectedPhi:   0,
			ExpectedGamma: 0,
			ExpectedNEX:   0,
		},
		{
			Name: "high_cpu_usage",
			Usage: ResourceUsage{
				CPUMillis:     10000,
				MemoryMBSec:   100,
				StorageGBDay:  0.1,
				EgressMB:      1.0,
				ReceiptsCount: 10,
			},
			ExpectedPhi:   3.5650000000000004,
			ExpectedGamma: 0.7809419496166484,
			ExpectedNEX:   780.9419496166484,
		},
	}
}

// Verify checks the vector against calc within vectorEpsilon.
func (v TestVector) Verify(calc *Calculator) error {
	phi, gamma, nex := calc.CalculatePoE(v.Usage)
	if math.Abs(phi-v.ExpectedPhi) > vectorEpsilon {
		return fmt.Errorf("poe: vector %q phi = %v, want %v", v.Name, phi, v.ExpectedPhi)
	}
	if math.Abs(gamma-v.ExpectedGamma) > vectorEpsilon {
		return fmt.Errorf("poe: vector %q gamma = %v, want %v", v.Name, gamma, v.ExpectedGamma)
	}
	if math.Abs(nex-v.ExpectedNEX) > vectorEpsilon {
		return fmt.Errorf("poe: vector %q nex = %v, want %v", v.Name, nex, v.ExpectedNEX)
	}
	return nil
}
