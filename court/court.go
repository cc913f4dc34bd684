// Package court implements parsing for BPI court agreements, the governance
// documents that fix proof-of-effort weights, consensus policy, and fee
// splits for a mesh deployment.
//
// The format is a strict line-oriented text document. Strictness is the
// point: agreements are hashed and stored content-addressed, so any two
// byte-identical agreements must parse identically and cosmetic variation
// is rejected rather than normalized.
package court

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bpimesh.org/mesh/econ"
	"bpimesh.org/mesh/poe"
)

const (
	preamble  = "-----BEGIN BPI COURT AGREEMENT-----"
	postamble = "-----END BPI COURT AGREEMENT-----"
)

// ConsensusPolicy carries the agreement's consensus parameters.
type ConsensusPolicy struct {
	MinValidatorSignatures int
	ConsensusThreshold     float64
}

// Agreement is a parsed court agreement.
type Agreement struct {
	Meta      map[string]string
	Weights   map[string]float64
	Scales    map[string]float64
	Consensus ConsensusPolicy
	Fees      econ.FeeSplit
}

// sectionOrder is the fixed order sections must appear in.
var sectionOrder = []string{"META", "WEIGHTS", "SCALES", "CONSENSUS", "FEES"}

// Parse parses a court agreement from bytes.
func Parse(data []byte) (*Agreement, error) {
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, errors.New("BOM not allowed")
	}
	if bytes.Contains(data, []byte("\r")) {
		return nil, errors.New("CR line endings not allowed")
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) > 0 && (line[len(line)-1] == ' ' || line[len(line)-1] == '\t') {
			return nil, errors.New("trailing whitespace forbidden")
		}
	}
	if !bytes.HasPrefix(data, []byte(preamble)) {
		return nil, errors.New("missing court agreement preamble")
	}
	if !bytes.HasSuffix(bytes.TrimSpace(data), []byte(postamble)) {
		return nil, errors.New("missing court agreement postamble")
	}

	sectionRank := make(map[string]int, len(sectionOrder))
	for i, s := range sectionOrder {
		sectionRank[s] = i
	}

	a := &Agreement{
		Meta:    make(map[string]string),
		Weights: make(map[string]float64),
		Scales:  make(map[string]float64),
	}
	reader := bufio.NewReader(bytes.NewReader(data))
	currSection := ""
	lastRank := -1
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		line = strings.TrimSpace(line)

		if rank, isSection := sectionRank[line]; isSection {
			if rank <= lastRank {
				return nil, fmt.Errorf("section %s out of order", line)
			}
			currSection = line
			lastRank = rank
			if err != nil {
				break
			}
			continue
		}

		if currSection != "" && strings.Contains(line, ": ") {
			kv := strings.SplitN(line, ": ", 2)
			if pErr := a.setField(currSection, kv[0], kv[1]); pErr != nil {
				return nil, pErr
			}
		}
		if err != nil {
			break
		}
	}
	if lastRank != len(sectionOrder)-1 {
		return nil, errors.New("agreement is missing sections")
	}
	return a, nil
}

func (a *Agreement) setField(section, key, value string) error {
	switch section {
	case "META":
		a.Meta[key] = value
		return nil
	case "WEIGHTS", "SCALES":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid %s value for %s: %q", section, key, value)
		}
		if section == "WEIGHTS" {
			a.Weights[key] = f
		} else {
			a.Scales[key] = f
		}
		return nil
	case "CONSENSUS":
		switch key {
		case "MinValidatorSignatures":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return fmt.Errorf("invalid MinValidatorSignatures: %q", value)
			}
			a.Consensus.MinValidatorSignatures = n
		case "ConsensusThreshold":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid ConsensusThreshold: %q", value)
			}
			a.Consensus.ConsensusThreshold = f
		default:
			return fmt.Errorf("unknown CONSENSUS key: %q", key)
		}
		return nil
	case "FEES":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid FEES value for %s: %q", key, value)
		}
		switch key {
		case "TotalFeeBP":
			a.Fees.TotalFeeBP = n
		case "MinerLockedBP":
			a.Fees.MinerLockedBP = n
		case "MinerSpendableBP":
			a.Fees.MinerSpendableBP = n
		case "OwnerSalaryBP":
			a.Fees.OwnerSalaryBP = n
		case "TreasuryNetBP":
			a.Fees.TreasuryNetBP = n
		default:
			return fmt.Errorf("unknown FEES key: %q", key)
		}
		return nil
	default:
		return nil
	}
}

// PoEWeights builds validated proof-of-effort weights from the WEIGHTS
// section, overlaid on the defaults.
func (a *Agreement) PoEWeights() (poe.Weights, error) {
	return poe.WeightsFromCourtConfig(a.Weights)
}

// PoEScales builds validated normalization scales from the SCALES section,
// overlaid on the defaults.
func (a *Agreement) PoEScales() (poe.Scales, error) {
	return poe.ScalesFromCourtConfig(a.Scales)
}

// FeePolicy returns the FEES section as an econ fee split.
func (a *Agreement) FeePolicy() econ.FeeSplit {
	return a.Fees
}

// Validate cross-checks the agreement: weights and scales must be valid,
// the fee split must balance, and the consensus threshold must lie in
// (0.5, 1].
func (a *Agreement) Validate() error {
	if _, err := a.PoEWeights(); err != nil {
		return err
	}
	if _, err := a.PoEScales(); err != nil {
		return err
	}
	if err := a.Fees.Validate(); err != nil {
		return err
	}
	t := a.Consensus.ConsensusThreshold
	if t <= 0.5 || t > 1.0 {
		return fmt.Errorf("consensus threshold %v outside (0.5, 1]", t)
	}
	if a.Consensus.MinValidatorSignatures < 1 {
		return errors.New("MinValidatorSignatures must be at least 1")
	}
	return nil
}

// Calculator builds a poe.Calculator from the agreement's weights and
// scales.
func (a *Agreement) Calculator() (*poe.Calculator, error) {
	w, err := a.PoEWeights()
	if err != nil {
		return nil, err
	}
	s, err := a.PoEScales()
	if err != nil {
		return nil, err
	}
	return poe.NewCalculator(w, s)
}
