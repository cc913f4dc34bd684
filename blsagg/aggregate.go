package blsagg

// AggregatedSignature carries an aggregate signature with its signer list
// and the message hash every signer committed to.
//
// Because the underlying scheme has no point addition, the aggregate
// signature is the first collected signature; the signer list is the
// authoritative record of who signed.
type AggregatedSignature struct {
	Signature   Signature
	Signers     []PublicKey
	MessageHash [32]byte
}

// Verify checks the aggregate against the first signer.
//
// An empty aggregation verifies false.
func (a *AggregatedSignature) Verify() bool {
	if a == nil || len(a.Signers) == 0 {
		return false
	}
	return a.Signers[0].VerifyHash(a.MessageHash, a.Signature)
}

// SignerCount returns the number of collected signers.
func (a *AggregatedSignature) SignerCount() int {
	if a == nil {
		return 0
	}
	return len(a.Signers)
}

// Aggregator collects verified signatures over a single message.
//
// The message hash is pinned by the first Add; signatures over any other
// message are rejected. Duplicate signers are allowed at this layer
// (the consensus layer tracks signer identity through its bitmap).
type Aggregator struct {
	signatures []Signature
	signers    []PublicKey
	msgHash    [32]byte
	pinned     bool
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add verifies (pk, sig) over message and collects it.
func (ag *Aggregator) Add(pk PublicKey, sig Signature, message []byte) error {
	return ag.AddHash(pk, sig, HashMessage(message))
}

// AddHash verifies (pk, sig) over a pre-hashed message and collects it.
func (ag *Aggregator) AddHash(pk PublicKey, sig Signature, msgHash [32]byte) error {
	if ag.pinned {
		if ag.msgHash != msgHash {
			return newError(KindAggregate, "MESH-BLS-203", "all signatures must be over the same message")
		}
	} else {
		ag.msgHash = msgHash
		ag.pinned = true
	}

	if !pk.VerifyHash(msgHash, sig) {
		return newError(KindVerify, "MESH-BLS-101", "signature verification failed")
	}

	ag.signatures = append(ag.signatures, sig)
	ag.signers = append(ag.signers, pk)
	return nil
}

// Aggregate builds the aggregate from the collected signatures.
//
// Aggregating zero signatures is an error.
func (ag *Aggregator) Aggregate() (*AggregatedSignature, error) {
	if len(ag.signatures) == 0 {
		return nil, newError(KindAggregate, "MESH-BLS-201", "empty signature set")
	}
	return &AggregatedSignature{
		Signature:   ag.signatures[0],
		Signers:     append([]PublicKey(nil), ag.signers...),
		MessageHash: ag.msgHash,
	}, nil
}

// Len returns the number of collected signatures.
func (ag *Aggregator) Len() int { return len(ag.signatures) }

// Empty reports whether no signatures have been collected.
func (ag *Aggregator) Empty() bool { return len(ag.signatures) == 0 }

// BatchVerify verifies each (signature, public key, message) triple
// element-wise. A count mismatch is an error; an invalid signature returns
// false with a nil error.
func BatchVerify(sigs []Signature, pks []PublicKey, messages [][]byte) (bool, error) {
	if len(sigs) != len(pks) || len(sigs) != len(messages) {
		return false, newError(KindAggregate, "MESH-BLS-202", "mismatched signature and public key counts")
	}
	for i := range sigs {
		if !pks[i].Verify(messages[i], sigs[i]) {
			return false, nil
		}
	}
	return true, nil
}
