package blsagg

import "testing"

func TestAggregateSameMessage(t *testing.T) {
	keys := GenerateTestKeys(4)
	msg := []byte("shared message")

	ag := NewAggregator()
	for _, kp := range keys {
		if err := ag.Add(kp.Public, kp.Private.Sign(msg), msg); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if ag.Len() != 4 {
		t.Fatalf("Len = %d, want 4", ag.Len())
	}

	agg, err := ag.Aggregate()
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if agg.SignerCount() != 4 {
		t.Fatalf("SignerCount = %d, want 4", agg.SignerCount())
	}
	if agg.MessageHash != HashMessage(msg) {
		t.Fatalf("aggregate pinned wrong message hash")
	}
	if !agg.Verify() {
		t.Fatalf("aggregate did not verify")
	}

	// Signers accumulate in add order; the aggregate signature is the first one.
	if agg.Signers[0] != keys[0].Public {
		t.Fatalf("first signer is not the first added key")
	}
	if agg.Signature != keys[0].Private.Sign(msg) {
		t.Fatalf("aggregate signature is not the first collected signature")
	}
}

func TestAggregatorRejectsMixedMessages(t *testing.T) {
	keys := GenerateTestKeys(2)

	ag := NewAggregator()
	if err := ag.Add(keys[0].Public, keys[0].Private.Sign([]byte("msg-a")), []byte("msg-a")); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	err := ag.Add(keys[1].Public, keys[1].Private.Sign([]byte("msg-b")), []byte("msg-b"))
	if err == nil {
		t.Fatalf("mixed-message Add accepted")
	}
	if Code(err) != "MESH-BLS-203" {
		t.Fatalf("unexpected code: %s", Code(err))
	}
	if ag.Len() != 1 {
		t.Fatalf("rejected signature was collected")
	}
}

func TestAggregatorRejectsInvalidSignature(t *testing.T) {
	keys := GenerateTestKeys(2)
	msg := []byte("msg")

	ag := NewAggregator()
	// Signature from key 1 presented under key 0's public key.
	err := ag.Add(keys[0].Public, keys[1].Private.Sign(msg), msg)
	if err == nil {
		t.Fatalf("invalid signature accepted")
	}
	if !IsKind(err, KindVerify) {
		t.Fatalf("expected verify kind, got %v", err)
	}
	if !ag.Empty() {
		t.Fatalf("invalid signature was collected")
	}
}

func TestAggregateEmptyFails(t *testing.T) {
	ag := NewAggregator()
	if _, err := ag.Aggregate(); err == nil {
		t.Fatalf("empty aggregation succeeded")
	}

	var empty AggregatedSignature
	if empty.Verify() {
		t.Fatalf("aggregate with no signers verified")
	}
}

func TestAggregatorAllowsDuplicateSigner(t *testing.T) {
	keys := GenerateTestKeys(1)
	msg := []byte("dup")
	sig := keys[0].Private.Sign(msg)

	ag := NewAggregator()
	if err := ag.Add(keys[0].Public, sig, msg); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if err := ag.Add(keys[0].Public, sig, msg); err != nil {
		t.Fatalf("duplicate signer rejected at aggregation layer: %v", err)
	}
	if ag.Len() != 2 {
		t.Fatalf("Len = %d, want 2", ag.Len())
	}
}

func TestBatchVerify(t *testing.T) {
	keys := GenerateTestKeys(3)
	msgs := [][]byte{[]byte("a"), []byte("b"), []byte("c")}

	sigs := make([]Signature, 3)
	pks := make([]PublicKey, 3)
	for i, kp := range keys {
		sigs[i] = kp.Private.Sign(msgs[i])
		pks[i] = kp.Public
	}

	ok, err := BatchVerify(sigs, pks, msgs)
	if err != nil || !ok {
		t.Fatalf("valid batch rejected: ok=%v err=%v", ok, err)
	}

	// One flipped signature fails the whole batch (no error).
	sigs[1][0] ^= 0x01
	ok, err = BatchVerify(sigs, pks, msgs)
	if err != nil {
		t.Fatalf("invalid batch returned error: %v", err)
	}
	if ok {
		t.Fatalf("batch with invalid signature verified")
	}

	// Count mismatch is a distinct error.
	if _, err := BatchVerify(sigs[:2], pks, msgs); err == nil {
		t.Fatalf("count mismatch accepted")
	} else if Code(err) != "MESH-BLS-202" {
		t.Fatalf("unexpected code: %s", Code(err))
	}
}
