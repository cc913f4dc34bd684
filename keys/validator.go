package keys

import (
	"crypto/ed25519"

	"bpimesh.org/mesh/blsagg"
	"bpimesh.org/mesh/vrf"
)

// ValidatorKeySet is the full key material a validator derives from one
// root seed: a BLS key for consensus commits, a VRF key for leader
// selection, and an Ed25519 key for operational signing.
type ValidatorKeySet struct {
	BLSPrivate blsagg.PrivateKey
	BLSPublic  blsagg.PublicKey
	VRFPrivate vrf.PrivateKey
	VRFPublic  vrf.PublicKey
	Ed25519    ed25519.PrivateKey
}

// ValidatorKeys derives a validator's key set from rootSeed. Each key comes
// from its own role-separated seed, so compromise of one derived key never
// exposes the others.
func ValidatorKeys(rootSeed []byte) (*ValidatorKeySet, error) {
	blsSeed, err := DeriveRoleSeed(rootSeed, "bls")
	if err != nil {
		return nil, err
	}
	vrfSeed, err := DeriveRoleSeed(rootSeed, "vrf")
	if err != nil {
		return nil, err
	}
	edSeed, err := DeriveRoleSeed(rootSeed, "ed25519")
	if err != nil {
		return nil, err
	}

	ks := &ValidatorKeySet{Ed25519: ed25519.NewKeyFromSeed(edSeed)}
	ks.BLSPrivate, ks.BLSPublic = blsagg.GenerateKeypair(blsSeed)
	ks.VRFPrivate, ks.VRFPublic = vrf.GenerateKeypair(vrfSeed)
	return ks, nil
}

// KeyStrings returns the displayable key strings for the set's public keys.
func (ks *ValidatorKeySet) KeyStrings() (bls, vrfKey, ed string) {
	bls = BLSKeyString(ks.BLSPublic)
	vrfKey = VRFKeyString(ks.VRFPublic)
	edPub := ks.Ed25519.Public().(ed25519.PublicKey)
	ed, _ = FormatKey(AlgEd25519, edPub)
	return bls, vrfKey, ed
}
