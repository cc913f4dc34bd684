// Package cidutil computes the CID profiles used by mesh artifact storage.
package cidutil

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	// registers blake3 with the multihash registry
	_ "github.com/multiformats/go-multihash/register/blake3"
)

// CIDv1RawSHA256 returns a CIDv1 string using the "raw" multicodec
// and a sha2-256 multihash.
func CIDv1RawSHA256(data []byte) string {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1 length,
		// this should be unreachable.
		return ""
	}
	return cid.NewCidV1(cid.Raw, sum).String()
}

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// CIDv1RawBlake3 returns a CIDv1 string using the "raw" multicodec and a
// blake3 multihash. This is the profile receipt roots use.
func CIDv1RawBlake3(data []byte) string {
	sum, err := multihash.Sum(data, multihash.BLAKE3, -1)
	if err != nil {
		return ""
	}
	return cid.NewCidV1(cid.Raw, sum).String()
}

// CIDv1RawBlake3CID returns a CIDv1 (raw + blake3) derived from data.
func CIDv1RawBlake3CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.BLAKE3, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}
