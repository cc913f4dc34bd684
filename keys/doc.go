// Package keys provides key management for mesh nodes and validators.
//
// The pure primitives (key-string formatting, role-seed derivation, digest
// and signing helpers) are deterministic and stable. The filesystem-backed
// KeyStore is a local-first convenience for operators and tooling and is not
// part of the protocol surface.
package keys
