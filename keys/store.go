package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore keeps operator seeds as hex files on the local filesystem: one
// directory per key identifier, root.key at the top and role keys under
// roles/. Files are 0600 inside 0700 directories. Because role derivation is
// deterministic, the root seed alone recovers every role key.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Identifier string
	Roles      []string
}

func GetDefaultDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".bpi-mesh", "keys"), nil
}

// CreateKeyStore opens a store at directory, or at the default location when
// directory is empty. Nothing is touched on disk until a key is written.
func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootKeyPath(identifier string) string {
	return filepath.Join(ks.Directory, identifier, "root.key")
}

func (ks *KeyStore) roleKeyPath(identifier, role string) string {
	return filepath.Join(ks.Directory, identifier, "roles", role+".key")
}

// Identifiers and roles become path segments, so the charset is restricted
// to [a-zA-Z0-9_-].
func checkPathToken(kind, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return fmt.Errorf("invalid character %q in %s", r, kind)
		}
	}
	return nil
}

func CheckKeyName(identifier string) error { return checkPathToken("identifier", identifier) }

func CheckRole(role string) error { return checkPathToken("role", role) }

// ParseSeedHex decodes a hex seed, accepting surrounding whitespace and an
// optional 0x prefix. Seeds are exactly ed25519.SeedSize bytes.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimPrefix(strings.TrimSpace(seedHex), "0x")
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return seed, nil
}

func (ks *KeyStore) writeSeed(path string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return f.Close()
}

func (ks *KeyStore) readSeed(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(raw))
}

// InitializeRootKey stores seed as the root key for identifier and returns
// the public key string plus the file path. Without overwrite, an existing
// root key is an error.
func (ks *KeyStore) InitializeRootKey(identifier string, seed []byte, overwrite bool) (keyString string, filePath string, err error) {
	if err := CheckKeyName(identifier); err != nil {
		return "", "", err
	}
	filePath = ks.rootKeyPath(identifier)
	if err := ks.writeSeed(filePath, seed, overwrite); err != nil {
		return "", "", err
	}
	return Ed25519KeyFromSeed(seed), filePath, nil
}

// DeriveKeyFromRole derives and stores the role key for an existing root key.
func (ks *KeyStore) DeriveKeyFromRole(from, role string, overwrite bool) (keyString string, filePath string, err error) {
	if err := CheckKeyName(from); err != nil {
		return "", "", err
	}
	if err := CheckRole(role); err != nil {
		return "", "", err
	}
	rootSeed, err := ks.readSeed(ks.rootKeyPath(from))
	if err != nil {
		return "", "", err
	}
	roleSeed, err := DeriveRoleSeed(rootSeed, role)
	if err != nil {
		return "", "", err
	}
	filePath = ks.roleKeyPath(from, role)
	if err := ks.writeSeed(filePath, roleSeed, overwrite); err != nil {
		return "", "", err
	}
	return Ed25519KeyFromSeed(roleSeed), filePath, nil
}

// ExportKey returns the public key string for a stored root key, or for one
// of its role keys when role is non-empty.
func (ks *KeyStore) ExportKey(identifier string, role string) (string, error) {
	if err := CheckKeyName(identifier); err != nil {
		return "", err
	}
	path := ks.rootKeyPath(identifier)
	if role != "" {
		if err := CheckRole(role); err != nil {
			return "", err
		}
		path = ks.roleKeyPath(identifier, role)
	}
	seed, err := ks.readSeed(path)
	if err != nil {
		return "", err
	}
	return Ed25519KeyFromSeed(seed), nil
}

// LoadSeed resolves a signing seed from the first source provided: a literal
// hex seed, a key file path, or a stored signer name (with optional role).
func (ks *KeyStore) LoadSeed(seedHex, signerName, signerRole, keyFile string) ([]byte, error) {
	switch {
	case seedHex != "":
		return ParseSeedHex(seedHex)
	case keyFile != "":
		return ks.readSeed(keyFile)
	case signerName != "":
		if err := CheckKeyName(signerName); err != nil {
			return nil, err
		}
		if signerRole == "" {
			return ks.readSeed(ks.rootKeyPath(signerName))
		}
		if err := CheckRole(signerRole); err != nil {
			return nil, err
		}
		return ks.readSeed(ks.roleKeyPath(signerName, signerRole))
	default:
		return nil, errors.New("no signer provided")
	}
}

// ListKeys enumerates stored identifiers and their role keys, sorted.
func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var result []KeyEntry
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		result = append(result, KeyEntry{
			Identifier: entry.Name(),
			Roles:      ks.listRoles(entry.Name()),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Identifier < result[j].Identifier })
	return result, nil
}

func (ks *KeyStore) listRoles(identifier string) []string {
	entries, err := os.ReadDir(filepath.Join(ks.Directory, identifier, "roles"))
	if err != nil {
		return nil
	}
	var roles []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".key") {
			continue
		}
		roles = append(roles, strings.TrimSuffix(entry.Name(), ".key"))
	}
	sort.Strings(roles)
	return roles
}
