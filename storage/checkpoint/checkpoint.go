// Package checkpoint exports and imports deterministic TAR archives of
// chain artifacts.
//
// A checkpoint carries the content-addressed blocks for a range of sealed
// blocks (headers, commits, proof-of-effort bundles) plus an optional index
// with human-readable labels like "header/1024" or "poe-bundle/2025-08".
// Checkpoint bytes are deterministic for a given block set, so a checkpoint
// itself can be stored content-addressed.
package checkpoint

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"bpimesh.org/mesh/cidutil"
	"bpimesh.org/mesh/storage"
)

// FormatVersion is the current checkpoint index schema version.
const FormatVersion = 1

const blockPrefix = "blocks/"

// Archive mod times are pinned to the epoch so export bytes depend only on
// the block set and labels.
var epoch0 = time.Unix(0, 0).UTC()

// Index mirrors the index.json schema. The index is descriptive metadata
// only; imports never trust it.
type Index struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []IndexBlock `json:"blocks"`
	Labels    []IndexLabel `json:"labels,omitempty"`
}

type IndexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type IndexLabel struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

type ExportOptions struct {
	// Labels maps artifact names ("header/1024", "commit/1024") to CIDs.
	// Purely descriptive; imports ignore it.
	Labels map[string]cid.Cid
	// IncludeIndex adds index.json to the archive.
	IncludeIndex bool
}

// Export writes the blocks for ids as a deterministic TAR checkpoint.
//
// Duplicate CIDs collapse, entries are ordered lexicographically, and TAR
// headers are normalized. Every block read from the store is re-validated
// against its CID before it is written out.
func Export(w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) error {
	if cas == nil {
		return fmt.Errorf("checkpoint: nil CAS")
	}

	ordered, err := dedupe(ids)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(w)
	fail := func(err error) error {
		_ = tw.Close()
		return err
	}

	blocks := make([]IndexBlock, 0, len(ordered))
	for _, id := range ordered {
		data, err := cas.Get(id)
		if err != nil {
			return fail(err)
		}
		got, err := cidutil.CIDv1RawSHA256CID(data)
		if err != nil {
			return fail(err)
		}
		if got.String() != id.String() {
			return fail(storage.ErrCIDMismatch)
		}
		if err := writeEntry(tw, blockPrefix+id.String(), data); err != nil {
			return fail(err)
		}
		blocks = append(blocks, IndexBlock{CID: id.String(), Size: len(data)})
	}

	if opts.IncludeIndex {
		labels, err := sortLabels(opts.Labels)
		if err != nil {
			return fail(err)
		}
		idx := Index{
			Version:   FormatVersion,
			CIDCodec:  "raw",
			Multihash: "sha2-256",
			Blocks:    blocks,
			Labels:    labels,
		}
		// Structs and slices only, so encoding/json output is stable.
		raw, err := json.Marshal(idx)
		if err != nil {
			return fail(err)
		}
		if err := writeEntry(tw, "index.json", append(raw, '\n')); err != nil {
			return fail(err)
		}
	}

	return tw.Close()
}

func dedupe(ids []cid.Cid) ([]cid.Cid, error) {
	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return nil, storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	keys := make([]string, 0, len(uniq))
	for s := range uniq {
		keys = append(keys, s)
	}
	sort.Strings(keys)

	out := make([]cid.Cid, len(keys))
	for i, s := range keys {
		out[i] = uniq[s]
	}
	return out, nil
}

func sortLabels(labels map[string]cid.Cid) ([]IndexLabel, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(labels))
	for name := range labels {
		if name == "" {
			return nil, fmt.Errorf("checkpoint: empty label key")
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]IndexLabel, len(names))
	for i, name := range names {
		id := labels[name]
		if !id.Defined() {
			return nil, storage.ErrInvalidCID
		}
		out[i] = IndexLabel{Name: name, CID: id.String()}
	}
	return out, nil
}

type ImportOptions struct {
	// IgnoreUnknown skips unrecognized archive entries. The default is
	// fail-closed: an unknown entry aborts the import.
	IgnoreUnknown bool
}

// Import reads a checkpoint from r and stores every block into cas,
// fail-closed on unknown entries.
func Import(r io.Reader, cas storage.CAS) error {
	return ImportWithOptions(r, cas, ImportOptions{})
}

// ImportWithOptions is Import with control over unknown entries. Each block
// must match both the CID in its filename and the CID recomputed from its
// bytes; duplicates are rejected.
func ImportWithOptions(r io.Reader, cas storage.CAS, opts ImportOptions) error {
	if cas == nil {
		return fmt.Errorf("checkpoint: nil CAS")
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}

	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return fmt.Errorf("checkpoint: invalid entry path: %q", h.Name)
		}

		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return fmt.Errorf("checkpoint: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		if name == "index.json" {
			_, _ = io.Copy(io.Discard, tr)
			continue
		}
		if !strings.HasPrefix(name, blockPrefix) {
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return fmt.Errorf("checkpoint: unknown entry: %s", name)
		}

		if err := importBlock(tr, cas, strings.TrimPrefix(name, blockPrefix), seen); err != nil {
			return err
		}
	}
}

func importBlock(tr *tar.Reader, cas storage.CAS, cidStr string, seen map[string]struct{}) error {
	id, err := cid.Decode(cidStr)
	if err != nil || !id.Defined() {
		return storage.ErrInvalidCID
	}
	if _, dup := seen[id.String()]; dup {
		return fmt.Errorf("checkpoint: duplicate block entry: %s", id)
	}
	seen[id.String()] = struct{}{}

	payload, err := io.ReadAll(tr)
	if err != nil {
		return err
	}
	got, err := cidutil.CIDv1RawSHA256CID(payload)
	if err != nil {
		return err
	}
	if got.String() != id.String() {
		return storage.ErrCIDMismatch
	}

	stored, err := cas.Put(payload)
	if err != nil {
		return err
	}
	if stored.String() != id.String() {
		return storage.ErrCIDMismatch
	}
	return nil
}

// ReadIndex extracts index.json from a checkpoint. It returns (nil, nil)
// when the archive carries no index.
func ReadIndex(r io.Reader) (*Index, error) {
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if cleanTarPath(h.Name) != "index.json" || h.Typeflag != tar.TypeReg {
			continue
		}
		raw, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		var idx Index
		if err := json.Unmarshal(raw, &idx); err != nil {
			return nil, fmt.Errorf("checkpoint: invalid index.json: %w", err)
		}
		if idx.Version != FormatVersion {
			return nil, fmt.Errorf("checkpoint: unsupported index version %d", idx.Version)
		}
		return &idx, nil
	}
}

func writeEntry(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

// cleanTarPath normalizes an archive path and rejects anything that could
// escape the archive namespace. Empty string means invalid.
func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	parts := strings.Split(name, "/")
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return strings.Join(parts, "/")
}
