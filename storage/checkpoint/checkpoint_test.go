package checkpoint_test

import (
	"archive/tar"
	"bytes"
	"testing"
	"time"

	"github.com/ipfs/go-cid"

	"bpimesh.org/mesh/cidutil"
	"bpimesh.org/mesh/storage"
	"bpimesh.org/mesh/storage/checkpoint"
	"bpimesh.org/mesh/storage/localfs"
)

func TestCheckpoint_ExportIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	cas, err := localfs.New(dir)
	if err != nil {
		t.Fatal(err)
	}

	id1, err := cas.Put([]byte("header bytes"))
	if err != nil {
		t.Fatal(err)
	}
	id2, err := cas.Put([]byte("commit bytes"))
	if err != nil {
		t.Fatal(err)
	}

	labels := map[string]cid.Cid{"header/1024": id1, "commit/1024": id2}

	var outA bytes.Buffer
	if err := checkpoint.Export(&outA, cas, []cid.Cid{id2, id1}, checkpoint.ExportOptions{Labels: labels, IncludeIndex: true}); err != nil {
		t.Fatal(err)
	}
	var outB bytes.Buffer
	if err := checkpoint.Export(&outB, cas, []cid.Cid{id1, id2}, checkpoint.ExportOptions{Labels: labels, IncludeIndex: true}); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(outA.Bytes(), outB.Bytes()) {
		t.Fatalf("expected deterministic checkpoint bytes")
	}
}

func TestCheckpoint_ImportRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	src, err := localfs.New(srcDir)
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte("sealed header payload")
	id, err := src.Put(payload)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := checkpoint.Export(&buf, src, []cid.Cid{id}, checkpoint.ExportOptions{IncludeIndex: true}); err != nil {
		t.Fatal(err)
	}

	dstDir := t.TempDir()
	dst, err := localfs.New(dstDir)
	if err != nil {
		t.Fatal(err)
	}

	if err := checkpoint.Import(bytes.NewReader(buf.Bytes()), dst); err != nil {
		t.Fatal(err)
	}

	got, err := dst.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestCheckpoint_ReadIndexLabels(t *testing.T) {
	dir := t.TempDir()
	cas, err := localfs.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	id, err := cas.Put([]byte("labelled artifact"))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	opts := checkpoint.ExportOptions{
		Labels:       map[string]cid.Cid{"poe-bundle/2025-08": id},
		IncludeIndex: true,
	}
	if err := checkpoint.Export(&buf, cas, []cid.Cid{id}, opts); err != nil {
		t.Fatal(err)
	}

	idx, err := checkpoint.ReadIndex(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if idx == nil {
		t.Fatal("expected index")
	}
	if len(idx.Blocks) != 1 || idx.Blocks[0].CID != id.String() {
		t.Fatalf("index blocks = %+v", idx.Blocks)
	}
	if len(idx.Labels) != 1 || idx.Labels[0].Name != "poe-bundle/2025-08" {
		t.Fatalf("index labels = %+v", idx.Labels)
	}
}

func TestCheckpoint_ReadIndexAbsent(t *testing.T) {
	dir := t.TempDir()
	cas, err := localfs.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	id, err := cas.Put([]byte("no index"))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := checkpoint.Export(&buf, cas, []cid.Cid{id}, checkpoint.ExportOptions{}); err != nil {
		t.Fatal(err)
	}
	idx, err := checkpoint.ReadIndex(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if idx != nil {
		t.Fatalf("expected no index, got %+v", idx)
	}
}

func TestCheckpoint_ImportRejectsCIDMismatch(t *testing.T) {
	good := []byte("good")
	goodCID, err := cidutil.CIDv1RawSHA256CID(good)
	if err != nil {
		t.Fatal(err)
	}
	otherCID, err := cidutil.CIDv1RawSHA256CID([]byte("other"))
	if err != nil {
		t.Fatal(err)
	}
	if goodCID.String() == otherCID.String() {
		t.Fatal("expected different CIDs")
	}

	// Name says "otherCID" but bytes are "good" => computed CID mismatch.
	archive := makeDeterministicTar(t, "blocks/"+otherCID.String(), good)

	dstDir := t.TempDir()
	dst, err := localfs.New(dstDir)
	if err != nil {
		t.Fatal(err)
	}

	if err := checkpoint.Import(bytes.NewReader(archive), dst); err != storage.ErrCIDMismatch {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
}

func TestCheckpoint_ImportRejectsUnknownEntry(t *testing.T) {
	archive := makeDeterministicTar(t, "extras/unexpected", []byte("x"))

	dstDir := t.TempDir()
	dst, err := localfs.New(dstDir)
	if err != nil {
		t.Fatal(err)
	}

	if err := checkpoint.Import(bytes.NewReader(archive), dst); err == nil {
		t.Fatal("expected error for unknown entry")
	}
	opts := checkpoint.ImportOptions{IgnoreUnknown: true}
	if err := checkpoint.ImportWithOptions(bytes.NewReader(archive), dst, opts); err != nil {
		t.Fatalf("IgnoreUnknown import failed: %v", err)
	}
}

func makeDeterministicTar(t *testing.T, name string, content []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	h := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		Uid:      0,
		Gid:      0,
		Uname:    "",
		Gname:    "",
		ModTime:  time.Unix(0, 0).UTC(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(h); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
