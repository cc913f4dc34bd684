package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ipfs/go-cid"

	"bpimesh.org/mesh/storage"
	"bpimesh.org/mesh/storage/casconfig"
	"bpimesh.org/mesh/storage/casregistry"
	"bpimesh.org/mesh/storage/checkpoint"

	_ "bpimesh.org/mesh/storage/grpccas"
	_ "bpimesh.org/mesh/storage/ipfs"
	_ "bpimesh.org/mesh/storage/localfs"
)

type backendFlags struct {
	backend      string
	configPath   string
	listBackends bool
}

func (c *backendFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "", "CAS backend name (default localfs; with --cas-config, the preferred backend)")
	fs.StringVar(&c.configPath, "cas-config", "", "JSON CAS config file (multi-backend; see storage/casconfig)")
	fs.BoolVar(&c.listBackends, "list-backends", false, "List supported backends and exit")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)
}

func (c *backendFlags) openCAS() (storage.CAS, func() error, error) {
	if c.configPath != "" {
		cfg, err := casconfig.LoadFile(c.configPath)
		if err != nil {
			return nil, nil, err
		}
		return cfg.Open(casregistry.UsageCLI, c.backend)
	}
	name := c.backend
	if name == "" {
		name = "localfs"
	}
	return casregistry.Open(name, casregistry.UsageCLI)
}

func printBackends(w io.Writer) {
	for _, b := range casregistry.List(casregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

func cmdStore(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: bpi-mesh store <put|get|has> ...")
		return 2
	}
	switch args[0] {
	case "put":
		return cmdStorePut(args[1:], out, errOut)
	case "get":
		return cmdStoreGet(args[1:], out, errOut)
	case "has":
		return cmdStoreHas(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown store subcommand: %s\n", args[0])
		return 2
	}
}

func cmdStorePut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("store put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common backendFlags
	common.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: bpi-mesh store put [common flags] <file>")
		return 2
	}

	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", fs.Arg(0), err)
		return 1
	}

	cas, closeFn, err := common.openCAS()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	id, err := cas.Put(b)
	if err != nil {
		fmt.Fprintf(errOut, "put: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, id)
	return 0
}

func cmdStoreGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("store get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common backendFlags
	var cidStr, outPath string
	common.add(fs)
	fs.StringVar(&cidStr, "cid", "", "CID to fetch")
	fs.StringVar(&outPath, "out", "", "Output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if cidStr == "" {
		fmt.Fprintln(errOut, "missing --cid")
		return 2
	}
	id, err := cid.Decode(cidStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --cid: %v\n", err)
		return 2
	}

	cas, closeFn, err := common.openCAS()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	b, err := cas.Get(id)
	if err != nil {
		fmt.Fprintf(errOut, "get: %v\n", err)
		return 1
	}
	if outPath != "" {
		if err := os.WriteFile(outPath, b, 0o644); err != nil {
			fmt.Fprintf(errOut, "write %s: %v\n", outPath, err)
			return 1
		}
		return 0
	}
	_, _ = out.Write(b)
	return 0
}

func cmdStoreHas(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("store has", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common backendFlags
	var cidStr string
	common.add(fs)
	fs.StringVar(&cidStr, "cid", "", "CID to check")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if cidStr == "" {
		fmt.Fprintln(errOut, "missing --cid")
		return 2
	}
	id, err := cid.Decode(cidStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --cid: %v\n", err)
		return 2
	}

	cas, closeFn, err := common.openCAS()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	if !cas.Has(id) {
		_, _ = fmt.Fprintln(out, "absent")
		return 1
	}
	_, _ = fmt.Fprintln(out, "present")
	return 0
}

func cmdCheckpoint(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: bpi-mesh checkpoint <export|import> ...")
		return 2
	}
	switch args[0] {
	case "export":
		return cmdCheckpointExport(args[1:], out, errOut)
	case "import":
		return cmdCheckpointImport(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown checkpoint subcommand: %s\n", args[0])
		return 2
	}
}

func cmdCheckpointExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("checkpoint export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common backendFlags
	var outPath string
	var cids stringList
	var labels stringList
	common.add(fs)
	fs.StringVar(&outPath, "out", "", "Output TAR file (default stdout)")
	fs.Var(&cids, "cid", "CID to include (repeatable)")
	fs.Var(&labels, "label", "Label as <name>=<cid>, e.g. header/1024=bafy... (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(cids) == 0 && len(labels) == 0 {
		fmt.Fprintln(errOut, "missing --cid or --label")
		return 2
	}

	var ids []cid.Cid
	for _, s := range cids {
		id, err := cid.Decode(s)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --cid %s: %v\n", s, err)
			return 2
		}
		ids = append(ids, id)
	}
	labelMap := make(map[string]cid.Cid, len(labels))
	for _, entry := range labels {
		name, cidStr, ok := strings.Cut(entry, "=")
		if !ok {
			fmt.Fprintf(errOut, "invalid --label %q: expected <name>=<cid>\n", entry)
			return 2
		}
		id, err := cid.Decode(cidStr)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --label %q: %v\n", entry, err)
			return 2
		}
		labelMap[name] = id
		ids = append(ids, id)
	}

	cas, closeFn, err := common.openCAS()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	var w io.Writer = out
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			fmt.Fprintf(errOut, "create %s: %v\n", outPath, err)
			return 1
		}
		defer f.Close()
		w = f
	}

	opts := checkpoint.ExportOptions{IncludeIndex: true}
	if len(labelMap) > 0 {
		opts.Labels = labelMap
	}
	if err := checkpoint.Export(w, cas, ids, opts); err != nil {
		fmt.Fprintf(errOut, "export: %v\n", err)
		return 1
	}
	return 0
}

func cmdCheckpointImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("checkpoint import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common backendFlags
	var ignoreUnknown bool
	common.add(fs)
	fs.BoolVar(&ignoreUnknown, "ignore-unknown", false, "Skip unrecognized archive entries")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: bpi-mesh checkpoint import [common flags] <checkpoint.tar>")
		return 2
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "open %s: %v\n", fs.Arg(0), err)
		return 1
	}
	defer f.Close()

	cas, closeFn, err := common.openCAS()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	opts := checkpoint.ImportOptions{IgnoreUnknown: ignoreUnknown}
	if err := checkpoint.ImportWithOptions(f, cas, opts); err != nil {
		fmt.Fprintf(errOut, "import: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}
