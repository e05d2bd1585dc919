package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/sigpolicy/storage/bundle"
	"xdao.co/sigpolicy/storage/registry"
)

func cmdStore(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: sigpolicy store <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: put, get, export, import")
		return 2
	}
	sub := args[0]
	switch sub {
	case "put", "get", "export", "import":
	default:
		fmt.Fprintf(errOut, "unknown store subcommand: %s\n", sub)
		return 2
	}

	fs := flag.NewFlagSet("store "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	backend := fs.String("backend", "localfs", "store backend name")
	outPath := fs.String("o", "", "export: write the bundle to this file instead of stdout")
	ignoreUnknown := fs.Bool("ignore-unknown", false, "import: skip unknown bundle entries")
	registry.RegisterFlags(fs, registry.UsageCLI)
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if (sub == "export" && fs.NArg() == 0) || (sub != "export" && fs.NArg() != 1) {
		fmt.Fprintf(errOut, "usage: sigpolicy store %s --backend <name> [backend flags] <arg>\n", sub)
		return 2
	}

	store, closeFn, err := registry.Open(*backend, registry.UsageCLI)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	switch sub {
	case "put":
		data, err := readInput(fs.Arg(0), in)
		if err != nil {
			fmt.Fprintf(errOut, "read: %v\n", err)
			return 1
		}
		id, err := store.Put(ctx, data)
		if err != nil {
			fmt.Fprintf(errOut, "put: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, id.String())
	case "get":
		id, err := cid.Decode(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "invalid cid: %v\n", err)
			return 2
		}
		data, err := store.Get(ctx, id)
		if err != nil {
			fmt.Fprintf(errOut, "get: %v\n", err)
			return 1
		}
		_, _ = out.Write(data)
	case "export":
		entries := make([]bundle.Entry, 0, fs.NArg())
		for _, arg := range fs.Args() {
			identifier, id, ok := strings.Cut(arg, "=")
			if !ok || identifier == "" {
				fmt.Fprintf(errOut, "invalid export entry %q (want <identifier>=<cid>)\n", arg)
				return 2
			}
			entries = append(entries, bundle.Entry{Identifier: identifier, CID: id})
		}
		w := out
		if *outPath != "" {
			f, err := os.Create(*outPath)
			if err != nil {
				fmt.Fprintf(errOut, "export: %v\n", err)
				return 1
			}
			defer f.Close()
			w = f
		}
		if err := bundle.Export(ctx, w, store, entries); err != nil {
			fmt.Fprintf(errOut, "export: %v\n", err)
			return 1
		}
	case "import":
		var r io.Reader = in
		if fs.Arg(0) != "-" {
			f, err := os.Open(fs.Arg(0))
			if err != nil {
				fmt.Fprintf(errOut, "import: %v\n", err)
				return 1
			}
			defer f.Close()
			r = f
		}
		idx, err := bundle.Import(ctx, r, store, bundle.ImportOptions{IgnoreUnknown: *ignoreUnknown})
		if err != nil {
			fmt.Fprintf(errOut, "import: %v\n", err)
			return 1
		}
		for _, e := range idx.Policies {
			_, _ = fmt.Fprintf(out, "%s\t%s\n", e.Identifier, e.CID)
		}
	}
	return 0
}
