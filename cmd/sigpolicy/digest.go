package main

import (
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"io"

	"xdao.co/sigpolicy/cidutil"
	"xdao.co/sigpolicy/digest"
)

func cmdDigest(args []string, in io.Reader, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("digest", flag.ContinueOnError)
	fs.SetOutput(errOut)
	alg := fs.String("alg", digest.SHA256, "digest algorithm (sha1, sha224, sha256, sha384, sha512, sha3-*)")
	encoding := fs.String("encoding", "hex", "output encoding: hex, base64 or cid (cid requires sha256)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: sigpolicy digest [--alg sha256] [--encoding hex|base64|cid] <file|->")
		return 2
	}

	data, err := readInput(fs.Arg(0), in)
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	d, err := digest.Compute(*alg, data)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	switch *encoding {
	case "hex":
		_, _ = fmt.Fprintln(out, hex.EncodeToString(d.Value))
	case "base64":
		_, _ = fmt.Fprintln(out, base64.StdEncoding.EncodeToString(d.Value))
	case "cid":
		id, ok := cidutil.ForDigest(d)
		if !ok {
			fmt.Fprintln(errOut, "cid encoding requires --alg sha256")
			return 2
		}
		_, _ = fmt.Fprintln(out, id.String())
	default:
		fmt.Fprintf(errOut, "unknown --encoding %q\n", *encoding)
		return 2
	}
	return 0
}
