package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"xdao.co/sigpolicy/storage/registry"

	_ "xdao.co/sigpolicy/storage/grpcstore"
	_ "xdao.co/sigpolicy/storage/ipfs"
	_ "xdao.co/sigpolicy/storage/localfs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "digest":
		return cmdDigest(args[1:], in, out, errOut)
	case "inspect":
		return cmdInspect(args[1:], in, out, errOut)
	case "validate":
		return cmdValidate(ctx, args[1:], in, out, errOut)
	case "store":
		return cmdStore(ctx, args[1:], in, out, errOut)
	case "backends":
		for _, b := range registry.List(registry.UsageCLI) {
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "sigpolicy: signature policy identifier inspection and validation")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  sigpolicy digest [--alg sha256] [--encoding hex|base64|cid] <file|->")
	fmt.Fprintln(w, "  sigpolicy inspect --format cades|xades|jades [--base64] [--policy-store <der>] [--output json|cbor] <file|->")
	fmt.Fprintln(w, "  sigpolicy validate --format cades|xades|jades [--config <yaml>] [--mode permissive|strict] [--reject-implicit]")
	fmt.Fprintln(w, "                     [--content <file>] [--backend <name> ...] [--output json|cbor] <file|->")
	fmt.Fprintln(w, "  sigpolicy store put --backend <name> [backend flags] <file|->")
	fmt.Fprintln(w, "  sigpolicy store get --backend <name> [backend flags] <cid>")
	fmt.Fprintln(w, "  sigpolicy store export --backend <name> [-o bundle.tar] <identifier>=<cid> ...")
	fmt.Fprintln(w, "  sigpolicy store import --backend <name> [--ignore-unknown] <bundle.tar|->")
	fmt.Fprintln(w, "  sigpolicy backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - cades input is the DER SignaturePolicyIdentifier attribute value")
	fmt.Fprintln(w, "  - xades input is the SignaturePolicyIdentifier element")
	fmt.Fprintln(w, "  - jades input is the protected header, as JSON or base64url (a compact JWS is accepted)")
	fmt.Fprintln(w, "  - reports are canonical JSON (RFC 8785) unless --output cbor")
	fmt.Fprintln(w, "  - validate exits 0 for valid, zero-hash and accepted implicit policies, 1 otherwise")
}

// readInput reads the named file, or in for "-".
func readInput(path string, in io.Reader) ([]byte, error) {
	if path == "-" {
		if in == nil {
			return nil, fmt.Errorf("stdin is already used for the main input")
		}
		return io.ReadAll(in)
	}
	return os.ReadFile(path)
}
