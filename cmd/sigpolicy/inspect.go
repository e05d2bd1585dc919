package main

import (
	"bytes"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"strings"

	"xdao.co/sigpolicy/cades"
	"xdao.co/sigpolicy/jades"
	"xdao.co/sigpolicy/policy"
	"xdao.co/sigpolicy/report"
	"xdao.co/sigpolicy/xades"
)

type sourceFlags struct {
	format      *string
	base64      *bool
	policyStore *string
	output      *string
}

func registerSourceFlags(fs *flag.FlagSet) sourceFlags {
	return sourceFlags{
		format:      fs.String("format", "", "signature format: cades, xades or jades"),
		base64:      fs.Bool("base64", false, "input is base64 (standard alphabet)"),
		policyStore: fs.String("policy-store", "", "CAdES signature-policy-store attribute (DER file)"),
		output:      fs.String("output", "json", "report encoding: json or cbor"),
	}
}

func (s sourceFlags) descriptor(path string, in io.Reader) (*policy.Descriptor, error) {
	data, err := readInput(path, in)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if *s.base64 {
		data, err = base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("decode base64 input: %w", err)
		}
	}

	switch *s.format {
	case "cades":
		var storeDER []byte
		if *s.policyStore != "" {
			if storeDER, err = readInput(*s.policyStore, nil); err != nil {
				return nil, fmt.Errorf("read policy store: %w", err)
			}
		}
		return cades.ParseWithStore(data, storeDER)
	case "xades":
		return xades.Parse(data)
	case "jades":
		hdr, err := jadesHeader(data)
		if err != nil {
			return nil, err
		}
		return jades.ParseHeader(hdr)
	default:
		return nil, fmt.Errorf("unknown --format %q (want cades, xades or jades)", *s.format)
	}
}

// jadesHeader accepts a JSON header, a base64url header, or a compact JWS.
func jadesHeader(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		return trimmed, nil
	}
	seg := string(trimmed)
	if i := strings.IndexByte(seg, '.'); i >= 0 {
		seg = seg[:i]
	}
	hdr, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(seg, "="))
	if err != nil {
		return nil, fmt.Errorf("decode protected header: %w", err)
	}
	return hdr, nil
}

func writeReport(out io.Writer, r report.Report, encoding string) error {
	switch encoding {
	case "json":
		b, err := report.CanonicalJSON(r)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	case "cbor":
		b, err := report.EncodeCBOR(r)
		if err != nil {
			return err
		}
		_, err = out.Write(b)
		return err
	default:
		return fmt.Errorf("unknown --output %q (want json or cbor)", encoding)
	}
}

func cmdInspect(args []string, in io.Reader, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(errOut)
	src := registerSourceFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 || *src.format == "" {
		fmt.Fprintln(errOut, "usage: sigpolicy inspect --format cades|xades|jades <file|->")
		return 2
	}

	d, err := src.descriptor(fs.Arg(0), in)
	if err != nil {
		fmt.Fprintf(errOut, "inspect: %v\n", report.FromError(err))
		return 1
	}
	if err := writeReport(out, report.FromDescriptor(d), *src.output); err != nil {
		fmt.Fprintf(errOut, "inspect: %v\n", err)
		return 1
	}
	return 0
}
