package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"xdao.co/sigpolicy/compliance"
	"xdao.co/sigpolicy/config"
	"xdao.co/sigpolicy/internal/logging"
	"xdao.co/sigpolicy/policy"
	"xdao.co/sigpolicy/report"
	"xdao.co/sigpolicy/storage"
	"xdao.co/sigpolicy/storage/registry"
	"xdao.co/sigpolicy/validate"
)

func cmdValidate(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(errOut)
	src := registerSourceFlags(fs)
	configPath := fs.String("config", "", "YAML or JSON config file")
	mode := fs.String("mode", "", "compliance mode: permissive or strict (overrides validation.mode)")
	rejectImplicit := fs.Bool("reject-implicit", false, "treat implicit policies as failures")
	contentPath := fs.String("content", "", "policy document to check instead of resolving one")
	backend := fs.String("backend", "", "store backend to consult (overrides the config stores)")
	storeFetched := fs.Bool("store-fetched", false, "write verified provider or fetched documents to the store")
	registry.RegisterFlags(fs, registry.UsageCLI)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 || *src.format == "" {
		fmt.Fprintln(errOut, "usage: sigpolicy validate --format cades|xades|jades [flags] <file|->")
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		cfg = loaded
	}
	if *mode != "" {
		cfg.Validation.Mode = *mode
	}
	if *rejectImplicit {
		cfg.Validation.RejectImplicit = true
	}
	complianceMode, err := compliance.ParseMode(cfg.Validation.Mode)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	var (
		store   storage.Store
		closeFn func() error
	)
	if *backend != "" {
		store, closeFn, err = registry.Open(*backend, registry.UsageCLI)
	} else {
		store, closeFn, err = cfg.OpenStores(registry.UsageCLI)
	}
	if err != nil {
		fmt.Fprintf(errOut, "open store: %v\n", err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	provider, err := cfg.Provider()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	d, err := src.descriptor(fs.Arg(0), in)
	if err != nil {
		fmt.Fprintf(errOut, "validate: %v\n", report.FromError(err))
		return 1
	}
	if *contentPath != "" {
		content, err := readInput(*contentPath, nil)
		if err != nil {
			fmt.Fprintf(errOut, "read content: %v\n", err)
			return 1
		}
		if d, err = d.ToBuilder().Content(policy.NewDocument(*contentPath, "", content)).Build(); err != nil {
			fmt.Fprintf(errOut, "validate: %v\n", err)
			return 1
		}
	}

	engine := &validate.Engine{
		Fetcher:        cfg.Fetcher(store),
		Store:          store,
		Provider:       provider,
		Mode:           complianceMode,
		RejectImplicit: cfg.Validation.RejectImplicit,
		StoreFetched:   *storeFetched,
		Logger:         logger,
	}
	res, verr := engine.Validate(ctx, d)
	if res == nil {
		fmt.Fprintf(errOut, "validate: %v\n", report.FromError(verr))
		return 1
	}
	if err := writeReport(out, report.FromResult(res), *src.output); err != nil {
		fmt.Fprintf(errOut, "validate: %v\n", err)
		return 1
	}
	if verr != nil {
		fmt.Fprintf(errOut, "validate: %v\n", report.FromError(verr))
		return 1
	}
	if !res.OK() {
		return 1
	}
	return 0
}
