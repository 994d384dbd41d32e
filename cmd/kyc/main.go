// Command kyc extracts identity, address and bank details from scanned
// documents and decides whether they form a consistent KYC dossier.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ahrav/go-kyc/infrastructure/extraction"
	"github.com/ahrav/go-kyc/infrastructure/report"
	"github.com/ahrav/go-kyc/internal/application"
	"github.com/ahrav/go-kyc/internal/domain"
	"github.com/ahrav/go-kyc/internal/platform/logger"
	"github.com/ahrav/go-kyc/internal/ports"
)

// Exit codes.
const (
	exitOK       = 0
	exitRejected = 1
	exitUsage    = 2
	exitFailure  = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}

// options holds the parsed command line.
type options struct {
	configPath  string
	envFile     string
	file        string
	folder      string
	paths       application.DossierPaths
	files       []string
	format      report.Format
	maskIBAN    bool
	metricsAddr string
}

// mode reports which pipeline entry point the options select.
func (o options) mode() (string, error) {
	var modes []string
	if o.file != "" {
		modes = append(modes, "file")
	}
	if o.folder != "" {
		modes = append(modes, "folder")
	}
	if o.paths != (application.DossierPaths{}) {
		modes = append(modes, "roles")
	}
	if len(o.files) > 0 {
		modes = append(modes, "files")
	}
	switch len(modes) {
	case 0:
		return "", errors.New("nothing to process: use -file, -folder, the role flags or list files")
	case 1:
		return modes[0], nil
	}
	return "", fmt.Errorf("conflicting inputs: %v", modes)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("kyc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		opts   options
		format string
	)
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&opts.envFile, "env", application.DefaultDotEnvFile, "dotenv file loaded before the environment is read")
	fs.StringVar(&opts.file, "file", "", "extract a single document")
	fs.StringVar(&opts.folder, "folder", "", "classify and validate every document in a folder")
	fs.StringVar(&opts.paths.Identity, "identity", "", "identity card or passport")
	fs.StringVar(&opts.paths.ProofOfAddress, "address", "", "proof of address")
	fs.StringVar(&opts.paths.BankAccount, "bank", "", "bank account details (RIB)")
	fs.StringVar(&opts.paths.DrivingLicense, "license", "", "driving license (optional)")
	fs.StringVar(&format, "format", string(report.FormatText), "output format: text or json")
	fs.BoolVar(&opts.maskIBAN, "mask-iban", false, "hide the middle of IBANs in the output")
	fs.StringVar(&opts.metricsAddr, "metrics", "", "serve Prometheus metrics on this address, e.g. :9090")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kyc [flags] [document ...]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.files = fs.Args()

	var err error
	if opts.format, err = report.ParseFormat(format); err != nil {
		return options{}, err
	}
	if _, err := opts.mode(); err != nil {
		return options{}, err
	}
	if opts.paths != (application.DossierPaths{}) {
		if opts.paths.Identity == "" || opts.paths.ProofOfAddress == "" || opts.paths.BankAccount == "" {
			return options{}, errors.New("-identity, -address and -bank are required together")
		}
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "kyc: %v\n", err)
		return exitUsage
	}

	if err := application.LoadDotEnv(opts.envFile); err != nil {
		fmt.Fprintf(stderr, "kyc: %v\n", err)
		return exitUsage
	}

	loader, err := application.NewConfigLoader()
	if err != nil {
		fmt.Fprintf(stderr, "kyc: %v\n", err)
		return exitFailure
	}
	cfg, err := loader.Load(opts.configPath, getenv)
	if err != nil {
		fmt.Fprintf(stderr, "kyc: %v\n", err)
		return exitUsage
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "kyc: %v\n", err)
		return exitUsage
	}
	defer func() { _ = log.Sync() }()

	renderer, err := report.New(opts.format, renderOptions(opts)...)
	if err != nil {
		fmt.Fprintf(stderr, "kyc: %v\n", err)
		return exitUsage
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if opts.metricsAddr != "" {
		shutdown := serveMetrics(opts.metricsAddr, reg, log)
		defer shutdown()
	}

	engine, err := buildEngine(cfg, reg, getenv, log)
	if err != nil {
		log.Error("failed to build engine", zap.Error(err))
		fmt.Fprintf(stderr, "kyc: %v\n", err)
		return exitFailure
	}

	mode, _ := opts.mode()
	if mode == "file" {
		res := engine.pipeline.ProcessFile(ctx, opts.file)
		if err := renderer.Document(stdout, res); err != nil {
			fmt.Fprintf(stderr, "kyc: %v\n", err)
			return exitFailure
		}
		logUsage(log, engine)
		if !res.Succeeded() {
			return exitRejected
		}
		return exitOK
	}

	var rep *application.DossierReport
	switch mode {
	case "folder":
		rep, err = engine.pipeline.ProcessFolder(ctx, opts.folder)
	case "roles":
		rep, err = engine.pipeline.ProcessDocuments(ctx, opts.paths)
	case "files":
		rep, err = processFiles(ctx, engine.pipeline, opts.files)
	}
	logUsage(log, engine)

	if rep == nil {
		fmt.Fprintf(stderr, "kyc: %v\n", err)
		return exitFailure
	}
	if renderErr := renderer.Dossier(stdout, rep); renderErr != nil {
		fmt.Fprintf(stderr, "kyc: %v\n", renderErr)
		return exitFailure
	}
	return exitCode(rep, err)
}

// exitCode maps a run to the process status: approved dossiers exit 0,
// rejected and incomplete ones 1 and aborted runs 3.
func exitCode(rep *application.DossierReport, err error) int {
	switch {
	case err != nil && !errors.Is(err, domain.ErrIncompleteDossier):
		return exitFailure
	case rep.Decision() == string(domain.StatusApproved):
		return exitOK
	}
	return exitRejected
}

// processFiles loads every listed file and runs them as one dossier.
// Unreadable files fail the run before any model call.
func processFiles(ctx context.Context, p *application.Pipeline, paths []string) (*application.DossierReport, error) {
	sources := make([]ports.Source, 0, len(paths))
	for _, path := range paths {
		src, err := extraction.LoadSource(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return p.ProcessSources(ctx, sources)
}

func renderOptions(opts options) []report.Option {
	var out []report.Option
	if opts.maskIBAN {
		out = append(out, report.WithMaskedIBAN())
	}
	return out
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func logUsage(log *zap.Logger, e *engine) {
	for _, m := range e.accountant.ByModel() {
		log.Info("model usage",
			zap.String("model", m.Model),
			zap.Int("input_tokens", m.Usage.InputTokens),
			zap.Int("output_tokens", m.Usage.OutputTokens),
			zap.Int("calls", m.Usage.Calls),
			zap.String("cost", m.Usage.Cost.String()),
		)
	}
}
