package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"Corsgo/internal/config"
	"Corsgo/internal/httpclient"
	"Corsgo/internal/kb"
	"Corsgo/internal/logger"
	"Corsgo/internal/payloads"
	"Corsgo/internal/reporter"
	"Corsgo/internal/scanner"
	"Corsgo/internal/scanner/cors"
)

const defaultConfigPath = "config.yaml"

// main is the entry point of the Corsgo application.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes one scan. Log lines and the text summary go to stdout unless the output
// format is json, in which case stdout carries only the JSON report.
func run(args []string, stdout io.Writer) int {
	log := logger.NewWithWriters(logger.INFO, stdout, os.Stderr)
	startTime := time.Now()

	// The config file has to be loaded before flags are parsed so it can supply defaults.
	configPath := configPathFromArgs(args)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Error("Failed to load %s: %v", configPath, err)
		return 1
	}

	fs := flag.NewFlagSet("corsgo", flag.ContinueOnError)
	var targetURL, targetsFile, origin, jsonOutputFile, format string
	var concurrency, maxRetries, delay, timeout int
	var extended, verbose, trace, insecure bool

	fs.String("config", configPath, "Path to the YAML configuration file")
	fs.StringVar(&targetURL, "u", cfg.Target, "Target URL for scanning")
	fs.StringVar(&targetsFile, "l", cfg.TargetsFile, "File with one target URL per line")
	fs.StringVar(&origin, "origin", cfg.CORS.OriginHeaderValue, "Origin HTTP header value used in probes")
	fs.BoolVar(&extended, "extended-origins", cfg.CORS.ExtendedOrigins, "Also probe with bypass-variant origins (null, prefix/suffix tricks)")
	fs.IntVar(&concurrency, "c", cfg.Concurrency, "Number of concurrent workers")
	fs.IntVar(&maxRetries, "r", cfg.MaxRetries, "Maximum number of retries for failed requests")
	fs.IntVar(&delay, "delay", cfg.Delay, "Delay between retries in milliseconds (ms)")
	fs.IntVar(&timeout, "timeout", cfg.Timeout, "Per-request timeout in seconds")
	fs.BoolVar(&insecure, "k", cfg.Insecure, "Skip TLS certificate verification")
	fs.StringVar(&jsonOutputFile, "output-json", cfg.Output.OutputFile, "Path to save the report file in JSON format")
	fs.StringVar(&format, "format", cfg.Output.Format, "Console output format: text or json (json prints the report to stdout)")
	fs.BoolVar(&verbose, "v", cfg.Output.Verbose, "Enable verbose output (DEBUG level)")
	fs.BoolVar(&trace, "vv", false, "Enable trace-level output (highly verbose)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Corsgo inspects whether an application checks that the value of the \"Origin\" HTTP header\n")
		fmt.Fprintf(os.Stderr, "is consistent with the sender of the request, and reports insecure CORS configurations.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: corsgo [flags]\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCONFIGURATION:\n")
		fmt.Fprintf(os.Stderr, "  Corsgo loads 'config.yaml' from the current directory (or -config).\n")
		fmt.Fprintf(os.Stderr, "  Command-line flags override settings from the configuration file.\n")
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  corsgo -u http://example.com/api/me\n")
		fmt.Fprintf(os.Stderr, "  corsgo -l urls.txt -origin https://attacker.example -extended-origins -output-json report.json\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	level := logger.INFO
	switch {
	case trace:
		level = logger.TRACE
	case verbose:
		level = logger.DEBUG
	case cfg.Output.LogLevel != "":
		level = logger.ParseLevel(cfg.Output.LogLevel)
	}

	cfg.Target = targetURL
	cfg.TargetsFile = targetsFile
	cfg.CORS.OriginHeaderValue = origin
	cfg.CORS.ExtendedOrigins = extended
	cfg.Concurrency = concurrency
	cfg.MaxRetries = maxRetries
	cfg.Delay = delay
	cfg.Timeout = timeout
	cfg.Insecure = insecure
	cfg.Output.Format = format
	if err := cfg.Validate(); err != nil {
		log.Error("%v", err)
		return 1
	}

	// Keep stdout clean for the JSON document.
	logOut := stdout
	if cfg.OutputFormat() == config.FormatJSON {
		logOut = os.Stderr
	}
	log = logger.NewWithWriters(level, logOut, os.Stderr)

	if cfg.TargetsFile != "" {
		fileTargets, err := readTargets(cfg.TargetsFile)
		if err != nil {
			log.Error("Failed to read targets: %v", err)
			return 1
		}
		cfg.Targets = append(cfg.Targets, fileTargets...)
	}
	targetList := cfg.AllTargets()
	if len(targetList) == 0 {
		log.Error("No target given. Use -u or -l.")
		fs.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := httpclient.NewClient(log, httpclient.ClientOptions{
		Timeout:            time.Duration(cfg.Timeout) * time.Second,
		InsecureSkipVerify: cfg.Insecure,
		UserAgent:          cfg.UserAgent,
		MaxRetries:         cfg.MaxRetries,
		RequestDelay:       time.Duration(cfg.Delay) * time.Millisecond,
		TargetBaseURL:      targetList[0],
		AuthCookie:         cfg.Authentication.Cookie,
		AuthHeaders:        cfg.Authentication.Headers,
	})

	origins := payloads.CORSOrigins(cfg.CORS.OriginHeaderValue, cfg.CORS.ExtendedOrigins)
	store := kb.NewStore()
	analyzer := cors.NewAnalyzer(cors.AnalyzerOptions{
		Origin:           cfg.CORS.OriginHeaderValue,
		ProbeConcurrency: cfg.CORS.ProbeConcurrency,
		KB:               store,
		Output:           log,
		Logger:           log,
	})

	manager := scanner.NewManager(client, log, scanner.ScannerOptions{Concurrency: cfg.Concurrency})
	manager.RegisterScanner(cors.NewScanner(analyzer, origins, nil))

	targets := make([]scanner.Target, 0, len(targetList))
	for _, t := range targetList {
		targets = append(targets, scanner.Target{URL: t, Method: "GET"})
	}

	log.Info("Testing %d target(s) with %d origin(s).", len(targets), len(origins))
	findings := manager.RunScans(ctx, targets)
	endTime := time.Now()

	report := reporter.NewReport(targetList, startTime)
	report.Finalize(endTime, startTime, findings, manager.ScannerNames(), origins)

	switch cfg.OutputFormat() {
	case config.FormatJSON:
		if err := reporter.WriteJSON(stdout, report); err != nil {
			log.Error("Failed to print JSON report: %v", err)
			return 1
		}
	default:
		for _, f := range report.Vulnerabilities {
			log.Info("[%s] %s - %s", f.Severity, f.Name, f.URL)
		}
	}
	log.Info("Scan finished in %s: %d finding(s), %d knowledge-base entries.",
		endTime.Sub(startTime).Round(time.Millisecond), len(findings), store.Len())

	if jsonOutputFile != "" {
		if err := reporter.WriteJSONReport(report, jsonOutputFile); err != nil {
			log.Error("Failed to write JSON report: %v", err)
			return 1
		}
		log.Info("Report saved to %s", jsonOutputFile)
	}
	return 0
}

// configPathFromArgs finds the -config flag in args ahead of flag parsing. It accepts
// one or two leading dashes, with the value either attached by "=" or as the next
// argument. The last occurrence wins, as with the flag package.
func configPathFromArgs(args []string) string {
	path := defaultConfigPath
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-"), "=")
		if name != "config" {
			continue
		}
		if hasValue {
			path = value
		} else if i+1 < len(args) {
			path = args[i+1]
			i++
		}
	}
	return path
}

// readTargets returns the non-empty, non-comment lines of path.
func readTargets(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}
