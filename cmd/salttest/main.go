// Command salttest drives Salt CLI tools with bounded, captured
// executions and test-style function invocations.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	salttesting "github.com/h4ck3rm1k3/salt-testing"
	"github.com/h4ck3rm1k3/salt-testing/internal/config"
	"github.com/h4ck3rm1k3/salt-testing/internal/harness"
	saltmcp "github.com/h4ck3rm1k3/salt-testing/internal/mcp"
	"github.com/h4ck3rm1k3/salt-testing/internal/record"
	"github.com/h4ck3rm1k3/salt-testing/internal/runner"
	"github.com/h4ck3rm1k3/salt-testing/internal/scripts"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("salttest: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runMain(args)
	case "call":
		err = callMain(args)
	case "doctor":
		err = doctorMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(salttesting.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "salttest: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: salttest <command> [flags] [args]

Commands:
  run <tool> [args]        Run one Salt CLI tool (salt, salt-call, ...) bounded and captured
  call <function> [args]   Invoke a function on the target minion with test semantics
  doctor                   Report harness configuration and host facts
  mcp                      Start the MCP server
  version                  Print the version
  help                     Show this help

Use "salttest <command> -h" for command-specific flags.`)
}

// --- run ---

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	catchStderr := fs.Bool("stderr", false, "capture stderr separately instead of passing it through")
	wantExit := fs.Bool("exitcode", false, "collect the exit code and propagate it")
	raw := fs.Bool("raw", false, "print output raw instead of line by line")
	timeoutFlag := fs.Duration("timeout", 0, "wall-clock bound (e.g. 30s); overrides the configured run timeout")
	jsonFlag := fs.Bool("json", false, "output the full result as JSON")
	verbose := fs.Bool("v", false, "verbose logging")
	_ = fs.Parse(args)

	rest := fs.Args()
	if len(rest) < 1 {
		return errors.New("usage: salttest run [flags] <tool> [argument string]")
	}
	tool := rest[0]
	argStr := strings.Join(rest[1:], " ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stack, err := newHarness(*verbose)
	if err != nil {
		return err
	}

	timeout := stack.cfg.RunTimeout()
	if *timeoutFlag > 0 {
		timeout = *timeoutFlag
	}

	var opts []harness.Option
	if *catchStderr {
		opts = append(opts, harness.WithStderr())
	}
	if *wantExit {
		opts = append(opts, harness.WithExitCode())
	}
	if *raw {
		opts = append(opts, harness.WithRaw())
	}
	if timeout > 0 {
		opts = append(opts, harness.WithTimeout(timeout))
	}

	var res *runner.Result
	switch tool {
	case "salt":
		res, err = stack.shell.RunSalt(ctx, argStr, opts...)
	case "salt-call":
		res, err = stack.shell.RunCall(ctx, argStr, opts...)
	case "salt-run":
		res, err = stack.shell.RunRun(ctx, argStr, opts...)
	case "salt-key":
		res, err = stack.shell.RunKey(ctx, argStr, opts...)
	case "salt-cp":
		res, err = stack.shell.RunCP(ctx, argStr, opts...)
	case "salt-cloud":
		res, err = stack.shell.RunCloud(ctx, argStr, *catchStderr, timeout)
	case "salt-ssh":
		res, err = stack.shell.RunSSH(ctx, argStr, opts...)
	default:
		return fmt.Errorf("unknown tool %q (one of: salt, salt-call, salt-run, salt-key, salt-cp, salt-cloud, salt-ssh)", tool)
	}
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if res.Missing {
		return fmt.Errorf("%s could not be located; run salttest doctor to see the script directory", tool)
	}

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printRunResult(res)
	}

	if res.Killed {
		os.Exit(1)
	}
	if res.HasExit && res.ExitCode != 0 {
		os.Exit(res.ExitCode)
	}
	return nil
}

func printRunResult(res *runner.Result) {
	if len(res.RawStdout) > 0 {
		os.Stdout.Write(res.RawStdout)
	} else {
		for _, line := range res.Stdout {
			fmt.Println(line)
		}
	}
	if res.HasStderr {
		if len(res.RawStderr) > 0 {
			os.Stderr.Write(res.RawStderr)
		} else {
			for _, line := range res.Stderr {
				fmt.Fprintln(os.Stderr, line)
			}
		}
	}
}

// --- call ---

func callMain(args []string) error {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	target := fs.String("target", "", "minion id to target (default from config)")
	timeoutFlag := fs.Duration("timeout", 0, "bounded wait (e.g. 30s); overrides the configured function timeout")
	verbose := fs.Bool("v", false, "verbose logging")
	_ = fs.Parse(args)

	rest := fs.Args()
	if len(rest) < 1 {
		return errors.New("usage: salttest call [flags] <function> [args...]")
	}
	function := rest[0]
	fnArgs := rest[1:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stack, err := newHarness(*verbose)
	if err != nil {
		return err
	}
	client := stack.client
	if *target != "" {
		client.Target = *target
	}
	if *timeoutFlag > 0 {
		client.Timeout = *timeoutFlag
	}

	ret, err := client.RunFunction(ctx, function, fnArgs...)
	if err != nil {
		var skip harness.ErrSkip
		if errors.As(err, &skip) {
			fmt.Println("SKIP:", skip.Error())
			return nil
		}
		return fmt.Errorf("call: %w", err)
	}

	rendered, err := json.MarshalIndent(ret, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", ret)
		return nil
	}
	fmt.Printf("%s\n", rendered)
	return nil
}

// --- doctor ---

func doctorMain(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	verbose := fs.Bool("v", false, "verbose logging")
	_ = fs.Parse(args)

	stack, err := newHarness(*verbose)
	if err != nil {
		return err
	}
	cfg := stack.cfg

	fmt.Printf("Repo root: %s\n", stack.root)
	if _, err := os.Stat(filepath.Join(stack.root, ".salttest")); err == nil {
		fmt.Println("Config file: .salttest")
	} else {
		fmt.Println("Config file: none (using defaults)")
	}
	fmt.Printf("Target: %s\n", cfg.TargetName())
	if cfg.ConfigDir != "" {
		fmt.Printf("Config dir: %s\n", cfg.ConfigDir)
	} else {
		fmt.Println("Config dir: (not configured)")
	}

	scriptDir := cfg.ScriptDir(stack.root)
	if _, err := os.Stat(scriptDir); err == nil {
		fmt.Printf("Script dir: %s\n", scriptDir)
	} else {
		fmt.Printf("Script dir: %s (created on first use)\n", scriptDir)
	}

	fmt.Printf("Function timeout: %s\n", cfg.FunctionTimeout())
	if rt := cfg.RunTimeout(); rt > 0 {
		fmt.Printf("Run timeout: %s\n", rt)
	} else {
		fmt.Println("Run timeout: unbounded")
	}
	fmt.Printf("Max records: %d\n", cfg.MaxRecords())
	fmt.Printf("Known none returners: %s\n", strings.Join(cfg.KnownNoneReturners(), ", "))
	fmt.Printf("SSH key: %s\n", cfg.SSHPriv())
	fmt.Printf("SSH roster: %s\n", cfg.SSHRoster())

	fmt.Println()
	printHostFacts()
	return nil
}

func printHostFacts() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if info, err := host.InfoWithContext(ctx); err == nil {
		fmt.Printf("Host: %s (%s %s, %s)\n",
			info.Hostname, info.Platform, info.PlatformVersion, info.KernelArch)
	} else {
		fmt.Println("Host: (unavailable)")
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		fmt.Printf("CPUs: %d logical\n", n)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		fmt.Printf("Memory: %.1f GiB\n", float64(vm.Total)/float64(1<<30))
	}
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	verbose := fs.Bool("v", false, "verbose logging")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(saltmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, *httpAddr, *verbose)
}

func serve(ctx context.Context, httpAddr string, verbose bool) error {
	stack, err := newHarness(verbose)
	if err != nil {
		return err
	}

	server := saltmcp.NewServer(stack.cfg, stack.runner, stack.shell, stack.client, stack.store)

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

// harnessStack bundles the wired execution pipeline for one command.
type harnessStack struct {
	cfg    *config.Config
	root   string
	runner *runner.Runner
	shell  *harness.Shell
	client *harness.Client
	store  record.Store
}

func newHarness(verbose bool) (*harnessStack, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	logger := newLogger(verbose)
	store := record.NewLRUStore(cfg.MaxRecords(), record.NewDiskStore())

	r := &runner.Runner{
		Scripts: &scripts.Locator{
			Dir:      cfg.ScriptDir(loaded.RepoRoot),
			Coverage: cfg.Scripts.Coverage,
			Log:      logger,
		},
		Workspace:  loaded.RepoRoot,
		PathPrefix: cfg.PathPrefix,
		MaxOutput:  cfg.MaxOutputBytes(),
		Records:    store,
		Log:        logger,
	}

	shell := &harness.Shell{
		Exec:      r,
		ConfigDir: cfg.ConfigDir,
		SSHPriv:   cfg.SSHPriv(),
		SSHRoster: cfg.SSHRoster(),
		Log:       logger,
	}

	client := &harness.Client{
		Target:        cfg.TargetName(),
		Caller:        &harness.CLICaller{Shell: shell, Log: logger},
		Timeout:       cfg.FunctionTimeout(),
		NoneReturners: cfg.KnownNoneReturners(),
		Log:           logger,
	}

	return &harnessStack{
		cfg:    cfg,
		root:   loaded.RepoRoot,
		runner: r,
		shell:  shell,
		client: client,
		store:  store,
	}, nil
}

// newLogger builds a console logger on stderr. Without -v only warnings
// and errors surface.
func newLogger(verbose bool) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}

	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)
	return zap.New(core)
}
