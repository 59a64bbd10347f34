package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	vybiumcairovm "github.com/vybium/vybium-cairo-vm/pkg/vybium-cairo-vm"
)

var (
	Version = "dev"
	Commit  = "none"
)

// runOutput is the JSON summary written to stdout
type runOutput struct {
	PC              string `json:"pc"`
	AP              string `json:"ap"`
	FP              string `json:"fp"`
	Steps           uint64 `json:"steps"`
	Halted          bool   `json:"halted"`
	Segments        int    `json:"segments"`
	MemoryCells     int    `json:"memory_cells"`
	TraceLength     int    `json:"trace_length"`
	ProgramDigest   string `json:"program_digest"`
	TraceCommitment string `json:"trace_commitment,omitempty"`
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "vybium-cairo-vm",
		Short: "Vybium Cairo VM",
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	var (
		maxSteps      uint64
		rangeCheckExp uint
		hashFunction  string
		trace         bool
		logLevel      string
		builtins      []string
		traceFile     string
		memoryFile    string
	)

	var runCmd = &cobra.Command{
		Use:   "run <program.json>",
		Short: "Execute a compiled program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read program: %w", err)
			}
			program, err := vybiumcairovm.ParseProgram(data)
			if err != nil {
				return err
			}

			config := vybiumcairovm.DefaultVMConfig()
			config.MaxSteps = maxSteps
			config.RangeCheckBoundExponent = rangeCheckExp
			config.HashFunction = hashFunction
			config.TraceEnabled = trace || traceFile != ""
			config.Builtins = builtins
			config.Logger = logger

			vm, err := vybiumcairovm.NewVM(config)
			if err != nil {
				return err
			}

			logStderr(fmt.Sprintf("executing %s (%d words)", args[0], len(program.Data)))
			result, err := vm.Execute(program)
			if err != nil {
				state := vm.GetState()
				logStderr(fmt.Sprintf("stopped at step %d, pc=%s ap=%s fp=%s", state.CycleCount, state.PC, state.AP, state.FP))
				return err
			}

			if traceFile != "" {
				if err := writeFile(traceFile, result.WriteTrace); err != nil {
					return fmt.Errorf("failed to write trace: %w", err)
				}
			}
			if memoryFile != "" {
				if err := writeFile(memoryFile, result.WriteMemory); err != nil {
					return fmt.Errorf("failed to write memory: %w", err)
				}
			}

			out := runOutput{
				PC:            result.PC.String(),
				AP:            result.AP.String(),
				FP:            result.FP.String(),
				Steps:         result.CycleCount,
				Halted:        result.Halted,
				Segments:      result.Segments,
				MemoryCells:   len(result.Memory),
				TraceLength:   len(result.Trace),
				ProgramDigest: hex.EncodeToString(result.ProgramDigest),
			}
			if result.TraceCommitment != nil {
				out.TraceCommitment = hex.EncodeToString(result.TraceCommitment)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	defaults := vybiumcairovm.DefaultVMConfig()
	runCmd.Flags().Uint64Var(&maxSteps, "max-steps", 0, "abort after this many steps (0 = unlimited)")
	runCmd.Flags().UintVar(&rangeCheckExp, "range-check-bound", defaults.RangeCheckBoundExponent, "range check bound exponent n, values must be below 2^n")
	runCmd.Flags().StringVar(&hashFunction, "hash", defaults.HashFunction, "program digest hash (sha3 or sha256)")
	runCmd.Flags().BoolVar(&trace, "trace", defaults.TraceEnabled, "record the register trace and commit to it")
	runCmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	runCmd.Flags().StringSliceVar(&builtins, "builtins", nil, "builtins to run with, overrides the program's list")
	runCmd.Flags().StringVar(&traceFile, "trace-file", "", "write the relocated trace in binary form")
	runCmd.Flags().StringVar(&memoryFile, "memory-file", "", "write the relocated memory in binary form")

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vybium-cairo-vm %s (%s)\n", Version, Commit)
		},
	}

	rootCmd.AddCommand(runCmd, versionCmd)
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		logStderr("ERROR: " + err.Error())
		os.Exit(1)
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "trace":
		l = vybiumcairovm.LevelTrace
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func logStderr(msg string) {
	fmt.Fprintln(os.Stderr, "vybium-cairo-vm:", msg)
}
