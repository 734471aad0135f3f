package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haukened/rr-filter/internal/filter/common/clock"
	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/config"
	"github.com/haukened/rr-filter/internal/filter/rules"
	"github.com/haukened/rr-filter/internal/filter/services/cleaner"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-filter"
)

// cliFlags are the persistent flags shared by every subcommand.
type cliFlags struct {
	configPath string
	sources    []string
	output     string
}

// overrides maps set flags onto config keys.
func (f *cliFlags) overrides() map[string]any {
	o := make(map[string]any)
	if len(f.sources) > 0 {
		o["sources"] = f.sources
	}
	if f.output != "" {
		o["output_file"] = f.output
	}
	return o
}

// loadConfig loads the configuration and configures global logging.
func (f *cliFlags) loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load(f.configPath, f.overrides())
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("logging configuration error: %w", err)
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           appName,
		Short:         "rr-filter - normalize, validate and deduplicate AdGuard-style filter lists",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().StringSliceVarP(&flags.sources, "source", "s", nil, "Filter list URL or path (repeatable, overrides config)")
	root.PersistentFlags().StringVarP(&flags.output, "output", "o", "", "Output rule file (overrides config)")

	root.AddCommand(newCleanCmd(flags), newCheckCmd(flags), newClassifyCmd(), newVersionCmd())
	return root
}

func newCleanCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Fetch all sources, clean the merged list and write the outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			log.Info(map[string]any{
				"version":   version,
				"env":       cfg.Env,
				"log_level": cfg.LogLevel,
				"workers":   cfg.Workers,
				"output":    cfg.OutputFile,
			}, "Starting rr-filter")

			app, err := buildApplication(cfg, clock.RealClock{})
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					log.Warn(map[string]any{"error": err.Error()}, "Error closing history store")
				}
			}()

			return app.Run(cmd.Context())
		},
	}
}

func newCheckCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check DOMAIN...",
		Short: "Report whether each domain currently resolves",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			validator, err := buildValidator(cfg, log.GetLogger(), nil)
			if err != nil {
				return err
			}
			return checkDomains(cmd.Context(), cmd.OutOrStdout(), validator, args)
		},
	}
}

// checkDomains prints domain<TAB>resolvable|unresolvable for every argument.
func checkDomains(ctx context.Context, w io.Writer, v *cleaner.Validator, names []string) error {
	bw := bufio.NewWriter(w)
	for _, name := range names {
		status := "unresolvable"
		if v.Validate(ctx, name) {
			status = "resolvable"
		}
		fmt.Fprintf(bw, "%s\t%s\n", name, status)
	}
	return bw.Flush()
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [RULE...]",
		Short: "Print the category and domain parts of rules (stdin when no arguments)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return classifyLines(cmd.OutOrStdout(), strings.NewReader(strings.Join(args, "\n")))
			}
			return classifyLines(cmd.OutOrStdout(), cmd.InOrStdin())
		},
	}
}

// classifyLines prints category<TAB>polarity<TAB>domain<TAB>suffix<TAB>raw per line.
func classifyLines(w io.Writer, r io.Reader) error {
	bw := bufio.NewWriter(w)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		ru, err := rules.Normalize(sc.Text())
		polarity := ""
		if ru.IsDomain() {
			polarity = ru.Polarity.String()
		}
		fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%s", ru.Category, polarity, ru.Domain, ru.Suffix, ru.Raw)
		if err != nil {
			fmt.Fprintf(bw, "\t%v", err)
		}
		bw.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return bw.Flush()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
		},
	}
}

func main() {
	// Cancel the run on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		stop()
		os.Exit(1)
	}
}
