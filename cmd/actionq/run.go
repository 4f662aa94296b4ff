package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/v0xg/actionq/internal/config"
	"github.com/v0xg/actionq/internal/observability"
	"github.com/v0xg/actionq/internal/probe"
	"github.com/v0xg/actionq/internal/queue"
	"github.com/v0xg/actionq/internal/script"
	"go.uber.org/zap"
)

var (
	continueOnError bool
	skipProbe       bool

	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()

	// dial opens the session for run; nil uses driver.Connect.
	dial queue.DialFunc
)

func newProbeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that the browser endpoint is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runProbe(cmd.Context(), cfg.Probe)
		},
	}
	cmd.Flags().String("url", "", "Readiness URL (default from config)")
	_ = v.BindPFlag("probe.url", cmd.Flags().Lookup("url"))
	return cmd
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script.yaml>",
		Short: "Compile a script into a queue and run it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runScript(cmd.Context(), cfg, args[0])
		},
	}

	cmd.Flags().String("server", "", "DevTools endpoint of a running browser")
	cmd.Flags().String("browser", "", "Browser kind: chrome, chromium")
	cmd.Flags().Bool("launch", false, "Launch a local browser instead of dialing --server")
	cmd.Flags().Bool("headless", true, "Run a launched browser headless")
	cmd.Flags().Duration("timeout", 0, "Default locator timeout")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Log failed steps and keep going")
	cmd.Flags().BoolVar(&skipProbe, "skip-probe", false, "Do not probe the endpoint before running")

	_ = v.BindPFlag("browser.server", cmd.Flags().Lookup("server"))
	_ = v.BindPFlag("browser.kind", cmd.Flags().Lookup("browser"))
	_ = v.BindPFlag("browser.launch", cmd.Flags().Lookup("launch"))
	_ = v.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
	_ = v.BindPFlag("browser.default_timeout", cmd.Flags().Lookup("timeout"))
	return cmd
}

func runProbe(ctx context.Context, cfg config.ProbeConfig) error {
	fmt.Printf("→ Probing %s... ", cfg.URL)
	res, err := probe.Check(ctx, cfg.URL, cfg.Timeout)
	if err != nil {
		fmt.Println(red("failed"))
		return err
	}
	fmt.Printf("%s (HTTP %d in %s)\n", green("ready"), res.StatusCode, res.Latency.Round(time.Millisecond))
	return nil
}

func runScript(ctx context.Context, cfg *config.Config, path string) error {
	logger := observability.GetLogger()

	if cfg.Probe.Enabled && !skipProbe && !cfg.Browser.Launch {
		if err := runProbe(ctx, cfg.Probe); err != nil {
			return err
		}
	}

	fmt.Printf("→ Loading %s... ", path)
	s, err := script.Load(path)
	if err != nil {
		fmt.Println(red("failed"))
		return err
	}
	fmt.Printf("done (%d actions)\n", len(s.Actions))

	fmt.Printf("→ Connecting to %s browser... ", cfg.Browser.Kind)
	q, err := queue.New(ctx, nil, queue.Options{
		Browser:        cfg.Browser.Kind,
		Server:         cfg.Browser.Server,
		Launch:         cfg.Browser.Launch,
		Headless:       cfg.Browser.Headless,
		DefaultTimeout: cfg.Browser.DefaultTimeout,
		Logger:         logger,
		Dial:           dial,
	})
	if err != nil {
		fmt.Println(red("failed"))
		return err
	}
	defer func() {
		if err := q.Close(); err != nil {
			logger.Warn("Failed to close browser session", zap.Error(err))
		}
	}()
	fmt.Println("done")

	var errFunc queue.ErrorFunc
	if continueOnError {
		errFunc = func(err error, resume func()) {
			fmt.Printf("  %s %v\n", red("✗"), err)
			logger.Warn("Step failed, continuing", zap.Error(err))
			resume()
		}
		q.SetErrorFunc(errFunc)
	}

	report, err := script.Compile(ctx, q, s, script.Options{Logger: logger, ErrorFunc: errFunc})
	if err != nil {
		return fmt.Errorf("compile failed: %w", err)
	}

	fmt.Printf("→ Running %d steps...\n", q.Len())
	runErr := q.Execute(ctx)
	logResults(report.Results())

	if runErr != nil {
		var halt *queue.HaltError
		if errors.As(runErr, &halt) {
			fmt.Printf("%s Halted at step %d\n", red("✗"), halt.Step.Index+1)
		}
		return runErr
	}
	fmt.Printf("%s Completed %d steps\n", green("✓"), q.Len())
	return nil
}

// logResults prints what reading actions observed
func logResults(results []script.Result) {
	for _, r := range results {
		switch r.Action {
		case script.ActionGetText:
			fmt.Printf("  [%d] %s → %s (text: %q)\n", r.Index, r.Action, r.Selector, r.Text)
		case script.ActionGetAll:
			if r.Skipped {
				fmt.Printf("  [%d] %s → %s (skipped)\n", r.Index, r.Action, r.Selector)
				continue
			}
			fmt.Printf("  [%d] %s → %s (%d elements)\n", r.Index, r.Action, r.Selector, r.Count)
		}
		logVerbose("      source: %s", r.Source)
	}
}
