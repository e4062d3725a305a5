// Package main provides the CLI entrypoint for parkdash.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/parkdash/internal/calendar"
	"github.com/verte-zerg/parkdash/internal/config"
	"github.com/verte-zerg/parkdash/internal/dashboard"
	"github.com/verte-zerg/parkdash/internal/gateway"
	"github.com/verte-zerg/parkdash/internal/logging"
	"github.com/verte-zerg/parkdash/internal/metrics"
	"github.com/verte-zerg/parkdash/internal/report"
	"github.com/verte-zerg/parkdash/internal/timefmt"
	"github.com/verte-zerg/parkdash/internal/ui"
	"github.com/verte-zerg/parkdash/internal/weekly"
)

var (
	flagAPIURL         string
	flagCollectURL     string
	flagTimeout        time.Duration
	flagCollectTimeout time.Duration
	flagLogLevel       string
	flagLogFile        string
	flagMetricsAddr    string

	resultsEvent string
	resultsDate  string

	weeklyEvent string

	scrapeLoopAll bool

	icsEvent string
	icsOut   string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "parkdash",
		Short:         "Event results dashboard",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runDashboardCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagAPIURL, "api-url", config.DefaultAPIURL, "results API base URL")
	flags.StringVar(&flagCollectURL, "collect-url", "", "collection job base URL (default: api-url)")
	flags.DurationVar(&flagTimeout, "timeout", config.DefaultTimeout, "timeout for each read request")
	flags.DurationVar(&flagCollectTimeout, "collect-timeout", config.DefaultCollectTimeout, "timeout for the collection trigger")
	flags.StringVar(&flagLogLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&flagLogFile, "log-file", "", "log file (dashboard default: $XDG_STATE_HOME/parkdash/parkdash.log)")
	flags.StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the dashboard runs")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newResultsCmd())
	rootCmd.AddCommand(newWeeklyCmd())
	rootCmd.AddCommand(newScrapeCmd())
	rootCmd.AddCommand(newExportICSCmd())

	return rootCmd
}

// app bundles what every command needs once configuration is resolved.
type app struct {
	settings config.Settings
	log      *slog.Logger
	client   *gateway.Client
	metrics  *metrics.Recorder
	closeLog func() error
}

func newApp(cmd *cobra.Command, interactive bool) (*app, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := openLogger(cmd.ErrOrStderr(), settings, interactive)
	if err != nil {
		return nil, err
	}

	recorder, err := metrics.New()
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	client, err := gateway.New(settings.APIURL,
		gateway.WithCollectURL(settings.CollectURL),
		gateway.WithTimeout(settings.Timeout),
		gateway.WithCollectTimeout(settings.CollectTimeout),
		gateway.WithLogger(logger),
		gateway.WithMetrics(recorder),
	)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &app{
		settings: settings,
		log:      logger,
		client:   client,
		metrics:  recorder,
		closeLog: closeLog,
	}, nil
}

func (a *app) close() {
	if err := a.closeLog(); err != nil {
		logErrf("failed to close log: %v\n", err)
	}
}

// loadSettings resolves defaults, the config file, .env and environment
// variables, then applies flags the user set explicitly.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config.Settings{}, fmt.Errorf("failed to load .env: %w", err)
	}
	settings, err := config.Resolve(config.DefaultConfigPath())
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringFlag(cmd, "api-url", &settings.APIURL, flagAPIURL)
	applyStringFlag(cmd, "collect-url", &settings.CollectURL, flagCollectURL)
	applyDurationFlag(cmd, "timeout", &settings.Timeout, flagTimeout)
	applyDurationFlag(cmd, "collect-timeout", &settings.CollectTimeout, flagCollectTimeout)
	applyStringFlag(cmd, "log-level", &settings.LogLevel, flagLogLevel)
	applyStringFlag(cmd, "log-file", &settings.LogFile, flagLogFile)
	applyStringFlag(cmd, "metrics-addr", &settings.MetricsAddr, flagMetricsAddr)
	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

// openLogger writes to a file for the dashboard so the alternate screen stays
// clean; subcommands log to stderr unless a file is configured.
func openLogger(stderr io.Writer, settings config.Settings, interactive bool) (*slog.Logger, func() error, error) {
	path := settings.LogFile
	if path == "" && interactive {
		path = config.DefaultLogPath()
	}
	if path != "" {
		return logging.OpenFile(path, settings.LogLevel)
	}
	logger, err := logging.New(stderr, settings.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() error { return nil }, nil
}

func runDashboardCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if addr := a.settings.MetricsAddr; addr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, addr); err != nil {
				a.log.Error("metrics server stopped", "addr", addr, "error", err)
			}
		}()
	}

	a.log.Info("starting dashboard", "api_url", a.settings.APIURL)
	ctrl := dashboard.New(ctx, a.client, a.log)
	program := tea.NewProgram(ui.New(ctrl), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	return nil
}

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List event codes and names",
		Args:  cobra.NoArgs,
		RunE:  runEventsCmd,
	}
}

func runEventsCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	events, err := a.client.ListEvents(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	out := cmd.OutOrStdout()
	return report.WriteEvents(out, events, report.TerminalWidth(out))
}

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show the finishers of one event on one date",
		Args:  cobra.NoArgs,
		RunE:  runResultsCmd,
	}
	cmd.Flags().StringVar(&resultsEvent, "event", "", "event code")
	cmd.Flags().StringVar(&resultsDate, "date", "", "event date (DD/MM/YYYY or YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func runResultsCmd(cmd *cobra.Command, _ []string) error {
	date, err := timefmt.ParseAny(resultsDate)
	if err != nil {
		return fmt.Errorf("invalid --date value: %w", err)
	}
	queryDate, err := timefmt.ToQueryDate(date)
	if err != nil {
		return err
	}
	displayDate, err := timefmt.ToDisplayDate(date)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	rows, err := a.client.ListResults(cmd.Context(), resultsEvent, queryDate)
	if err != nil {
		return fmt.Errorf("failed to load results: %w", err)
	}
	out := cmd.OutOrStdout()
	return report.WriteResults(out, resultsEvent, displayDate, rows, report.TerminalWidth(out))
}

func newWeeklyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Show an event's history as a month by week matrix",
		Args:  cobra.NoArgs,
		RunE:  runWeeklyCmd,
	}
	cmd.Flags().StringVar(&weeklyEvent, "event", "", "event code")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func runWeeklyCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	occurrences, err := a.client.ListOccurrences(cmd.Context(), weeklyEvent)
	if err != nil {
		return fmt.Errorf("failed to load occurrences: %w", err)
	}
	out := cmd.OutOrStdout()
	return report.WriteWeekly(out, weekly.Aggregate(occurrences), report.TerminalWidth(out))
}

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Ask the remote job to start collecting results",
		Args:  cobra.NoArgs,
		RunE:  runScrapeCmd,
	}
	cmd.Flags().BoolVar(&scrapeLoopAll, "loop-all", true, "collect every event instead of the latest only")
	return cmd
}

func runScrapeCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	reply, err := a.client.TriggerCollection(cmd.Context(), scrapeLoopAll)
	if err != nil {
		return fmt.Errorf("failed to trigger collection: %w", err)
	}
	if reply.Error != "" && reply.Message == "" {
		return fmt.Errorf("collection rejected: %s", reply.Error)
	}
	message := reply.Message
	if message == "" {
		message = "Collection request accepted."
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), message); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newExportICSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Write an event's occurrences as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE:  runExportICSCmd,
	}
	cmd.Flags().StringVar(&icsEvent, "event", "", "event code")
	cmd.Flags().StringVar(&icsOut, "out", "", "output file (default: stdout)")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func runExportICSCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	occurrences, err := a.client.ListOccurrences(cmd.Context(), icsEvent)
	if err != nil {
		return fmt.Errorf("failed to load occurrences: %w", err)
	}
	now := time.Now()
	if icsOut == "" {
		return calendar.Write(cmd.OutOrStdout(), icsEvent, occurrences, now)
	}
	err = writeFileAtomic(icsOut, func(w io.Writer) error {
		return calendar.Write(w, icsEvent, occurrences, now)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", icsOut, err)
	}
	a.log.Info("wrote calendar", "path", icsOut, "occurrences", len(occurrences))
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".parkdash-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	writer := bufio.NewWriter(tmpFile)
	if err := write(writer); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename output: %w", err)
	}
	return nil
}

func applyStringFlag(cmd *cobra.Command, name string, target *string, value string) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = strings.TrimSpace(value)
}

func applyDurationFlag(cmd *cobra.Command, name string, target *time.Duration, value time.Duration) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# parkdash configuration
# Uncomment a value to enable it. PARKDASH_* environment variables override
# this file and CLI flags override both.

[api]
# url = %q                # Results API base URL
# collect-url = ""        # Collection job base URL (default: url)
# timeout = %q            # Timeout for each read request
# collect-timeout = %q    # Timeout for the collection trigger

[log]
# level = %q              # debug, info, warn or error
# file = ""               # Log file (dashboard default: %s)

[metrics]
# addr = ":9100"          # Serve /metrics while the dashboard runs
`,
		config.DefaultAPIURL,
		config.DefaultTimeout.String(),
		config.DefaultCollectTimeout.String(),
		config.DefaultLogLevel,
		config.DefaultLogPath(),
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
