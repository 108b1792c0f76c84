package cli

import (
	"fmt"
	"log/slog"
	"strconv"
	"text/tabwriter"

	"lightcurve/internal/config"
	"lightcurve/internal/logging"
	"lightcurve/internal/store"
	"lightcurve/pkg/lightcurve"

	"github.com/spf13/cobra"
)

// Version is reported by the version command.
var Version = "v0.1.0"

// rootFlags are shared by every subcommand.
type rootFlags struct {
	logLevel  string
	logFormat string
	db        string
}

func (f *rootFlags) logger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level, format := f.logLevel, f.logFormat
	if cfg != nil {
		if !cmd.Flags().Changed("log-level") {
			level = cfg.Logging.Level
		}
		if !cmd.Flags().Changed("log-format") {
			format = cfg.Logging.Format
		}
	}
	return logging.NewWithWriter(cmd.ErrOrStderr(), level, format)
}

// dbPath resolves the database from the flag, then cfg, then the environment.
func (f *rootFlags) dbPath(cfg *config.Config) string {
	if f.db != "" {
		return f.db
	}
	if cfg != nil {
		return cfg.Store.Path
	}
	return config.EnvDatabase()
}

// NewRootCmd creates the root Cobra command
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "lightcurve",
		Short: "Differential aperture photometry over FITS frame sequences",
		Long: `Lightcurve measures a target star and a set of reference stars on every frame
of an observing sequence and produces the target's differential magnitude curve.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "log format (text|json)")
	rootCmd.PersistentFlags().StringVar(&flags.db, "db", "", "SQLite database for stored runs (overrides config and LIGHTCURVE_DB)")

	rootCmd.AddCommand(newRunCmd(flags))
	rootCmd.AddCommand(newMeasureCmd(flags))
	rootCmd.AddCommand(newRunsCmd(flags))
	rootCmd.AddCommand(newShowCmd(flags))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "run <session.yaml>",
		Short: "Run a photometry session described by a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if flags.db != "" {
				cfg.Store.Path = flags.db
			}
			if label != "" {
				cfg.Store.Label = label
			}

			res, err := runSession(cmd.Context(), cfg, flags.logger(cmd, cfg))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printReport(out, res.Curve, res.Background, res.Duration)
			if res.RunID > 0 {
				fmt.Fprintf(out, "Stored as run %d\n", res.RunID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "label for the stored run")
	return cmd
}

func newMeasureCmd(flags *rootFlags) *cobra.Command {
	var (
		target     string
		references []string
		radius     int
		method     string
		workers    int
		debayer    bool
		csvPath    string
		chartPath  string
		label      string
	)

	cmd := &cobra.Command{
		Use:   "measure <frames>",
		Short: "Measure a light curve from a directory or glob of frames",
		Long: `Measure a light curve without a session file. Stars are given as x,y or
name=x,y in pixel coordinates; --ref may be repeated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.Frames = args[0]
			cfg.Debayer = debayer
			cfg.Radius = radius
			cfg.Method = method
			if workers > 0 {
				cfg.Workers = workers
			}

			t, err := parseStar(target)
			if err != nil {
				return err
			}
			cfg.Target = t
			for _, r := range references {
				star, err := parseStar(r)
				if err != nil {
					return err
				}
				cfg.References = append(cfg.References, star)
			}

			cfg.Output.CSV = csvPath
			cfg.Output.Chart = chartPath
			cfg.Store.Path = flags.dbPath(nil)
			cfg.Store.Label = label

			res, err := runSession(cmd.Context(), cfg, flags.logger(cmd, nil))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printReport(out, res.Curve, res.Background, res.Duration)
			if res.RunID > 0 {
				fmt.Fprintf(out, "Stored as run %d\n", res.RunID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "target star position (x,y or name=x,y)")
	cmd.Flags().StringArrayVarP(&references, "ref", "r", nil, "reference star position (x,y or name=x,y), repeatable")
	cmd.Flags().IntVar(&radius, "radius", 8, "aperture radius in pixels")
	cmd.Flags().StringVar(&method, "method", string(lightcurve.MethodAverage), "reference combination method (average)")
	cmd.Flags().IntVar(&workers, "workers", 0, "frames measured concurrently (0 = number of CPUs)")
	cmd.Flags().BoolVar(&debayer, "debayer", false, "debayer RGGB frames before measuring")
	cmd.Flags().StringVar(&csvPath, "csv", "", "write the curve as CSV to this path")
	cmd.Flags().StringVar(&chartPath, "chart", "", "render the curve as JPEG to this path")
	cmd.Flags().StringVar(&label, "label", "", "label for the stored run (with --db)")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func newRunsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(flags)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No stored runs")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tMETHOD\tFRAMES\tREFS\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n",
					r.ID, r.Label, r.Method, r.Frames, r.References, r.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}

func newShowCmd(flags *rootFlags) *cobra.Command {
	var (
		asCSV     bool
		chartPath string
	)

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}
			st, err := openStore(flags)
			if err != nil {
				return err
			}
			defer st.Close()

			curve, err := st.LoadCurve(cmd.Context(), id)
			if err != nil {
				return err
			}
			if chartPath != "" {
				if err := lightcurve.RenderChartFile(curve, 900, 600, chartPath); err != nil {
					return err
				}
			}
			if asCSV {
				return lightcurve.WriteCSV(cmd.OutOrStdout(), curve)
			}
			printReport(cmd.OutOrStdout(), curve, nil, 0)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asCSV, "csv", false, "print the run as CSV")
	cmd.Flags().StringVar(&chartPath, "chart", "", "render the run as JPEG to this path")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "lightcurve "+Version)
		},
	}
}

func openStore(flags *rootFlags) (*store.Store, error) {
	path := flags.dbPath(nil)
	if path == "" {
		return nil, fmt.Errorf("no database configured: use --db or LIGHTCURVE_DB")
	}
	return store.New(path)
}
