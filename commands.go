package satrain

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
)

// downloadBar is the progress bar rendered during downloads, counting
// files rather than bytes.
const downloadBar pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{bar . }} {{counters . }} {{percent . }}`

// NewCommand creates the Cobra command tree for the dataset CLI. The
// returned command can be executed directly or added to a parent CLI's
// root command.
//
// Commands provided:
//   - download [--data_path PATH] [--sensors LIST] [--splits LIST]
//     [--subset NAME] [--domains LIST] [--geometries LIST]
//     [--inputs LIST] [--formats LIST]
//   - list
//   - config show
//   - config set_data_path PATH
//
// Global flags: --json, --quiet
func NewCommand(cfg Config, opts ...ManagerOption) *cobra.Command {
	var (
		jsonOutput bool
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "satrain",
		Short: "Manage the SatRain benchmark dataset",
		Long:  "Download the SatRain satellite precipitation benchmark dataset and inspect the local copy.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")

	// Manager construction is deferred into each RunE because the
	// download command's --data_path must take effect before resolution.
	mkManager := func(dataPath string) (Manager, error) {
		c := cfg
		if dataPath != "" {
			c.DataPath = dataPath
		}
		return NewManager(c, opts...)
	}

	cmd.AddCommand(downloadCmd(mkManager, &jsonOutput, &quiet))
	cmd.AddCommand(listCmd(mkManager, &jsonOutput))
	cmd.AddCommand(configCmd(mkManager, &jsonOutput, &quiet))

	return cmd
}

type managerFactory func(dataPath string) (Manager, error)

func downloadCmd(mkManager managerFactory, jsonOutput, quiet *bool) *cobra.Command {
	var (
		dataPath    string
		sensors     string
		splits      string
		subset      string
		domains     string
		geometries  string
		inputs      string
		formats     string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download dataset partitions",
		Long:  "Download the dataset partitions matching the given filters, skipping files already present locally.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			mgr, err := mkManager(dataPath)
			if err != nil {
				return err
			}

			// An explicit --data_path becomes the persisted default for
			// later invocations. Failure to persist is a warning only;
			// the current invocation still uses the resolved path.
			if dataPath != "" {
				if err := mgr.SetDataPath(dataPath); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v; the setting will not survive this invocation\n", err)
				}
			}

			keys, err := mgr.ValidKeys(Filters{
				Sensors:    splitList(sensors),
				Splits:     splitList(splits),
				Subset:     subset,
				Domains:    splitList(domains),
				Geometries: splitList(geometries),
				Sources:    sourcesFilter(inputs),
				Formats:    splitList(formats),
			})
			if errors.Is(err, ErrEmptyIntersection) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
				return nil
			}
			if err != nil {
				return err
			}

			dopts := []DownloadOption{WithConcurrency(concurrency)}
			var bar *pb.ProgressBar
			if !*quiet {
				dopts = append(dopts, WithProgress(func(p DownloadProgress) {
					if bar == nil {
						if p.FilesTotal == 0 {
							return
						}
						bar = downloadBar.New(p.FilesTotal)
						bar.SetWriter(cmd.ErrOrStderr())
						bar.Set("prefix", "Downloading:")
						bar.Start()
					}
					bar.SetCurrent(int64(p.FilesCompleted))
				}))
			}

			report, err := mgr.EnsureLocal(ctx, keys, dopts...)
			if bar != nil {
				bar.Finish()
			}
			if err != nil {
				return err
			}

			if err := outputReport(cmd.OutOrStdout(), report, *jsonOutput, *quiet); err != nil {
				return err
			}
			if report.Failed() {
				return fmt.Errorf("download incomplete: some files failed after retries")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data_path", "", "Local data root (persisted for later invocations)")
	cmd.Flags().StringVar(&sensors, "sensors", "", "Comma-separated reference sensors (default: all)")
	cmd.Flags().StringVar(&splits, "splits", "", "Comma-separated data splits (default: all)")
	cmd.Flags().StringVar(&subset, "subset", "", "Size subset for training/validation data (default: xl)")
	cmd.Flags().StringVar(&domains, "domains", "", "Comma-separated domains for testing/evaluation data (default: all)")
	cmd.Flags().StringVar(&geometries, "geometries", "", "Comma-separated viewing geometries (default: all)")
	cmd.Flags().StringVar(&inputs, "inputs", "", "Comma-separated input sources; target data is always included (default: all)")
	cmd.Flags().StringVar(&formats, "formats", "", "Comma-separated file formats (default: all)")
	cmd.Flags().IntVar(&concurrency, "concurrency", DefaultConcurrency, "Concurrent file downloads")
	return cmd
}

func listCmd(mkManager managerFactory, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List locally available dataset partitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := mkManager("")
			if err != nil {
				return err
			}
			records, err := mgr.ListLocal(cmd.Context())
			if err != nil {
				return err
			}
			return outputInventory(cmd.OutOrStdout(), records, *jsonOutput)
		},
	}
}

func configCmd(mkManager managerFactory, jsonOutput, quiet *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change the persisted configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved data root and where it came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := mkManager("")
			if err != nil {
				return err
			}
			path, tier := mgr.DataRoot()
			if *jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]string{
					"data_path": path,
					"source":    tier.String(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Data root: %s\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "Source:    %s\n", tier)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set_data_path PATH",
		Short: "Persist the local data root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := mkManager("")
			if err != nil {
				return err
			}
			if err := mgr.SetDataPath(args[0]); err != nil {
				return err
			}
			if !*quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Data root set to %s\n", args[0])
			}
			return nil
		},
	})

	return cmd
}

// splitList expands a comma-separated CLI selection. An empty string
// yields nil, meaning "all recognized values".
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// sourcesFilter expands --inputs. Target data is always downloaded
// alongside the selected inputs.
func sourcesFilter(inputs string) []string {
	sources := splitList(inputs)
	if len(sources) > 0 && !slices.Contains(sources, "target") {
		sources = append(sources, "target")
	}
	return sources
}

// Output helpers

func outputInventory(w io.Writer, records []InventoryRecord, asJSON bool) error {
	if asJSON {
		type row struct {
			Key      string   `json:"key"`
			Location string   `json:"location"`
			Files    int      `json:"files"`
			Paths    []string `json:"paths,omitempty"`
		}
		rows := make([]row, 0, len(records))
		for _, r := range records {
			rows = append(rows, row{Key: r.Key.String(), Location: r.Key.Dir(), Files: r.Count(), Paths: r.Files})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No dataset files found under the data root")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCATION\tSOURCE\tFILES")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Key.Dir(), r.Key.Source, r.Count())
	}
	return tw.Flush()
}

func outputReport(w io.Writer, report DownloadReport, asJSON, quiet bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	if quiet {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PARTITION\tSTATUS\tFETCHED\tSKIPPED\tFAILED")
	for _, k := range report.Keys {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", k.Key, k.Status, k.Fetched, k.Skipped, len(k.Failed))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, k := range report.Keys {
		for _, f := range k.Failed {
			fmt.Fprintf(w, "failed: %s: %s\n", f.Path, f.Err)
		}
	}
	return nil
}
