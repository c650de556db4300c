package orderprepcli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/phillip-england/orderprep/internal/aggregate"
	"github.com/phillip-england/orderprep/internal/app"
	"github.com/phillip-england/orderprep/internal/catalog"
	"github.com/phillip-england/orderprep/internal/config"
	"github.com/phillip-england/orderprep/internal/envutil"
	"github.com/phillip-england/orderprep/internal/export"
	"github.com/phillip-england/orderprep/internal/labels"
	"github.com/phillip-england/orderprep/internal/location"
	"github.com/phillip-england/orderprep/internal/order"
	"github.com/phillip-england/orderprep/internal/ordersapp"
	"github.com/phillip-england/orderprep/internal/render"
	"github.com/phillip-england/orderprep/internal/snapshot"
	"github.com/phillip-england/orderprep/internal/validate"
)

var heading = lipgloss.NewStyle().Bold(true)

func newSetupCmd(e *env) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write a .env file with default settings",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := envutil.WriteDotEnv(e.envFile, config.DotEnvDefaults(), force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", e.envFile)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing env file")
	return cmd
}

func newFetchCmd(e *env) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and validate open orders, then write them to a snapshot for editing",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := e.session(cmd.Context(), "")
			if err != nil {
				return err
			}
			if err := ensureParentDir(out); err != nil {
				return err
			}
			if err := snapshot.Write(out, state.WorkingOrders()); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printErrors(w, state.ValidationErrors())
			fmt.Fprintf(w, "wrote %d orders to %s\n", len(state.WorkingOrders()), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "orders.json", "snapshot path; a .xz suffix compresses it")
	return cmd
}

func newValidateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check an edited snapshot the way a manual edit is checked",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locations, err := location.LoadTable(e.cfg.LocationsPath)
			if err != nil {
				return fmt.Errorf("load locations: %w", err)
			}
			report, err := snapshot.Read(args[0], validate.New(locations))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printErrors(w, report.Errors)
			if !report.Acceptable() {
				return fmt.Errorf("%w: %s: %d orders rejected", app.ErrEditRejected, args[0], report.Rejected)
			}
			fmt.Fprintf(w, "%s: %d orders ok\n", args[0], len(report.Orders))
			return nil
		},
	}
}

func newTotalsCmd(e *env) *cobra.Command {
	var ordersPath string
	var byLocation bool
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Print quantities to prepare per product and variant",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := e.session(cmd.Context(), ordersPath)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, heading.Render("All locations"))
			printTotals(w, state.Totals())
			if !byLocation {
				return nil
			}
			perLocation := state.LocationTotals()
			for _, name := range aggregate.SortedKeys(perLocation) {
				fmt.Fprintln(w)
				fmt.Fprintln(w, heading.Render(name))
				printTotals(w, perLocation[name])
			}
			return nil
		},
	}
	addOrdersFlag(cmd, &ordersPath)
	cmd.Flags().BoolVar(&byLocation, "by-location", false, "also print totals for each location")
	return cmd
}

func newLabelsCmd(e *env) *cobra.Command {
	var ordersPath string
	var preview bool
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Sequence and render the label sheet",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := e.session(cmd.Context(), ordersPath)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if preview {
				printSheet(w, state.CurrentLabels())
				return nil
			}
			renderer, err := render.New(render.Options{
				OutputDir: e.cfg.OutputDir,
				PDFCPUBin: e.cfg.PDFCPUBin,
				LogoPath:  e.cfg.LabelLogoPath,
				Footer:    e.cfg.LabelFooter,
				Author:    e.cfg.DocumentAuthor,
				Log:       e.log,
			})
			if err != nil {
				return err
			}
			doc, err := state.Render(cmd.Context(), renderer)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%d labels on %d pages: %s\n", doc.Labels, len(doc.Pages), doc.Path)
			return nil
		},
	}
	addOrdersFlag(cmd, &ordersPath)
	cmd.Flags().BoolVar(&preview, "preview", false, "print the slot layout instead of rendering")
	return cmd
}

func newExportCmd(e *env) *cobra.Command {
	var ordersPath, xlsxPath, csvPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the totals workbook and the delivery manifest",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if xlsxPath == "" && csvPath == "" {
				return fmt.Errorf("%w: export needs --xlsx and/or --csv", ErrUsage)
			}
			state, err := e.session(cmd.Context(), ordersPath)
			if err != nil {
				return err
			}
			locations := state.Locations()
			byLocation := state.LocationOrders()
			w := cmd.OutOrStdout()

			if xlsxPath != "" {
				err := writeFile(xlsxPath, func(out io.Writer) error {
					return export.WriteWorkbook(out, export.WorkbookInput{
						Totals:         state.Totals(),
						LocationTotals: state.LocationTotals(),
						ByLocation:     byLocation,
						Locations:      locations,
						DeliveryState:  e.cfg.DeliveryState,
					})
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "wrote %s\n", xlsxPath)
			}
			if csvPath != "" {
				rows := export.DeliveryRows(byLocation, locations, e.cfg.DeliveryState)
				err := writeFile(csvPath, func(out io.Writer) error {
					return export.WriteManifestCSV(out, rows)
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "wrote %s (%d deliveries)\n", csvPath, len(rows))
			}
			return nil
		},
	}
	addOrdersFlag(cmd, &ordersPath)
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "workbook output path")
	cmd.Flags().StringVar(&csvPath, "csv", "", "delivery manifest output path")
	return cmd
}

func newRecipesCmd(e *env) *cobra.Command {
	recipes := &cobra.Command{
		Use:   "recipes",
		Short: "Manage product recipes",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("%w: orderprep recipes import <file>", ErrUsage)
		},
	}

	var dir string
	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Write one product file per recipe in a .xlsx, .xls or .csv export",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open recipes: %w", err)
			}
			defer f.Close()

			rows, err := catalog.ReadRows(f, args[0])
			if err != nil {
				return err
			}
			products, err := catalog.ImportRecipes(rows)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = e.cfg.ProductsDir
			}
			written, skipped, err := catalog.WriteProducts(dir, products)
			if err != nil {
				return err
			}
			e.log.Info("recipes imported", "written", len(written), "skipped", len(skipped), "dir", dir)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d products to %s, skipped %d existing\n", len(written), dir, len(skipped))
			return nil
		},
	}
	importCmd.Flags().StringVar(&dir, "dir", "", "products directory (defaults to PRODUCTS_DIR)")
	recipes.AddCommand(importCmd)
	return recipes
}

func newServeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the order preparation API",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if err := ordersapp.Run(ctx, e.cfg, e.log); err != nil && !errors.Is(err, ctx.Err()) {
				return err
			}
			return nil
		},
	}
}

func printTotals(w io.Writer, totals aggregate.Totals) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tVARIANT\tQUANTITY")
	for _, title := range aggregate.SortedKeys(totals) {
		for _, v := range totals[title].SortedVariants() {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", title, v.VariantTitle, v.Quantity)
		}
	}
	fmt.Fprintf(tw, "%s\t\t%d\n", export.TotalItemsLabel, totals.Count())
	_ = tw.Flush()
}

func printSheet(w io.Writer, sheet labels.Sheet) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAGE\tROW\tCOL\tKIND\tTEXT")
	for _, slot := range sheet.Slots {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n", slot.Page+1, slot.Row+1, slot.Column+1, slot.Kind, slotText(slot))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d slots on %d pages, dated %s\n", len(sheet.Slots), sheet.Pages, sheet.DateStamp)
}

func slotText(slot labels.Slot) string {
	switch {
	case slot.Item != nil:
		return slot.Item.Title + " / " + slot.Item.Variant
	case slot.Customer != nil:
		return slot.Customer.Name + " @ " + slot.Customer.Location
	case slot.Extras != nil:
		return slot.Extras.Title + " / " + slot.Extras.Variant
	default:
		return ""
	}
}

func printErrors(w io.Writer, errs []order.ValidationError) {
	if len(errs) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tORDER\tERROR")
	for _, e := range errs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Kind, e.OrderID, e.Message)
	}
	_ = tw.Flush()
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
