// Package orderprepcli is the orderprep command tree.
package orderprepcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phillip-england/orderprep/internal/app"
	"github.com/phillip-england/orderprep/internal/catalog"
	"github.com/phillip-england/orderprep/internal/config"
	"github.com/phillip-england/orderprep/internal/envutil"
	"github.com/phillip-england/orderprep/internal/location"
	"github.com/phillip-england/orderprep/internal/logging"
	"github.com/phillip-england/orderprep/internal/shop"
	"github.com/phillip-england/orderprep/internal/snapshot"
)

var ErrUsage = errors.New("usage")

// env is what every command gets after the .env file and configuration are loaded.
type env struct {
	envFile string
	cfg     config.Config
	log     *logging.Logger
}

func Execute(args []string) error {
	return ExecuteContext(context.Background(), args, os.Stdout, os.Stderr)
}

// ExecuteContext runs the command tree with explicit output streams.
func ExecuteContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if args == nil {
		args = []string{}
	}
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err != nil && strings.HasPrefix(err.Error(), "unknown command") {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return err
}

// PrintUsage writes the command summary.
func PrintUsage(w io.Writer) {
	root := newRootCmd()
	root.SetOut(w)
	_ = root.Usage()
}

func usageError() error {
	return fmt.Errorf("%w: orderprep <setup|fetch|validate|totals|labels|export|recipes|serve> [...]", ErrUsage)
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "orderprep",
		Short:         "Prepare open orders for production, labels and delivery",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := envutil.LoadDotEnv(e.envFile); err != nil {
				return fmt.Errorf("load %s: %w", e.envFile, err)
			}
			e.cfg = config.DefaultConfigFromEnv()
			log, err := logging.New(e.cfg.LogMode, e.cfg.LogRedaction)
			if err != nil {
				return err
			}
			e.log = log.With("command", cmd.Name())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.log != nil {
				e.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return usageError()
		},
	}
	root.PersistentFlags().StringVar(&e.envFile, "env-file", ".env", "path to .env file")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	})

	root.AddCommand(
		newSetupCmd(e),
		newFetchCmd(e),
		newValidateCmd(e),
		newTotalsCmd(e),
		newLabelsCmd(e),
		newExportCmd(e),
		newRecipesCmd(e),
		newServeCmd(e),
	)
	return root
}

// exactArgs reports a wrong argument count as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUsage, cmd.UseLine(), err)
		}
		return nil
	}
}

// session builds an app state from the configured catalog and location table and
// loads orders into it, from a snapshot when ordersPath is set and live otherwise.
func (e *env) session(ctx context.Context, ordersPath string) (*app.State, error) {
	locations, err := location.LoadTable(e.cfg.LocationsPath)
	if err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}
	cat, err := catalog.Load(e.cfg.CatalogPath, e.cfg.ProductsDir)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	state := app.New(app.Options{
		Locations:     locations,
		Catalog:       cat,
		ExtrasName:    e.cfg.ExtrasName,
		BestByWeekday: e.cfg.BestByWeekday,
		Log:           e.log,
	})

	if ordersPath != "" {
		raw, err := snapshot.ReadRaw(ordersPath)
		if err != nil {
			return nil, err
		}
		state.Ingest(raw)
		return state, nil
	}

	if e.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.FetchTimeout)
		defer cancel()
	}
	client := shop.NewClient(e.cfg.ShopAPIBaseURL, &http.Client{Timeout: e.cfg.FetchTimeout}, e.log)
	if err := state.Refresh(ctx, client); err != nil {
		return nil, err
	}
	return state, nil
}

func addOrdersFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "orders", "", "read orders from a snapshot file (.json or .json.xz) instead of fetching")
}
