package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/jask/overlayhost/internal/config"
	"github.com/jask/overlayhost/internal/coordinator"
	"github.com/jask/overlayhost/internal/database"
	"github.com/jask/overlayhost/internal/database/repository"
	"github.com/jask/overlayhost/internal/keycache"
	"github.com/jask/overlayhost/internal/logging"
	"github.com/jask/overlayhost/internal/overlay"
	"github.com/jask/overlayhost/internal/service"
	"github.com/jask/overlayhost/internal/testdata"
	"github.com/jask/overlayhost/internal/tui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("overlayhost: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	root := &cobra.Command{
		Use:           "overlayhost",
		Short:         "Terminal overlay presentation host",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(v)
			if err != nil {
				return err
			}
			return runTUI(cmd.Context(), cfg)
		},
	}
	bindFlags(root.PersistentFlags(), v)
	root.AddCommand(newHistoryCmd(v), newConfigCmd(v))
	return root
}

// bindFlags exposes the commonly tweaked keys as flags. Flags win over env
// and file values.
func bindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.String("db", "", "journal database path")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("easing", "", "overlay easing name")
	fs.Int("fps", 0, "animation frame rate")
	fs.Bool("debug-checks", false, "log lifecycle misuse of overlay ids")
	for key, flag := range map[string]string{
		"database.path":        "db",
		"log.level":            "log-level",
		"overlay.easing":       "easing",
		"overlay.frame_rate":   "fps",
		"overlay.debug_checks": "debug-checks",
	} {
		_ = v.BindPFlag(key, fs.Lookup(flag))
	}
}

func runTUI(ctx context.Context, cfg config.Config) error {
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer closeLog()

	db, err := database.OpenMigrated(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := overlay.NewRegistry[string](
		overlay.WithLogger(logger),
		overlay.WithDebugChecks(cfg.Overlay.DebugChecks),
	)
	// configured layers exist up front so every subscriber sees them
	for _, name := range cfg.Overlay.Layers {
		reg.Resolve(overlay.LayerKey(name))
	}

	events := repository.NewEventRepo(db)
	journal := service.NewJournal(events, logger, 0)
	detach := service.AttachJournal(journal, reg)
	defer detach.Cancel()

	coord := coordinator.New(reg, coordinator.SettingsFromConfig(cfg.Overlay, logger))
	defer coord.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return journal.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		app := tui.New(gctx, cfg, tui.Deps{
			Registry:    reg,
			Cache:       keycache.New[string](),
			Coordinator: coord,
			Events:      events,
			Logger:      logger,
		})
		p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(gctx))
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) && gctx.Err() != nil {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if n := journal.Dropped(); n > 0 {
		logger.Warn("journal dropped events", "count", n)
	}
	return nil
}

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	var (
		limit int
		layer string
		prune time.Duration
		reset bool
		seed  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent overlay events from the journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(v)
			if err != nil {
				return err
			}
			db, err := database.OpenMigrated(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			repo := repository.NewEventRepo(db)
			ctx := cmd.Context()

			if reset {
				n, err := (&service.MaintenanceService{DB: db}).Reset(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d events\n", n)
			}
			if seed > 0 {
				if err := testdata.Seed(ctx, repo, seed, uint64(time.Now().UnixNano()), database.Now()); err != nil {
					return fmt.Errorf("seed journal: %w", err)
				}
			}
			if prune > 0 {
				n, err := service.NewJournal(repo, nil, 1).Prune(ctx, prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d events\n", n)
			}
			if layer != "" {
				if err := checkLayer(layer, cfg.Overlay.Layers); err != nil {
					return err
				}
			}
			return printHistory(ctx, cmd.OutOrStdout(), repo, limit, layer)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	cmd.Flags().StringVar(&layer, "layer", "", "only show events of this layer (root for the root layer)")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete events older than this before printing")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete every recorded event")
	cmd.Flags().IntVar(&seed, "seed", 0, "add this many sample lifecycles (for trying the history views)")
	return cmd
}

// checkLayer rejects names that are neither configured nor root, with a
// suggestion for likely typos.
func checkLayer(name string, configured []string) error {
	known := append([]string{overlay.RootLayer.String()}, configured...)
	for _, k := range known {
		if k == name {
			return nil
		}
	}
	return fmt.Errorf("unknown layer %q (did you mean %q?)", name, config.Suggest(name, known))
}

func printHistory(ctx context.Context, w io.Writer, repo *repository.EventRepo, limit int, layer string) error {
	rows, err := repo.Recent(ctx, limit)
	if err != nil {
		return err
	}
	for _, e := range rows {
		l := e.Layer
		if l == "" {
			l = overlay.RootLayer.String()
		}
		if layer != "" && l != layer {
			continue
		}
		line := fmt.Sprintf("%s  %-8s %-11s %s", e.CreatedAt.Local().Format(time.DateTime), l, e.Kind, e.LinkID)
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		fmt.Fprintln(w, line)
	}

	counts, err := repo.CountByKind(ctx)
	if err != nil {
		return err
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	fmt.Fprintf(w, "totals: %s\n", strings.Join(parts, " "))
	return nil
}

func newConfigCmd(v *viper.Viper) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(v)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "database.path        = %s\n", cfg.Database.Path)
			fmt.Fprintf(out, "overlay.layers       = %s\n", strings.Join(cfg.Overlay.Layers, ", "))
			fmt.Fprintf(out, "overlay.frame_rate   = %d\n", cfg.Overlay.FrameRate)
			fmt.Fprintf(out, "overlay.appear_ms    = %d\n", cfg.Overlay.AppearMS)
			fmt.Fprintf(out, "overlay.dismiss_ms   = %d\n", cfg.Overlay.DismissMS)
			fmt.Fprintf(out, "overlay.easing       = %s\n", cfg.Overlay.Easing)
			fmt.Fprintf(out, "overlay.debug_checks = %t\n", cfg.Overlay.DebugChecks)
			fmt.Fprintf(out, "log.level            = %s\n", cfg.Log.Level)
			fmt.Fprintf(out, "log.path             = %s\n", cfg.Log.Path)
			fmt.Fprintf(out, "log.format           = %s\n", cfg.Log.Format)
			if save {
				if err := config.Save(cfg); err != nil {
					return err
				}
				fmt.Fprintln(out, "saved")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "write the effective configuration to the config file")
	return cmd
}
