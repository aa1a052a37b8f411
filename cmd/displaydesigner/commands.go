/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"displaydesigner/internal/domain"
	"displaydesigner/internal/export"
	applog "displaydesigner/internal/log"
	"displaydesigner/internal/plugin"
	"displaydesigner/internal/schedule"
	"displaydesigner/internal/session"
	"displaydesigner/internal/storage"
	"displaydesigner/internal/telemetry"
	"displaydesigner/internal/version"
	"displaydesigner/internal/watch"
)

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "displaydesigner",
		Short:         "Design e-paper display layouts and generate their display code",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			telemetry.Event("command", map[string]any{"name": cmd.Name()})
		},
	}
	cmd.AddCommand(
		newInitCmd(app),
		newOpenCmd(app),
		newSaveCmd(app),
		newImportCmd(app),
		newExportCmd(app),
		newMoveCmd(app),
		newPreviewCmd(app),
		newHistoryCmd(app),
		newFindCmd(app),
		newScheduleCmd(app),
		newSeriesCmd(app),
		newWatchCmd(app),
		newVersionCmd(),
	)
	return cmd
}

// fail logs err and prints it the way every command reports errors.
func fail(cmd *cobra.Command, app *App, op string, err error) error {
	applog.WithOperation(app.logger(), op).Error("command failed", slog.Any("err", err))
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	return err
}

func newInitCmd(app *App) *cobra.Command {
	var name, model string
	cmd := &cobra.Command{
		Use:   "init <dir>",
		Short: "Create a new design directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return fail(cmd, app, "init", err)
			}
			if model == "" {
				model = app.cfg.Editor.DefaultDeviceModel
			}
			s := app.newSession(nil, nil)
			s.SetDeviceName(name)
			s.SetDeviceModel(model)
			s.SetRenderingMode(plugin.ParseMode(app.cfg.Editor.RenderingMode))
			dh, err := storage.InitDesign(abs, s.Payload())
			if err != nil {
				return fail(cmd, app, "init", err)
			}
			app.dh = dh
			app.logger().Info("design created", slog.String("root", abs), slog.String("model", model))
			fmt.Fprintln(cmd.OutOrStdout(), "Created design at", abs)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Display", "Device name")
	cmd.Flags().StringVar(&model, "model", "", "Device model (default from config)")
	return cmd
}

func newOpenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "open <dir>",
		Short: "Open a design and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(args[0], nil)
			if err != nil {
				return fail(cmd, app, "open", err)
			}
			doc := s.Document()
			out := cmd.OutOrStdout()
			w, h := s.CanvasSize()
			fmt.Fprintf(out, "Device: %s (%s, %dx%d, %s)\n", doc.DeviceName, doc.DeviceModel, w, h, s.RenderingMode())
			for i, p := range doc.Pages {
				fmt.Fprintf(out, "  [%d] %s: %d widgets\n", i, p.Name, len(p.Widgets))
			}
			if app.dh.Recovered {
				fmt.Fprintln(out, "Recovered from the latest backup.")
			}
			if raw, err := os.ReadFile(app.dh.PayloadPath); err == nil {
				if err := storage.ValidatePayload(raw); err != nil {
					fmt.Fprintln(out, "Schema problems:", err)
				}
			}
			return nil
		},
	}
}

func newSaveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "save <dir>",
		Short: "Rewrite the design, keeping a backup and a history snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(args[0], nil)
			if err != nil {
				return fail(cmd, app, "save", err)
			}
			if err := app.commit(cmd.Context(), s, "save"); err != nil {
				return fail(cmd, app, "save", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Saved design and backed up the previous payload.")
			return nil
		},
	}
}

// importText applies generated text to s, reporting skipped lines to cmd.
func importText(cmd *cobra.Command, s *session.Session, text string) {
	for _, e := range s.ImportSnippet(text) {
		fmt.Fprintln(cmd.ErrOrStderr(), "skipped", e.Error())
	}
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir> <file>",
		Short: "Replace the layout with one parsed from generated display code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(args[0], nil)
			if err != nil {
				return fail(cmd, app, "import", err)
			}
			b, err := os.ReadFile(args[1])
			if err != nil {
				return fail(cmd, app, "import", err)
			}
			importText(cmd, s, string(b))
			if err := app.commit(cmd.Context(), s, "import"); err != nil {
				return fail(cmd, app, "import", err)
			}
			n := 0
			for _, p := range s.Pages() {
				n += len(p.Widgets)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d pages, %d widgets.\n", len(s.Pages()), n)
			return nil
		},
	}
}

func newExportCmd(app *App) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Generate display code for the design",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(args[0], nil)
			if err != nil {
				return fail(cmd, app, "export", err)
			}
			text := s.ExportText()
			if out == "" {
				fmt.Fprint(cmd.OutOrStdout(), text)
				return nil
			}
			path := exportPath(app, out)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fail(cmd, app, "export", err)
			}
			if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
				return fail(cmd, app, "export", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output file (relative paths go under exports/)")
	return cmd
}

func exportPath(app *App, out string) string {
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(app.dh.Root, storage.ExportsDirName, out)
}

func newMoveCmd(app *App) *cobra.Command {
	var free bool
	cmd := &cobra.Command{
		Use:   "move <dir> <widget> <x> <y>",
		Short: "Move a widget, snapping it to the canvas and its neighbours",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.Atoi(args[2])
			if err != nil {
				return fail(cmd, app, "move", fmt.Errorf("x: %w", err))
			}
			y, err := strconv.Atoi(args[3])
			if err != nil {
				return fail(cmd, app, "move", fmt.Errorf("y: %w", err))
			}
			s, err := app.open(args[0], nil)
			if err != nil {
				return fail(cmd, app, "move", err)
			}
			if s.Widget(args[1]) == nil {
				return fail(cmd, app, "move", fmt.Errorf("no widget %q", args[1]))
			}
			guides, moved := s.MoveWidget(args[1], x, y, !free)
			w := s.Widget(args[1])
			if !moved {
				fmt.Fprintf(cmd.OutOrStdout(), "%s stays at %d,%d.\n", w.ID, w.X, w.Y)
				return nil
			}
			if err := app.commit(cmd.Context(), s, "move "+w.ID); err != nil {
				return fail(cmd, app, "move", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s moved to %d,%d.\n", w.ID, w.X, w.Y)
			for _, g := range guides {
				axis := "y"
				if g.Vertical {
					axis = "x"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  snapped to %s %s=%g\n", g.Kind, axis, g.Position)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&free, "no-snap", false, "place the widget exactly")
	return cmd
}

func newPreviewCmd(app *App) *cobra.Command {
	var page int
	var format, out string
	cmd := &cobra.Command{
		Use:   "preview <dir>",
		Short: "Render a wireframe preview (PNG of one page, or PDF of all pages)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(args[0], nil)
			if err != nil {
				return fail(cmd, app, "preview", err)
			}
			format = strings.ToLower(format)
			if out == "" {
				out = fmt.Sprintf("preview-%d.%s", page, format)
				if format == "pdf" {
					out = "preview.pdf"
				}
			}
			path := exportPath(app, out)
			switch format {
			case "pdf":
				err = export.RenderPDF(s.Document(), path)
			case "png":
				err = writePNG(s.Document(), page, path)
			default:
				err = fmt.Errorf("unknown format %q", format)
			}
			if err != nil {
				return fail(cmd, app, "preview", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "Page index for PNG output")
	cmd.Flags().StringVar(&format, "format", "png", "png or pdf")
	cmd.Flags().StringVar(&out, "out", "", "Output file (relative paths go under exports/)")
	return cmd
}

func writePNG(doc *domain.Document, page int, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.RenderPNG(doc, page, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func newHistoryCmd(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <dir>",
		Short: "List stored history snapshots, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.open(args[0], nil); err != nil {
				return fail(cmd, app, "history", err)
			}
			snaps, err := storage.ListHistorySnapshots(cmd.Context(), app.dh, limit)
			if err != nil {
				return fail(cmd, app, "history", err)
			}
			for _, h := range snaps {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%d pages\t%d widgets\n",
					h.ID, h.TS.Local().Format(time.DateTime), h.Label, h.Pages, h.Widgets)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries")
	return cmd
}

func newFindCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "find <dir> <entity>",
		Short: "List widgets bound to an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(args[0], nil)
			if err != nil {
				return fail(cmd, app, "find", err)
			}
			refs, err := storage.FindWidgetsByEntity(cmd.Context(), app.dh.Root, args[1])
			if err != nil {
				if _, rerr := storage.DetectAndRebuildIndex(cmd.Context(), app.dh.Root, s.Payload()); rerr != nil {
					return fail(cmd, app, "find", errors.Join(err, rerr))
				}
				if refs, err = storage.FindWidgetsByEntity(cmd.Context(), app.dh.Root, args[1]); err != nil {
					return fail(cmd, app, "find", err)
				}
			}
			for _, r := range refs {
				fmt.Fprintf(cmd.OutOrStdout(), "page %d\t%s\t%s\t%s\t%s\n", r.PageIndex, r.WidgetID, r.Type, r.Field, r.Title)
			}
			return nil
		},
	}
}

func newScheduleCmd(app *App) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "schedule <dir>",
		Short: "Preview upcoming display refresh times",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(args[0], nil)
			if err != nil {
				return fail(cmd, app, "schedule", err)
			}
			plan, err := schedule.Build(s.Document().Settings)
			if errors.Is(err, schedule.ErrManualOnly) {
				fmt.Fprintln(cmd.OutOrStdout(), "Manual refresh only.")
				return nil
			}
			if err != nil {
				return fail(cmd, app, "schedule", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schedule:", plan.Spec)
			for _, t := range plan.Next(time.Now(), count) {
				fmt.Fprintln(cmd.OutOrStdout(), " ", t.Format("Mon 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "Number of refresh times")
	return cmd
}

func newSeriesCmd(app *App) *cobra.Command {
	var mirror bool
	cmd := &cobra.Command{
		Use:   "series <dir> <widget-id>",
		Short: "Fetch the history a graph widget plots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fetcher, closer, err := app.fetcher(ctx)
			if err != nil {
				return fail(cmd, app, "series", err)
			}
			if closer != nil {
				defer closer.Close()
			}
			if fetcher == nil {
				return fail(cmd, app, "series", errors.New("no data source configured"))
			}
			s, err := app.open(args[0], fetcher)
			if err != nil {
				return fail(cmd, app, "series", err)
			}
			w := s.Widget(args[1])
			if w == nil {
				return fail(cmd, app, "series", fmt.Errorf("widget %q not found", args[1]))
			}
			if mirror {
				if err := app.mirror(ctx, fetcher, w); err != nil {
					return fail(cmd, app, "series", err)
				}
			}
			s.Series(w.ID)
			wctx, cancel := context.WithTimeout(ctx, app.cfg.DataSource.Timeout())
			defer cancel()
			s.Wait(wctx)
			s.Tick()
			samples, fresh := s.Series(w.ID)
			if !fresh {
				return fail(cmd, app, "series", fmt.Errorf("no data for %s", w.EntityID))
			}
			for _, p := range samples {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%g\n", time.UnixMilli(p.TS).Format(time.DateTime), p.Value)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&mirror, "mirror", false, "Copy API history into the Postgres store first")
	return cmd
}

func newWatchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir> <file>",
		Short: "Re-import generated display code whenever the file changes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(args[0], nil)
			if err != nil {
				return fail(cmd, app, "watch", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			w, err := watch.New(args[1], 0, func(ctx context.Context, b []byte) {
				importText(cmd, s, string(b))
				if err := app.commit(ctx, s, "watch"); err != nil {
					app.logger().Error("save after re-import failed", slog.Any("err", err))
					return
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Re-imported", args[1])
			})
			if err != nil {
				return fail(cmd, app, "watch", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Watching", args[1], "(Ctrl+C to stop)")
			return w.Run(ctx)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
