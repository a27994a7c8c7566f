package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/collab-canvas/pkg/board"
	"github.com/astromechza/collab-canvas/pkg/canvas"
	"github.com/astromechza/collab-canvas/pkg/store"
	"github.com/astromechza/collab-canvas/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})))

	svgVar := flag.String("svg", "", "write the change graph to this file")
	pngVar := flag.String("png", "", "render the board to this file")
	widthVar := flag.Int("width", 1280, "render width")
	heightVar := flag.Int("height", 720, "render height")
	flag.Parse()
	if flag.NArg() != 1 {
		return fmt.Errorf("expected one position argument: the file to read")
	}
	f, err := os.Open(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()
	buff, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	doc, err := automerge.Load(buff)
	if err != nil {
		return fmt.Errorf("failed to load doc: %w", err)
	}
	buff = nil
	slog.Info("loaded heads", "heads", doc.Heads())

	st := store.NewAutomerge(doc, slog.Default())
	for _, e := range st.Entries() {
		r := e.Record
		slog.Info("shape", "id", e.ID, "kind", r.Kind, "left", r.Left, "top", r.Top, "width", r.Width, "height", r.Height, "fill", r.Fill)
	}

	changes, err := doc.Changes()
	if err != nil {
		return fmt.Errorf("failed to generate changes: %w", err)
	}
	for i, change := range changes {
		label, err := viz.Label(doc, change)
		if err != nil {
			return err
		}
		slog.Info("change", "i", fmt.Sprintf("%4d", i), "label", label, "dep", change.Dependencies())
	}

	if *svgVar != "" {
		out, err := os.Create(*svgVar)
		if err != nil {
			return fmt.Errorf("failed to create svg: %w", err)
		}
		defer out.Close()
		if err := viz.RenderHistory(doc, out); err != nil {
			return err
		}
		slog.Info("rendered history", "path", *svgVar)
	}

	if *pngVar != "" {
		scene := canvas.NewScene(*widthVar, *heightVar)
		board.NewReconciler(scene, st, slog.Default()).Reconcile(&board.Session{})
		out, err := os.Create(*pngVar)
		if err != nil {
			return fmt.Errorf("failed to create png: %w", err)
		}
		defer out.Close()
		if err := canvas.Rasterize(out, scene); err != nil {
			return err
		}
		slog.Info("rendered board", "path", *pngVar, "shapes", len(scene.Objects()))
	}
	return nil
}
