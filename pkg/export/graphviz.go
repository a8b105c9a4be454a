package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/goccy/go-graphviz"
	"github.com/paulmach/orb"
)

// drawingSize is the length, in inches, of the longer side of a drawing.
const drawingSize = 20.0

var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// ToDOT draws records as an undirected Graphviz graph. Every distinct
// endpoint becomes a point node pinned at its scaled coordinates; edges are
// coloured by record.
func ToDOT(layer Layer, records []Record) string {
	var bound orb.Bound
	first := true
	for _, r := range records {
		for _, s := range r.Segments {
			for _, p := range []orb.Point{s.From, s.To} {
				if first {
					bound = p.Bound()
					first = false
				} else {
					bound = bound.Extend(p)
				}
			}
		}
	}
	scale := 1.0
	if side := max(bound.Right()-bound.Left(), bound.Top()-bound.Bottom()); side > 0 {
		scale = drawingSize / side
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "graph %q {\n", layer.Name)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=point, width=0.04, color=\"#333333\"];\n")
	buf.WriteString("  edge [penwidth=1.5];\n")
	buf.WriteString("\n")

	ids := make(map[orb.Point]string)
	node := func(p orb.Point) string {
		if id, ok := ids[p]; ok {
			return id
		}
		id := fmt.Sprintf("p%d", len(ids))
		ids[p] = id
		x := (p[0] - bound.Left()) * scale
		y := (p[1] - bound.Bottom()) * scale
		fmt.Fprintf(&buf, "  %s [pos=\"%.4f,%.4f!\"];\n", id, x, y)
		return id
	}

	for _, r := range records {
		color := palette[r.ID%len(palette)]
		for _, s := range r.Segments {
			a, b := node(s.From), node(s.To)
			fmt.Fprintf(&buf, "  %s -- %s [color=%q, tooltip=\"%s %d\"];\n", a, b, color, layer.Attribute, r.ID)
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG lays out a DOT graph with neato, which honours pinned positions,
// and renders it to SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

// GraphvizSink writes <dir>/<layer>.dot or, rendered, <dir>/<layer>.svg.
type GraphvizSink struct {
	buffer
	dir    string
	layer  Layer
	format Format
}

// NewGraphvizSink returns a sink for format dot or svg.
func NewGraphvizSink(dir string, layer Layer, format Format) (*GraphvizSink, error) {
	if err := checkLayer(layer); err != nil {
		return nil, err
	}
	if format != FormatDOT && format != FormatSVG {
		return nil, fmt.Errorf("graphviz sink cannot write %s", format)
	}
	return &GraphvizSink{dir: dir, layer: layer, format: format}, nil
}

// Path returns the output path.
func (s *GraphvizSink) Path() string {
	return filepath.Join(s.dir, s.layer.Name+"."+string(s.format))
}

// Finalize rewrites the drawing.
func (s *GraphvizSink) Finalize(ctx context.Context) error {
	dot := ToDOT(s.layer, s.records)
	data := []byte(dot)
	if s.format == FormatSVG {
		svg, err := RenderSVG(ctx, dot)
		if err != nil {
			return exportErr(s.layer, s.format, err)
		}
		data = svg
	}
	err := writeFile(s.Path(), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return exportErr(s.layer, s.format, err)
	}
	return nil
}

var _ Sink = (*GraphvizSink)(nil)
