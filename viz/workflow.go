// ABOUTME: Graphviz diagrams of each kind's moderation workflow
// ABOUTME: Statuses become nodes and actions become labelled edges
package viz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/moderation"
)

// Formats accepted by RenderWorkflow.
var Formats = []string{"dot", "svg", "png"}

func parseFormat(s string) (graphviz.Format, error) {
	switch strings.ToLower(s) {
	case "", "dot":
		return graphviz.XDOT, nil
	case "svg":
		return graphviz.SVG, nil
	case "png":
		return graphviz.PNG, nil
	}
	return "", fmt.Errorf("unsupported format %q (valid: %s)", s, strings.Join(Formats, ", "))
}

// WorkflowDOT returns the DOT source for kind's workflow.
func WorkflowDOT(ctx context.Context, kind models.Kind) (string, error) {
	var buf bytes.Buffer
	if err := RenderWorkflow(ctx, kind, "dot", &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderWorkflow writes kind's workflow diagram to w.
func RenderWorkflow(ctx context.Context, kind models.Kind, format string, w io.Writer) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown resource kind %q", kind)
	}
	f, err := parseFormat(format)
	if err != nil {
		return err
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to create graphviz instance: %w", err)
	}
	defer gv.Close()

	graph, err := gv.Graph()
	if err != nil {
		return fmt.Errorf("failed to create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.LRRank)
	graph.SetLabel(kind.Label() + " workflow")

	initial := moderation.InitialStatus(kind)
	nodes := make(map[models.Status]*cgraph.Node)
	for _, s := range moderation.Statuses(kind) {
		node, err := graph.CreateNodeByName(string(s))
		if err != nil {
			return fmt.Errorf("failed to create node %s: %w", s, err)
		}
		switch {
		case moderation.Terminal(kind, s):
			node.SetShape(cgraph.DoubleCircleShape)
		case s == initial:
			node.SetShape(cgraph.BoxShape)
		default:
			node.SetShape(cgraph.EllipseShape)
		}
		nodes[s] = node
	}

	for _, e := range moderation.Edges(kind) {
		edge, err := graph.CreateEdgeByName(string(e.Action), nodes[e.From], nodes[e.To])
		if err != nil {
			return fmt.Errorf("failed to create edge %s: %w", e.Action, err)
		}
		label := string(e.Action)
		if field := moderation.Requires(kind, e.Action); field != "" {
			label += "\\n(" + strings.ReplaceAll(field, "_", " ") + ")"
		}
		edge.SetLabel(label)
	}

	if err := gv.Render(ctx, graph, f, w); err != nil {
		return fmt.Errorf("failed to render graph: %w", err)
	}
	return nil
}
