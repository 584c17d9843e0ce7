package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/covidash/pkg/reactive"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	// Dirty styles nodes awaiting recomputation.
	Dirty bool
	// Epochs annotates every node with its current epoch.
	Epochs bool
	// Highlight marks nodes of interest, e.g. the inputs just written.
	Highlight []string
}

// GenerateMermaid produces a Mermaid flowchart syntax string from a graph
// snapshot. Edges point from a dependency to its reader.
// It applies semantic styling:
// - Source: ((Circle))
// - Sink: [[Subroutine]]
// - Derived: [Rectangle]
// It also applies overlay styles (Dirty/Highlight) if provided.
func GenerateMermaid(nodes []reactive.NodeInfo, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, node := range nodes {
		safeID := sanitizeMermaidID(node.Name)

		opener, closer := "[", "]"
		switch node.Kind {
		case reactive.KindSource:
			opener, closer = "((", "))"
		case reactive.KindSink:
			opener, closer = "[[", "]]"
		}

		label := node.Name
		if overlay != nil && overlay.Epochs {
			label = fmt.Sprintf("%s <br/> e%d", node.Name, node.Epoch)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)
	}

	for _, node := range nodes {
		for _, dep := range node.Dependencies {
			fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(dep), sanitizeMermaidID(node.Name))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef dirty fill:#ffe0b2,stroke:#e65100,stroke-dasharray:4 2,color:#000;\n")
		sb.WriteString("    classDef highlight fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		if overlay.Dirty {
			for _, node := range nodes {
				if node.Dirty {
					fmt.Fprintf(&sb, "    class %s dirty;\n", sanitizeMermaidID(node.Name))
				}
			}
		}

		seen := make(map[string]bool)
		for _, name := range overlay.Highlight {
			safeID := sanitizeMermaidID(name)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s highlight;\n", safeID)
			}
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
