package notecoordinator

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/noteforge/noteforge/internal/types"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// GetTree implements spec §4.5: a recursive walk of CS's working
// directory, folders before notes, each group alphabetical, hidden
// directories and __pycache__ elided.
func (c *Coordinator) GetTree(ctx context.Context) ([]types.TreeNode, error) {
	_, span := tracer.Start(ctx, "notecoordinator.get_tree", trace.WithSpanKind(trace.SpanKindInternal))
	var err error
	defer func() { endSpan(span, err) }()

	nodes, walkErr := buildTree(c.cs.Root(), "", nil)
	if walkErr != nil {
		err = types.WrapIO("get_tree: walk content store", walkErr)
		return nil, err
	}
	return nodes, nil
}

func buildTree(root, relDir string, parentID *string) ([]types.TreeNode, error) {
	dirAbs := filepath.Join(root, filepath.FromSlash(relDir))
	entries, err := os.ReadDir(dirAbs)
	if err != nil {
		return nil, err
	}

	var folders, notes []types.TreeNode
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || name == "__pycache__" {
			continue
		}
		relPath := name
		if relDir != "" {
			relPath = path.Join(relDir, name)
		}

		if e.IsDir() {
			id := nodeID(relPath)
			children, err := buildTree(root, relPath, &id)
			if err != nil {
				return nil, err
			}
			folders = append(folders, types.TreeNode{
				ID:       id,
				Name:     name,
				Type:     types.NodeFolder,
				ParentID: parentID,
				Path:     relPath,
				Children: children,
			})
			continue
		}

		if !strings.HasSuffix(name, ".md") {
			continue
		}
		notes = append(notes, types.TreeNode{
			ID:       nodeID(relPath),
			Name:     strings.TrimSuffix(name, ".md"),
			Type:     types.NodeNote,
			ParentID: parentID,
			Path:     relPath,
			Children: nil,
		})
	}

	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	sort.Slice(notes, func(i, j int) bool { return notes[i].Name < notes[j].Name })

	nodes := append(folders, notes...)
	for i := range nodes {
		nodes[i].Order = i
	}
	return nodes, nil
}

// nodeID derives a TreeNode.id from its relative path (spec §3 "Tree
// node"): lowercased, whitespace turned to hyphens, POSIX-separated.
func nodeID(relPath string) string {
	id := strings.ToLower(filepath.ToSlash(relPath))
	return whitespaceRun.ReplaceAllString(id, "-")
}
