package build

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Context describes the two trees a build works in: the source tree the
// build description refers to, and the output tree generated files are
// written to. The output tree mirrors the source tree's directory layout.
type Context struct {
	SrcRoot string
	OutDir  string
}

// NewContext returns a Context with cleaned roots. An empty source root
// means the current directory.
func NewContext(srcRoot, outDir string) *Context {
	if srcRoot == "" {
		srcRoot = "."
	}
	if outDir == "" {
		outDir = "build"
	}
	return &Context{
		SrcRoot: filepath.Clean(srcRoot),
		OutDir:  filepath.Clean(outDir),
	}
}

// Node is a file addressed relative to one of the context's trees.
type Node struct {
	// Rel is the path relative to Root, always cleaned.
	Rel string `json:"rel"`
	// Root is the tree the node lives in.
	Root string `json:"root"`
}

// Source returns the node for a file in the source tree. Absolute paths
// are accepted when they point inside the source root.
func (c *Context) Source(path string) (Node, error) {
	rel := path
	if filepath.IsAbs(path) {
		root, err := filepath.Abs(c.SrcRoot)
		if err != nil {
			return Node{}, fmt.Errorf("resolving source root: %w", err)
		}
		rel, err = filepath.Rel(root, path)
		if err != nil {
			return Node{}, fmt.Errorf("source %s: %w", path, err)
		}
	}
	rel = filepath.Clean(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Node{}, fmt.Errorf("source %s is outside source root %s", path, c.SrcRoot)
	}
	return Node{Rel: rel, Root: c.SrcRoot}, nil
}

// BldDir returns the output-tree directory mirroring the node's directory.
func (c *Context) BldDir(n Node) string {
	return filepath.Join(c.OutDir, filepath.Dir(n.Rel))
}

// ChangeExt returns the output-tree node for n with its extension
// replaced by ext. A name without an extension gets ext appended.
func (c *Context) ChangeExt(n Node, ext string) Node {
	base := strings.TrimSuffix(n.Rel, filepath.Ext(n.Rel))
	return Node{Rel: base + ext, Root: c.OutDir}
}

// Path returns the node's path joined onto its root.
func (n Node) Path() string {
	return filepath.Join(n.Root, n.Rel)
}

// Dir returns the directory containing the node.
func (n Node) Dir() string {
	return filepath.Dir(n.Path())
}

// Name returns the base name of the node.
func (n Node) Name() string {
	return filepath.Base(n.Rel)
}

func (n Node) String() string {
	return n.Path()
}
