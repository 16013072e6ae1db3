package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SkipDirs contains directory names excluded from reindexing. These are
// dependency, VCS, and build-output directories whose contents never
// belong in the codebase graph.
var SkipDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	"node_modules":  true,
	"vendor":        true,
	"venv":          true,
	".venv":         true,
	"__pycache__":   true,
	".pytest_cache": true,
	".mypy_cache":   true,
	"target":        true,
	"build":         true,
	"dist":          true,
	".idea":         true,
	".vscode":       true,
}

// GraphWriter is the subset of the graph store the walker writes through.
type GraphWriter interface {
	UpsertDirectory(ctx context.Context, codebase, path, name string, depth int, parentPath string) error
	UpsertFile(ctx context.Context, codebase, path, name, extension string, sizeBytes int64, parentPath string) error
}

// Walker refreshes a scope of the codebase graph from the filesystem
// after a claim release. It records directory and file structure only;
// AST-level analysis belongs to the external indexing job.
type Walker struct {
	store GraphWriter
}

// NewWalker creates a walker writing through the given store.
func NewWalker(store GraphWriter) *Walker {
	return &Walker{store: store}
}

// Reindex walks the released subtree under the codebase root and upserts
// Directory and File nodes for everything found. A released file is
// refreshed via its parent directory. Returns a human-readable summary.
func (w *Walker) Reindex(ctx context.Context, rootPath, nodePath, codebase string, isDirectory bool) (string, error) {
	scope := reindexScope(nodePath, codebase, isDirectory)
	start := filepath.Join(rootPath, filepath.FromSlash(scope))

	if _, err := os.Stat(start); os.IsNotExist(err) {
		return fmt.Sprintf("skipped: %s no longer exists on disk", start), nil
	} else if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", start, err)
	}

	dirs, files := 0, 0
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(rootPath, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if SkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			if err := w.store.UpsertDirectory(ctx, codebase, rel, d.Name(), strings.Count(rel, "/")+1, parentOf(rel)); err != nil {
				return fmt.Errorf("failed to upsert directory %s: %w", rel, err)
			}
			dirs++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if err := w.store.UpsertFile(ctx, codebase, rel, d.Name(), path.Ext(d.Name()), info.Size(), parentOf(rel)); err != nil {
			return fmt.Errorf("failed to upsert file %s: %w", rel, err)
		}
		files++
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.Info("Subtree reindexed", "codebase", codebase, "scope", scope, "dirs", dirs, "files", files)
	return fmt.Sprintf("reindexed %d directories and %d files under %s", dirs, files, nodePath), nil
}

// reindexScope resolves the directory to walk, relative to the codebase
// root. A whole-codebase release walks the root itself.
func reindexScope(nodePath, codebase string, isDirectory bool) string {
	if nodePath == codebase {
		return "."
	}
	if isDirectory {
		return nodePath
	}
	return parentOf(nodePath)
}

func parentOf(rel string) string {
	parent := path.Dir(rel)
	if parent == "." {
		return ""
	}
	return parent
}
