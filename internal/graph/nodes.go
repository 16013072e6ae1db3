package graph

import (
	"context"
	"fmt"
)

// UpsertCodebase merges the Codebase root node by name.
func (s *Store) UpsertCodebase(ctx context.Context, name, rootPath string) error {
	_, err := s.runner.Write(ctx, upsertCodebaseQuery, map[string]any{
		"name":      name,
		"root_path": rootPath,
	})
	if err != nil {
		return fmt.Errorf("upsert codebase %q: %w", name, err)
	}
	return nil
}

// UpsertDirectory merges a Directory node by (path, codebase), overwrites
// its scalar fields, and merges the containment edge from its parent (or
// the Codebase root when parentPath is empty).
func (s *Store) UpsertDirectory(ctx context.Context, codebase, path, name string, depth int, parentPath string) error {
	_, err := s.runner.Write(ctx, upsertDirectoryQuery, map[string]any{
		"codebase":    codebase,
		"path":        path,
		"name":        name,
		"depth":       depth,
		"parent_path": parentPath,
	})
	if err != nil {
		return fmt.Errorf("upsert directory %q: %w", path, err)
	}
	return nil
}

// UpsertFile merges a File node by (path, codebase).
func (s *Store) UpsertFile(ctx context.Context, codebase, path, name, extension string, sizeBytes int64, parentPath string) error {
	_, err := s.runner.Write(ctx, upsertFileQuery, map[string]any{
		"codebase":    codebase,
		"path":        path,
		"name":        name,
		"extension":   extension,
		"size_bytes":  sizeBytes,
		"parent_path": parentPath,
	})
	if err != nil {
		return fmt.Errorf("upsert file %q: %w", path, err)
	}
	return nil
}

// UpsertFunction merges a Function node by (file_path, name, codebase),
// links it to its File, and to its owner Class when ownerClass is set.
func (s *Store) UpsertFunction(ctx context.Context, codebase, filePath, name string, lineNumber int, isMethod bool, parameters, ownerClass string) error {
	_, err := s.runner.Write(ctx, upsertFunctionQuery, map[string]any{
		"codebase":    codebase,
		"file_path":   filePath,
		"name":        name,
		"line_number": lineNumber,
		"is_method":   isMethod,
		"parameters":  parameters,
		"owner_class": ownerClass,
	})
	if err != nil {
		return fmt.Errorf("upsert function %q in %q: %w", name, filePath, err)
	}
	return nil
}

// UpsertClass merges a Class node by (file_path, name, codebase) and
// links it to its File.
func (s *Store) UpsertClass(ctx context.Context, codebase, filePath, name string, lineNumber int, baseClasses string) error {
	_, err := s.runner.Write(ctx, upsertClassQuery, map[string]any{
		"codebase":     codebase,
		"file_path":    filePath,
		"name":         name,
		"line_number":  lineNumber,
		"base_classes": baseClasses,
	})
	if err != nil {
		return fmt.Errorf("upsert class %q in %q: %w", name, filePath, err)
	}
	return nil
}

// DeleteDirectory removes a Directory node. With cascade, everything
// reachable below it via containment edges is removed first; sibling
// subtrees are untouched.
func (s *Store) DeleteDirectory(ctx context.Context, codebase, path string, cascade bool) error {
	query := deleteDirectoryQuery
	if cascade {
		query = deleteDirectoryCascadeQuery
	}
	_, err := s.runner.Write(ctx, query, map[string]any{
		"codebase": codebase,
		"path":     path,
	})
	if err != nil {
		return fmt.Errorf("delete directory %q: %w", path, err)
	}
	return nil
}

// DeleteFile removes a File node; with cascade its AST children go first.
func (s *Store) DeleteFile(ctx context.Context, codebase, path string, cascade bool) error {
	query := deleteFileQuery
	if cascade {
		query = deleteFileCascadeQuery
	}
	_, err := s.runner.Write(ctx, query, map[string]any{
		"codebase": codebase,
		"path":     path,
	})
	if err != nil {
		return fmt.Errorf("delete file %q: %w", path, err)
	}
	return nil
}

// DeleteFunction removes a single Function node by its natural key.
func (s *Store) DeleteFunction(ctx context.Context, codebase, filePath, name string) error {
	_, err := s.runner.Write(ctx, deleteFunctionQuery, map[string]any{
		"codebase":  codebase,
		"file_path": filePath,
		"name":      name,
	})
	if err != nil {
		return fmt.Errorf("delete function %q in %q: %w", name, filePath, err)
	}
	return nil
}

// DeleteClass removes a Class node together with its methods.
func (s *Store) DeleteClass(ctx context.Context, codebase, filePath, name string) error {
	_, err := s.runner.Write(ctx, deleteClassQuery, map[string]any{
		"codebase":  codebase,
		"file_path": filePath,
		"name":      name,
	})
	if err != nil {
		return fmt.Errorf("delete class %q in %q: %w", name, filePath, err)
	}
	return nil
}

// ClearSubtree removes a node and its containment descendants ahead of a
// scoped reindex, so entries for files deleted from disk between claim
// and release do not survive.
func (s *Store) ClearSubtree(ctx context.Context, codebase, path string, isDirectory bool) error {
	if isDirectory {
		return s.DeleteDirectory(ctx, codebase, path, true)
	}
	return s.DeleteFile(ctx, codebase, path, true)
}
