package coordinate

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// Change is one graph mutation in an update_graph batch. Which fields
// are required depends on (Action, NodeType); the rest default sensibly
// (name derived from path, depth/size zero, no parent).
type Change struct {
	Action   string `json:"action" jsonschema_description:"Either 'upsert' or 'delete'"`
	NodeType string `json:"node_type" jsonschema_description:"One of: File, Directory, Function, Class"`

	// File / Directory fields
	Path       string `json:"path,omitempty" jsonschema_description:"Relative path of the file or directory"`
	Name       string `json:"name,omitempty" jsonschema_description:"Display name; derived from path when omitted"`
	ParentPath string `json:"parent_path,omitempty" jsonschema_description:"Path of the containing directory; empty attaches to the codebase root"`
	Depth      int    `json:"depth,omitempty" jsonschema_description:"Directory nesting level from the root"`
	SizeBytes  int64  `json:"size_bytes,omitempty" jsonschema_description:"File size in bytes"`

	// Function / Class fields
	FilePath     string `json:"file_path,omitempty" jsonschema_description:"Path of the defining file"`
	FunctionName string `json:"function_name,omitempty" jsonschema_description:"Function name (Function changes)"`
	ClassName    string `json:"class_name,omitempty" jsonschema_description:"Class name (Class changes)"`
	LineNumber   int    `json:"line_number,omitempty" jsonschema_description:"1-based line of the definition"`
	IsMethod     bool   `json:"is_method,omitempty" jsonschema_description:"True when the function is a method"`
	Parameters   string `json:"parameters,omitempty" jsonschema_description:"Comma-separated parameter list"`
	OwnerClass   string `json:"owner_class,omitempty" jsonschema_description:"Owning class name for methods"`
	BaseClasses  string `json:"base_classes,omitempty" jsonschema_description:"Comma-separated base class list"`
}

// BatchStatus summarizes an ApplyChanges run.
type BatchStatus string

const (
	BatchStatusOK      BatchStatus = "ok"
	BatchStatusPartial BatchStatus = "partial"
	BatchStatusError   BatchStatus = "error"
)

// BatchResult reports how many changes applied and which failed. Status
// is ok when Errors is empty, partial when some items applied, error
// when none did.
type BatchResult struct {
	Status  BatchStatus
	Applied int
	Errors  []string
}

// changeActions and changeNodeTypes are the closed sets update_graph accepts.
var (
	changeActions   = map[string]bool{"upsert": true, "delete": true}
	changeNodeTypes = map[string]bool{"File": true, "Directory": true, "Function": true, "Class": true}
)

// ApplyChanges validates and applies a batch of graph mutations. Invalid
// items are recorded as per-item errors and skipped; a store failure on
// one item never aborts the rest. An empty codebase or empty batch is
// rejected up front without per-item processing.
func (s *Service) ApplyChanges(ctx context.Context, codebase string, changes []Change) (BatchResult, error) {
	if strings.TrimSpace(codebase) == "" {
		return BatchResult{}, validationErrorf("codebase_name is required")
	}
	if len(changes) == 0 {
		return BatchResult{}, validationErrorf("changes list cannot be empty")
	}

	result := BatchResult{}
	for i, change := range changes {
		if err := s.applyChange(ctx, codebase, change); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("change %d: %s", i+1, err))
			continue
		}
		result.Applied++
	}

	switch {
	case len(result.Errors) == 0:
		result.Status = BatchStatusOK
	case result.Applied > 0:
		result.Status = BatchStatusPartial
	default:
		result.Status = BatchStatusError
	}

	slog.Info("Graph batch applied", "codebase", codebase,
		"applied", result.Applied, "failed", len(result.Errors))
	return result, nil
}

// applyChange validates one change and dispatches it to the store.
func (s *Service) applyChange(ctx context.Context, codebase string, c Change) error {
	if c.Action == "" {
		return fmt.Errorf("missing required field 'action'")
	}
	if !changeActions[c.Action] {
		return fmt.Errorf("invalid action %q, must be 'upsert' or 'delete'", c.Action)
	}
	if c.NodeType == "" {
		return fmt.Errorf("missing required field 'node_type'")
	}
	if !changeNodeTypes[c.NodeType] {
		return fmt.Errorf("invalid node_type %q, must be one of: Class, Directory, File, Function", c.NodeType)
	}

	switch c.NodeType {
	case "File", "Directory":
		if c.Path == "" {
			return fmt.Errorf("missing required field 'path' for %s %s", c.NodeType, c.Action)
		}
	case "Function":
		if c.FilePath == "" {
			return fmt.Errorf("missing required field 'file_path' for Function %s", c.Action)
		}
		if c.FunctionName == "" {
			return fmt.Errorf("missing required field 'function_name' for Function %s", c.Action)
		}
	case "Class":
		if c.FilePath == "" {
			return fmt.Errorf("missing required field 'file_path' for Class %s", c.Action)
		}
		if c.ClassName == "" {
			return fmt.Errorf("missing required field 'class_name' for Class %s", c.Action)
		}
	}

	if c.Action == "delete" {
		switch c.NodeType {
		case "File":
			return s.store.DeleteFile(ctx, codebase, c.Path, true)
		case "Directory":
			return s.store.DeleteDirectory(ctx, codebase, c.Path, true)
		case "Function":
			return s.store.DeleteFunction(ctx, codebase, c.FilePath, c.FunctionName)
		case "Class":
			return s.store.DeleteClass(ctx, codebase, c.FilePath, c.ClassName)
		}
	}

	name := c.Name
	if name == "" && c.Path != "" {
		name = path.Base(c.Path)
	}

	switch c.NodeType {
	case "File":
		return s.store.UpsertFile(ctx, codebase, c.Path, name, path.Ext(c.Path), c.SizeBytes, c.ParentPath)
	case "Directory":
		return s.store.UpsertDirectory(ctx, codebase, c.Path, name, c.Depth, c.ParentPath)
	case "Function":
		return s.store.UpsertFunction(ctx, codebase, c.FilePath, c.FunctionName,
			c.LineNumber, c.IsMethod, c.Parameters, c.OwnerClass)
	case "Class":
		return s.store.UpsertClass(ctx, codebase, c.FilePath, c.ClassName, c.LineNumber, c.BaseClasses)
	}
	return fmt.Errorf("unhandled node_type %q", c.NodeType)
}
