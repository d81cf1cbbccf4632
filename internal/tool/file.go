package tool

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rea/internal/domain"
)

// DefaultOmitFolders are skipped by list_files.
var DefaultOmitFolders = []string{"node_modules", ".git", "__pycache__", "venv", ".venv", "env", ".env", "dump"}

// maxListedFiles caps list_files output so a huge tree cannot flood the context.
const maxListedFiles = 2000

// resolvePath resolves a file path relative to the workspace and prevents traversal.
func resolvePath(workspace, path string) (string, error) {
	path = strings.TrimSpace(path)
	if !filepath.IsAbs(path) && workspace != "" {
		path = filepath.Join(workspace, path)
	}
	resolved, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if workspace != "" {
		wsAbs, err := filepath.Abs(workspace)
		if err != nil {
			return "", fmt.Errorf("resolve workspace: %w", err)
		}
		if !strings.HasPrefix(resolved, wsAbs+string(filepath.Separator)) && resolved != wsAbs {
			return "", fmt.Errorf("path %q is outside workspace %q", resolved, wsAbs)
		}
	}
	return resolved, nil
}

// --- ReadFileTool ---

// ReadFileTool reads the contents of a file inside the workspace.
type ReadFileTool struct {
	workspace string
}

func NewReadFileTool(workspace string) *ReadFileTool {
	return &ReadFileTool{workspace: workspace}
}

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Description() string {
	return "Read the contents of a file. Provide the file path relative to the workspace."
}
func (t *ReadFileTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"file_path": {Type: "string", Description: "File path to read, relative to the workspace"},
		},
		[]string{"file_path"},
	)
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path := ArgsString(args, "file_path")
	if path == "" {
		return "", fmt.Errorf("missing argument: file_path")
	}
	resolved, err := resolvePath(t.workspace, path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}

// --- WriteFileTool ---

// WriteFileTool writes content to a file, creating parent directories as needed.
type WriteFileTool struct {
	workspace string
}

func NewWriteFileTool(workspace string) *WriteFileTool {
	return &WriteFileTool{workspace: workspace}
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write text to a file in the workspace. Creates the file if it does not exist; overwrites it unless append is true. " +
		"Request approval before calling this tool."
}
func (t *WriteFileTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"file_path": {Type: "string", Description: "File path to write, relative to the workspace"},
			"text":      {Type: "string", Description: "Content to write to the file"},
			"append":    {Type: "boolean", Description: "Append instead of overwriting"},
		},
		[]string{"file_path", "text"},
	)
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path := ArgsString(args, "file_path")
	text := ArgsString(args, "text")
	if path == "" {
		return "", fmt.Errorf("missing argument: file_path")
	}
	resolved, err := resolvePath(t.workspace, path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode, _ := args["append"].(bool); appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("File written successfully to %s.", path), nil
}

// --- ListFilesTool ---

// ListFilesTool lists files recursively, skipping dependency and VCS folders.
type ListFilesTool struct {
	workspace string
	omit      map[string]bool
}

func NewListFilesTool(workspace string, omitFolders []string) *ListFilesTool {
	if omitFolders == nil {
		omitFolders = DefaultOmitFolders
	}
	omit := make(map[string]bool, len(omitFolders))
	for _, f := range omitFolders {
		omit[f] = true
	}
	return &ListFilesTool{workspace: workspace, omit: omit}
}

func (t *ListFilesTool) Name() string { return "list_files" }
func (t *ListFilesTool) Description() string {
	return "List all files under a directory recursively, skipping folders such as node_modules and .git. " +
		"Paths are relative to the listed directory."
}
func (t *ListFilesTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"dir_path": {Type: "string", Description: "Directory to list, relative to the workspace (default '.')"},
		},
		nil,
	)
}

func (t *ListFilesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	dir := ArgsString(args, "dir_path")
	if dir == "" {
		dir = "."
	}
	root, err := resolvePath(t.workspace, dir)
	if err != nil {
		return "", err
	}

	var files []string
	truncated := false
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && t.omit[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if len(files) >= maxListedFiles {
			truncated = true
			return filepath.SkipAll
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}
	if len(files) == 0 {
		return "No files found.", nil
	}
	sort.Strings(files)
	out := strings.Join(files, "\n")
	if truncated {
		out += fmt.Sprintf("\n... truncated after %d files", maxListedFiles)
	}
	return out, nil
}

var (
	_ domain.Tool = (*ReadFileTool)(nil)
	_ domain.Tool = (*WriteFileTool)(nil)
	_ domain.Tool = (*ListFilesTool)(nil)
)
