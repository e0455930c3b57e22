package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameFixingCommits = "repominer_fixing_commits"
	ToolNameLabel         = "repominer_label"
)

// Output limits.
const (
	// DefaultRecordLimit caps the failure-prone records of one label call.
	DefaultRecordLimit = 10000
	// MaxRecordLimit is the largest accepted limit.
	MaxRecordLimit = 1000000
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyRepoPath indicates the repo_path parameter is empty.
	ErrEmptyRepoPath = errors.New("repo_path parameter is required and must not be empty")
	// ErrRepoPathNotAbsolute indicates the repo_path is not an absolute path.
	ErrRepoPathNotAbsolute = errors.New("repo_path must be an absolute path")
	// ErrRepoNotFound indicates the repository path does not exist.
	ErrRepoNotFound = errors.New("repository path does not exist")
	// ErrNotGitRepo indicates the path is not a git repository.
	ErrNotGitRepo = errors.New("path is not a git repository")
	// ErrInvalidLimit indicates a negative or oversized record limit.
	ErrInvalidLimit = errors.New("limit must be between 0 and 1000000")
)

// Input types (auto-generate JSON schemas via struct tags).

// FixingCommitsInput is the input schema for the repominer_fixing_commits tool.
type FixingCommitsInput struct {
	Branch   string `json:"branch,omitempty" jsonschema:"branch to mine (default: HEAD)"`
	RepoPath string `json:"repo_path"        jsonschema:"absolute path to a Git repository"`
}

// LabelInput is the input schema for the repominer_label tool.
type LabelInput struct {
	Branch     string   `json:"branch,omitempty"     jsonschema:"branch to mine (default: HEAD)"`
	Extensions []string `json:"extensions,omitempty" jsonschema:"only mine files with these extensions (e.g. .py .yml)"`
	Languages  []string `json:"languages,omitempty"  jsonschema:"only mine files of these linguist languages (e.g. Python YAML)"`
	Limit      int      `json:"limit,omitempty"      jsonschema:"maximum number of failure-prone records (default: 10000)"`
	RepoPath   string   `json:"repo_path"            jsonschema:"absolute path to a Git repository"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validateRepoPath checks that path is an absolute path to a git work tree.
func validateRepoPath(path string) error {
	if path == "" {
		return ErrEmptyRepoPath
	}

	if !filepath.IsAbs(path) {
		return ErrRepoPathNotAbsolute
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRepoNotFound, path)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrRepoNotFound, path)
	}

	_, err = os.Stat(filepath.Join(path, ".git"))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotGitRepo, path)
	}

	return nil
}

// validateLimit resolves the record limit, applying the default for zero.
func validateLimit(limit int) (int, error) {
	if limit < 0 || limit > MaxRecordLimit {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	if limit == 0 {
		return DefaultRecordLimit, nil
	}

	return limit, nil
}
