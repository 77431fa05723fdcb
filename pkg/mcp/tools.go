package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/vcsmeta/pkg/history"
	"github.com/Sumatoshi-tech/vcsmeta/pkg/worktree"
)

// Tool name constants.
const (
	ToolNameFileMetadata = "vcsmeta_file_metadata"
	ToolNameFileHistory  = "vcsmeta_file_history"
	ToolNameListFiles    = "vcsmeta_list_files"
	ToolNameListTags     = "vcsmeta_list_tags"
	ToolNameStatus       = "vcsmeta_status"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyPath indicates the path parameter is empty.
	ErrEmptyPath = errors.New("path parameter is required and must not be empty")
	// ErrNoRepository indicates the server was started without a repository.
	ErrNoRepository = errors.New("no repository is open")
)

// Input types (auto-generate JSON schemas via struct tags).

// FileInput is the input schema of the per-file tools.
type FileInput struct {
	Path string `json:"path" jsonschema:"file path relative to the repository root"`
}

// ListFilesInput is the input schema for the vcsmeta_list_files tool.
type ListFilesInput struct {
	Dir string `json:"dir,omitempty" jsonschema:"directory relative to the repository root (default: whole tree)"`
}

// ListTagsInput is the input schema for the vcsmeta_list_tags tool.
type ListTagsInput struct{}

// StatusInput is the input schema for the vcsmeta_status tool.
type StatusInput struct {
	IncludeIgnored bool `json:"include_ignored,omitempty" jsonschema:"also report ignored paths"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// listFilesOutput is the payload of vcsmeta_list_files.
type listFilesOutput struct {
	Files   []history.FileMetadata `json:"files"`
	Skipped []string               `json:"skipped,omitempty"`
}

func (s *Server) handleFileMetadata(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input FileInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := s.validate(input.Path)
	if err != nil {
		return errorResult(err)
	}

	meta, err := s.engine.FileMetadata(ctx, input.Path)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(meta)
}

func (s *Server) handleFileHistory(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input FileInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := s.validate(input.Path)
	if err != nil {
		return errorResult(err)
	}

	entries, err := s.engine.FileHistory(ctx, input.Path)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(entries)
}

func (s *Server) handleListFiles(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input ListFilesInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if s.engine == nil {
		return errorResult(ErrNoRepository)
	}

	result, err := s.engine.ListFiles(ctx, input.Dir)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(listFilesOutput{Files: result.Files, Skipped: result.Skipped})
}

func (s *Server) handleListTags(
	ctx context.Context, _ *mcpsdk.CallToolRequest, _ ListTagsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if s.engine == nil {
		return errorResult(ErrNoRepository)
	}

	list, err := s.engine.ListTags(ctx)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(list)
}

func (s *Server) handleStatus(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input StatusInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if s.engine == nil {
		return errorResult(ErrNoRepository)
	}

	entries, err := s.engine.FileStatus(ctx, worktree.ScanOptions{IncludeIgnored: input.IncludeIgnored})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(entries)
}

func (s *Server) validate(path string) error {
	if s.engine == nil {
		return ErrNoRepository
	}

	if path == "" {
		return ErrEmptyPath
	}

	return nil
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
