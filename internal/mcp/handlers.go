package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ironsheep/dual-ocr/internal/imaging"
	"github.com/ironsheep/dual-ocr/internal/ocr"
	"github.com/ironsheep/dual-ocr/internal/recognizer"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "ocr_text", "ocr_dual").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000
// and the error kind in data.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool call failed", "tool", params.Name, "kind", ocr.KindOf(err), "error", err)
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", toolError{
			Kind:    ocr.KindOf(err),
			Message: err.Error(),
		})
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// toolError is the data payload of a failed tool call.
type toolError struct {
	Kind    ocr.ErrorKind `json:"kind"`
	Message string        `json:"message"`
}

// errUnknownTool reports a tools/call for a name not in GetToolDefinitions.
var errUnknownTool = errors.New("unknown tool")

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Builds a recognition request for its passes
//  3. Runs it and reshapes the outcome into the tool's result
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "ocr_text":
		return s.handleOCRText(ctx, args)
	case "ocr_dual":
		return s.handleOCRDual(ctx, args)
	case "ocr_whitelist":
		return s.handleOCRWhitelist(ctx, args)
	default:
		return nil, fmt.Errorf("%w: %w: %s", imaging.ErrInvalidInput, errUnknownTool, name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	if str, ok := data.(string); ok && str == "" {
		data = nil
	}
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// imageArgs are the image reference arguments shared by every tool.
type imageArgs struct {
	ImageBase64 string `json:"image_base64"`
	ImageURL    string `json:"image_url"`
}

func (a imageArgs) input() imaging.Input {
	return imaging.Input{Base64: a.ImageBase64, URL: a.ImageURL}
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %w", imaging.ErrInvalidInput, err)
	}
	return nil
}

// recognize runs req and fails the call when every pass failed.
func (s *Server) recognize(ctx context.Context, req recognizer.Request) (*ocr.Outcome, error) {
	out, err := s.rec.Recognize(ctx, req)
	if errors.Is(err, imaging.ErrMissingImage) {
		return nil, fmt.Errorf("%w: missing image_base64 or image_url", imaging.ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}
	if out.AllFailed() {
		return nil, out.Err()
	}
	return out, nil
}

// === OCR Handlers ===

func (s *Server) handleOCRText(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	out, err := s.recognize(ctx, recognizer.Request{Image: a.input(), Mode: recognizer.ModeSingle})
	if err != nil {
		return nil, err
	}
	return out.SingleResponse(), nil
}

func (s *Server) handleOCRDual(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	out, err := s.recognize(ctx, recognizer.Request{Image: a.input(), Mode: recognizer.ModeDual})
	if err != nil {
		return nil, err
	}
	return out.DualResponse(), nil
}

type ocrWhitelistArgs struct {
	imageArgs
	Whitelist string `json:"whitelist"`
	Name      string `json:"name"`
}

func (s *Server) handleOCRWhitelist(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a ocrWhitelistArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Whitelist) == "" {
		return nil, fmt.Errorf("%w: whitelist is required", imaging.ErrInvalidInput)
	}
	wl, err := ocr.ParseWhitelist(a.Whitelist)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", imaging.ErrInvalidInput, err)
	}
	if a.Name == "" {
		a.Name = "whitelist"
	}

	out, err := s.recognize(ctx, recognizer.Request{
		Image:  a.input(),
		Passes: []ocr.Pass{{Name: a.Name, Whitelist: wl}},
	})
	if err != nil {
		return nil, err
	}
	return out.PassesResponse(), nil
}
