// Package mcp implements the MCP (Model Context Protocol) server for the OCR
// tools.
//
// The server speaks JSON-RPC 2.0 over stdio, so that MCP clients can run
// recognition passes over images they hold:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - ocr_text: One unrestricted pass, returned in the ParsedResults shape.
//   - ocr_dual: Alphabetic and numeric passes, returned keyed by pass.
//   - ocr_whitelist: One pass restricted to a whitelist in range syntax.
//
// Every tool takes the image as image_base64 or image_url.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: {"kind", "message"} naming the failure class
//
// A dual call where only one pass failed is not an error: the result
// carries the surviving pass and lists the failure under "errors".
//
// # Usage
//
// The server is started by the dual-ocr command's mcp subcommand:
//
//	srv := mcp.New(service, version, logger)
//	if err := srv.Run(ctx); err != nil {
//	    return err
//	}
package mcp
