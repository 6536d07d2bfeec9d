package mcp

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// imageProperties are the image reference properties accepted by every tool.
func imageProperties() map[string]interface{} {
	return map[string]interface{}{
		"image_base64": map[string]interface{}{
			"type":        "string",
			"description": "Base64-encoded image, optionally prefixed with data:image/<type>;base64,",
		},
		"image_url": map[string]interface{}{
			"type":        "string",
			"description": "http(s) URL of the image. Ignored when image_base64 is set",
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	whitelistProps := imageProperties()
	whitelistProps["whitelist"] = map[string]interface{}{
		"type":        "string",
		"description": "Allowed characters in range syntax, e.g. A-F0-9 or 0-9.,-",
	}
	whitelistProps["name"] = map[string]interface{}{
		"type":        "string",
		"description": "Optional result key. Default \"whitelist\"",
	}

	return []Tool{
		{
			Name:        "ocr_text",
			Description: "Transcribe all text in an image with one unrestricted recognition pass.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageProperties(),
			},
		},
		{
			Name:        "ocr_dual",
			Description: "Run two concurrent recognition passes over an image: one restricted to letters (A-Za-z) and one restricted to digits and separators (0-9 . / : % , -). Useful for receipts, forms and labels that mix words and amounts.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageProperties(),
			},
		},
		{
			Name:        "ocr_whitelist",
			Description: "Run one recognition pass restricted to a caller-supplied set of characters.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": whitelistProps,
				"required":   []string{"whitelist"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
