package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"

	"paypiece/internal/engine"
	"paypiece/internal/plugin"
	"paypiece/internal/types"
)

// MCPServer implements a JSON-RPC based MCP (Model Context Protocol) server
// that exposes every piece action as a tool named <piece>_<action>.
type MCPServer struct {
	engine *engine.Engine
	log    *zap.SugaredLogger
	tools  map[string]toolTarget
}

type toolTarget struct {
	piece  string
	action plugin.ActionDef
}

// NewMCPServer creates a new MCP server over the engine's registry.
func NewMCPServer(eng *engine.Engine, log *zap.SugaredLogger) *MCPServer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &MCPServer{engine: eng, log: log, tools: make(map[string]toolTarget)}
	for _, name := range eng.Registry.List() {
		c, _ := eng.Registry.Get(name)
		for _, a := range c.Actions() {
			s.tools[ToolName(name, a.Name)] = toolTarget{piece: name, action: a}
		}
	}
	return s
}

// ToolName is the MCP tool name for a piece action.
func ToolName(piece, action string) string {
	return piece + "_" + action
}

// JSON-RPC types
type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   any    `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MCP protocol types
type mcpInitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      mcpServerInfo  `json:"serverInfo"`
}

type mcpServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type mcpTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

type mcpToolsResult struct {
	Tools []mcpTool `json:"tools"`
}

type mcpCallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type mcpCallToolResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ServeStdio runs the MCP server on stdin/stdout.
func (s *MCPServer) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve answers newline-delimited JSON-RPC requests from r on w until r
// is exhausted or ctx is cancelled.
func (s *MCPServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	encoder := json.NewEncoder(w)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		var req jsonRPCRequest
		if err := decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decoding request: %w", err)
		}

		resp := s.handleRequest(ctx, req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				return fmt.Errorf("encoding response: %w", err)
			}
		}
	}
}

func (s *MCPServer) handleRequest(ctx context.Context, req jsonRPCRequest) *jsonRPCResponse {
	switch req.Method {
	case "initialize":
		return &jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: mcpInitializeResult{
				ProtocolVersion: "2024-11-05",
				Capabilities: map[string]any{
					"tools": map[string]any{},
				},
				ServerInfo: mcpServerInfo{
					Name:    "paypiece",
					Version: "0.1.0",
				},
			},
		}

	case "notifications/initialized":
		return nil

	case "tools/list":
		return &jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  s.listTools(),
		}

	case "tools/call":
		var params mcpCallToolParams
		if err := decodeParams(req.Params, &params); err != nil {
			return &jsonRPCResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   jsonRPCError{Code: -32602, Message: "invalid params: " + err.Error()},
			}
		}
		text, isError := s.callTool(ctx, params)
		return &jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: mcpCallToolResult{
				Content: []mcpContent{{Type: "text", Text: text}},
				IsError: isError,
			},
		}

	default:
		return &jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   jsonRPCError{Code: -32601, Message: "method not found: " + req.Method},
		}
	}
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing params")
	}
	return json.Unmarshal(raw, v)
}

func (s *MCPServer) listTools() mcpToolsResult {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]mcpTool, 0, len(names))
	for _, name := range names {
		t := s.tools[name]
		tools = append(tools, mcpTool{
			Name:        name,
			Description: t.action.Description,
			InputSchema: inputSchema(t.action.Input),
		})
	}
	return mcpToolsResult{Tools: tools}
}

func inputSchema(fields map[string]types.FieldDef) map[string]any {
	schema := map[string]any{
		"type": "object",
	}
	if len(fields) == 0 {
		return schema
	}

	properties := make(map[string]any, len(fields))
	var required []string

	for name, field := range fields {
		prop := map[string]any{}
		if field.Type != "" && field.Type != "any" {
			prop["type"] = field.Type
		}
		if field.DisplayName != "" {
			prop["title"] = field.DisplayName
		}
		if field.Description != "" {
			prop["description"] = field.Description
		}
		properties[name] = prop
		if field.Required {
			required = append(required, name)
		}
	}

	schema["properties"] = properties
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	return schema
}

func (s *MCPServer) callTool(ctx context.Context, params mcpCallToolParams) (string, bool) {
	t, ok := s.tools[params.Name]
	if !ok {
		return fmt.Sprintf("tool %q not found", params.Name), true
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	res, err := s.engine.Execute(ctx, t.piece, t.action.Name, params.Arguments)
	if err != nil {
		s.log.Warnw("mcp tool failed", "tool", params.Name, "err", err)
		return fmt.Sprintf("error: %v", err), true
	}

	text, err := outputText(res.Output)
	if err != nil {
		return fmt.Sprintf("error marshaling result: %v", err), true
	}
	return text, res.Status != "success"
}

// outputText returns upstream bodies unchanged and renders anything else
// as indented JSON.
func outputText(v any) (string, error) {
	switch out := v.(type) {
	case json.RawMessage:
		return string(out), nil
	case string:
		return out, nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
