package server

import (
	"context"
	"encoding/json"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	session "github.com/sessionkeys/starknet-session/go"
)

// MCP tool names. Each tool takes the same arguments as the matching HTTP body.
const (
	ToolSessionTypedData       = "build_session_typed_data"
	ToolGasSponsoredTypedData  = "build_gas_sponsored_typed_data"
	ToolSessionRedemption      = "build_session_redemption"
	ToolGasSponsoredRedemption = "build_gas_sponsored_redemption"
	ToolResolveHints           = "resolve_hints"
)

const (
	mcpServerName    = "sessiond"
	mcpServerVersion = "1.0.0"
)

type toolFunc func(raw []byte) (interface{}, error)

func (s *Server) newMCPServer() *mcpsdk.Server {
	srv := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    mcpServerName,
		Version: mcpServerVersion,
	}, nil)

	typedData := func(flow session.Flow) toolFunc {
		return func(raw []byte) (interface{}, error) { return s.buildTypedData(flow, raw) }
	}
	redemption := func(flow session.Flow) toolFunc {
		return func(raw []byte) (interface{}, error) { return s.buildRedemption(flow, raw) }
	}

	s.addTool(srv, ToolSessionTypedData,
		"Build the SNIP-12 typed data an account owner signs to grant a session key.",
		typedData(session.FlowSession), "chainId", "request")
	s.addTool(srv, ToolGasSponsoredTypedData,
		"Build the SNIP-12 typed data an account owner signs to let a caller execute gas-sponsored calls.",
		typedData(session.FlowGasSponsored), "chainId", "request")
	s.addTool(srv, ToolSessionRedemption,
		"Build the multicall that redeems a signed session grant: session_execute followed by the user calls.",
		redemption(session.FlowSession), "accountAddress", "grant", "calls")
	s.addTool(srv, ToolGasSponsoredRedemption,
		"Build the single call a sponsor submits to redeem a signed gas-sponsored grant.",
		redemption(session.FlowGasSponsored), "accountAddress", "grant", "calls")
	s.addTool(srv, ToolResolveHints,
		"Map each call to the index of the allowed method that authorizes it, or -1.",
		func(raw []byte) (interface{}, error) { return s.resolveHints(raw) }, "allowedMethods", "calls")

	return srv
}

func (s *Server) addTool(srv *mcpsdk.Server, name, description string, fn toolFunc, required ...string) {
	srv.AddTool(&mcpsdk.Tool{
		Name:        name,
		Description: description,
		InputSchema: map[string]interface{}{
			"type":     "object",
			"required": required,
		},
	}, s.toolHandler(name, fn))
}

// toolHandler adapts fn to the MCP SDK. Failures are reported as tool errors
// carrying the coded error, not as protocol errors.
func (s *Server) toolHandler(name string, fn toolFunc) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		raw := []byte("{}")
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			raw = req.Params.Arguments
		}

		out, err := fn(raw)
		if err != nil {
			sessionErr := session.AsSessionError(err)
			s.logger.Warn("tool call failed",
				zap.String("tool", name),
				zap.String("code", sessionErr.Code),
				zap.Error(err),
			)
			return toolResult(map[string]interface{}{"error": sessionErr}, true)
		}
		return toolResult(out, false)
	}
}

func toolResult(v interface{}, isError bool) (*mcpsdk.CallToolResult, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(text)}},
		IsError: isError,
	}, nil
}
