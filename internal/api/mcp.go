package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/cekrek/internal/history"
	"github.com/kalambet/cekrek/internal/provider"
	"github.com/kalambet/cekrek/internal/session"
	"github.com/kalambet/cekrek/internal/validate"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Session *session.Session
	History *history.Store
	Version string
}

// NewMCPServer creates an MCP server with the cekrek tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"cekrek",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("cekrek looks up the registered holder name of Indonesian bank accounts and e-wallet numbers."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("check_account",
			mcp.WithDescription("Look up the holder name registered to a bank account or e-wallet number."),
			mcp.WithString("account_type", mcp.Description("bank or ewallet"), mcp.Required(), mcp.Enum("bank", "ewallet")),
			mcp.WithString("provider_code", mcp.Description("Provider code from list_providers, e.g. bca or dana"), mcp.Required()),
			mcp.WithString("number", mcp.Description("Account or phone number; non-digits are ignored"), mcp.Required()),
		),
		mcpCheckAccount(deps),
	)

	s.AddTool(
		mcp.NewTool("validate_number",
			mcp.WithDescription("Check whether a number has a valid format for the account type, without any network call."),
			mcp.WithString("account_type", mcp.Description("bank or ewallet"), mcp.Required(), mcp.Enum("bank", "ewallet")),
			mcp.WithString("number", mcp.Description("Account or phone number"), mcp.Required()),
		),
		mcpValidateNumber(),
	)

	s.AddTool(
		mcp.NewTool("list_providers",
			mcp.WithDescription("List supported banks or e-wallets with their provider codes."),
			mcp.WithString("account_type", mcp.Description("bank or ewallet"), mcp.Required(), mcp.Enum("bank", "ewallet")),
			mcp.WithString("search", mcp.Description("Optional case-insensitive filter on the display name")),
		),
		mcpListProviders(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"cekrek://history",
			"Search History",
			mcp.WithResourceDescription("Last 10 account inquiries, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceHistory(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"cekrek://favorites",
			"Favorites",
			mcp.WithResourceDescription("Saved accounts"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceFavorites(deps),
	)

	return s
}

func mcpCheckAccount(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := requireType(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		code, err := req.RequireString("provider_code")
		if err != nil {
			return mcpError("provider_code is required"), nil
		}
		number, err := req.RequireString("number")
		if err != nil {
			return mcpError("number is required"), nil
		}

		out, err := deps.Session.Submit(ctx, session.Request{AccountType: t, ProviderCode: code, Number: number})
		if err != nil {
			var verr *validate.Error
			if errors.As(err, &verr) {
				return mcpError(validate.Message(t, verr.Reason)), nil
			}
			return mcpError(fmt.Sprintf("check failed: %v", err)), nil
		}
		if out.Error != "" {
			return mcpError(out.Error), nil
		}

		b, err := json.Marshal(out.Result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpValidateNumber() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := requireType(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		number, err := req.RequireString("number")
		if err != nil {
			return mcpError("number is required"), nil
		}

		res := validate.Validate(number, t)
		resp := validateResponse{Result: res}
		if !res.Valid {
			resp.Message = validate.Message(t, res.Reason)
		}
		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListProviders(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := requireType(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		entries := deps.Session.Catalog().Search(t, req.GetString("search", ""))
		if len(entries) == 0 {
			return mcpText("[]"), nil
		}
		b, err := json.Marshal(entries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal providers: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceHistory(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		entries, err := deps.History.LoadHistory()
		if err != nil {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
		if entries == nil {
			entries = []history.Entry{}
		}
		return jsonResource(req.Params.URI, entries)
	}
}

func mcpResourceFavorites(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		favs, err := deps.History.LoadFavorites()
		if err != nil {
			return nil, fmt.Errorf("failed to load favorites: %w", err)
		}
		if favs == nil {
			favs = []history.Favorite{}
		}
		return jsonResource(req.Params.URI, favs)
	}
}

func requireType(req mcp.CallToolRequest) (provider.Type, error) {
	raw, err := req.RequireString("account_type")
	if err != nil {
		return "", errors.New("account_type is required")
	}
	return provider.ParseType(raw)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
