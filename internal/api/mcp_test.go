package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/cekrek/internal/history"
	"github.com/kalambet/cekrek/internal/inquiry"
	"github.com/kalambet/cekrek/internal/provider"
	"github.com/kalambet/cekrek/internal/session"
	"github.com/kalambet/cekrek/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T, checker session.Checker) MCPDeps {
	t.Helper()
	store := history.New(storage.NewMemoryStore())
	return MCPDeps{
		Session: session.New(checker, store, testCatalog),
		History: store,
		Version: "test",
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_CheckAccount(t *testing.T) {
	deps := newTestMCPDeps(t, foundChecker())
	handler := mcpCheckAccount(deps)

	result, err := handler(context.Background(), makeCallToolRequest("check_account", map[string]interface{}{
		"account_type":  "bank",
		"provider_code": "bca",
		"number":        "1234 5678 90",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var got inquiry.Result
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if got.HolderName != "Jane Doe" || got.AccountNumber != "1234567890" {
		t.Errorf("result = %+v", got)
	}

	entries, _ := deps.History.LoadHistory()
	if len(entries) != 1 {
		t.Errorf("history has %d entries, want 1", len(entries))
	}
}

func TestMCPTool_CheckAccount_Errors(t *testing.T) {
	tests := []struct {
		name    string
		checker session.Checker
		args    map[string]interface{}
		want    string
	}{
		{
			name:    "missing number",
			checker: foundChecker(),
			args:    map[string]interface{}{"account_type": "bank", "provider_code": "bca"},
			want:    "number is required",
		},
		{
			name:    "invalid prefix",
			checker: foundChecker(),
			args:    map[string]interface{}{"account_type": "ewallet", "provider_code": "dana", "number": "0712345678"},
			want:    "08",
		},
		{
			name:    "unknown provider",
			checker: foundChecker(),
			args:    map[string]interface{}{"account_type": "ewallet", "provider_code": "bca", "number": "081234567890"},
			want:    "unknown provider",
		},
		{
			name:    "upstream failure",
			checker: stubChecker{err: inquiry.ErrMalformedResponse},
			args:    map[string]interface{}{"account_type": "bank", "provider_code": "bca", "number": "1234567890"},
			want:    session.MsgRetryLater,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := mcpCheckAccount(newTestMCPDeps(t, tt.checker))
			result, err := handler(context.Background(), makeCallToolRequest("check_account", tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Fatalf("expected tool error, got %s", toolText(t, result))
			}
			if text := toolText(t, result); !strings.Contains(text, tt.want) {
				t.Errorf("error = %q, want it to contain %q", text, tt.want)
			}
		})
	}
}

func TestMCPTool_ValidateNumber(t *testing.T) {
	handler := mcpValidateNumber()

	result, err := handler(context.Background(), makeCallToolRequest("validate_number", map[string]interface{}{
		"account_type": "ewallet",
		"number":       "081234",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got validateResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got.Valid || got.Reason != "too_short" || got.Message == "" {
		t.Errorf("response = %+v", got)
	}
}

func TestMCPTool_ListProviders(t *testing.T) {
	deps := newTestMCPDeps(t, foundChecker())
	handler := mcpListProviders(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_providers", map[string]interface{}{
		"account_type": "ewallet",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var entries []provider.Entry
	if err := json.Unmarshal([]byte(toolText(t, result)), &entries); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d e-wallets, want 2", len(entries))
	}

	result, _ = handler(context.Background(), makeCallToolRequest("list_providers", map[string]interface{}{
		"account_type": "bank",
		"search":       "nothing-matches",
	}))
	if toolText(t, result) != "[]" {
		t.Errorf("empty search = %s, want []", toolText(t, result))
	}

	result, _ = handler(context.Background(), makeCallToolRequest("list_providers", map[string]interface{}{}))
	if !result.IsError {
		t.Error("missing account_type should be a tool error")
	}
}

func TestMCPResource_HistoryAndFavorites(t *testing.T) {
	deps := newTestMCPDeps(t, foundChecker())

	contents, err := mcpResourceHistory(deps)(context.Background(), makeReadResourceRequest("cekrek://history"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tc := contents[0].(mcp.TextResourceContents)
	if tc.Text != "[]" || tc.URI != "cekrek://history" {
		t.Errorf("empty history resource = %+v", tc)
	}

	if _, err := deps.Session.Submit(context.Background(), session.Request{AccountType: provider.Bank, ProviderCode: "bca", Number: "1234567890"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := deps.Session.SaveFavorite("Rent"); err != nil {
		t.Fatalf("SaveFavorite: %v", err)
	}

	contents, err = mcpResourceFavorites(deps)(context.Background(), makeReadResourceRequest("cekrek://favorites"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var favs []history.Favorite
	if err := json.Unmarshal([]byte(contents[0].(mcp.TextResourceContents).Text), &favs); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(favs) != 1 || favs[0].Label != "Rent" {
		t.Errorf("favorites = %+v", favs)
	}
}

func TestNewMCPServer_Registers(t *testing.T) {
	s := NewMCPServer(newTestMCPDeps(t, foundChecker()))
	if s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
