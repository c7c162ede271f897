package mcpserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"testing"

	"chiptally/internal/app/rooms"
	"chiptally/internal/store"

	"github.com/coder/quartz"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	mem := store.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })
	svc := rooms.NewService(mem, rooms.Options{Clock: quartz.NewMock(t)})
	httpSrv := httptest.NewServer(New(svc).Handler())
	t.Cleanup(httpSrv.Close)

	c, closeClient := newMCPClient(t, httpSrv.URL+"/mcp")
	t.Cleanup(closeClient)
	return c
}

func TestMCPRoomFlow(t *testing.T) {
	c := newTestClient(t)

	assertToolNames(t, mustListTools(t, c),
		"create_room",
		"get_room",
		"update_settings",
		"add_player",
		"delete_player",
		"rename_player",
		"set_hands",
		"adjust_hands",
		"set_current_chips",
		"set_buy_in",
		"set_buy_in_override",
	)

	created := mustSucceed(t, c, "create_room", map[string]any{"host_name": "Ana"})
	roomID := asString(created["roomId"])
	if roomID == "" {
		t.Fatalf("create_room missing roomId: %v", created)
	}
	host, _ := created["host"].(map[string]any)
	hostID := asString(host["id"])
	if hostID == "" {
		t.Fatalf("create_room missing host: %v", created)
	}

	added := mustSucceed(t, c, "add_player", map[string]any{"room_id": roomID, "name": "Ben"})
	benID := asString(added["id"])

	mustSucceed(t, c, "set_hands", map[string]any{"room_id": roomID, "player_id": benID, "hands": 3})
	mustSucceed(t, c, "adjust_hands", map[string]any{"room_id": roomID, "player_id": hostID, "delta": 1})
	mustSucceed(t, c, "set_current_chips", map[string]any{"room_id": roomID, "player_id": benID, "chips": 500})
	mustSucceed(t, c, "set_current_chips", map[string]any{"room_id": roomID, "player_id": hostID, "chips": 1500})

	view := mustSucceed(t, c, "get_room", map[string]any{"room_id": roomID})
	totals, _ := view["totals"].(map[string]any)
	if asFloat64(totals["totalBuyIn"]) != 2500 || asFloat64(totals["totalCurrent"]) != 2000 {
		t.Fatalf("unexpected totals: %v", totals)
	}
	if got := asString(view["status"]); got != "short 500" {
		t.Fatalf("status=%q want short 500", got)
	}

	res := mustSucceed(t, c, "set_hands", map[string]any{"room_id": roomID, "player_id": benID, "hands": 3})
	if res["written"] != false {
		t.Fatalf("unchanged hands should not write: %v", res)
	}

	mustSucceed(t, c, "update_settings", map[string]any{"room_id": roomID, "chips_per_hand": 1000})
	view = mustSucceed(t, c, "get_room", map[string]any{"room_id": roomID})
	totals, _ = view["totals"].(map[string]any)
	if asFloat64(totals["totalBuyIn"]) != 5000 {
		t.Fatalf("buy-ins should follow chips per hand: %v", totals)
	}

	mustSucceed(t, c, "delete_player", map[string]any{"room_id": roomID, "player_id": benID})
	view = mustSucceed(t, c, "get_room", map[string]any{"room_id": roomID})
	r, _ := view["room"].(map[string]any)
	if players, _ := r["players"].([]any); len(players) != 1 {
		t.Fatalf("expected 1 player after delete, got %v", r["players"])
	}
}

func TestMCPToolErrors(t *testing.T) {
	c := newTestClient(t)
	created := mustSucceed(t, c, "create_room", map[string]any{})
	roomID := asString(created["roomId"])

	tests := []struct {
		name string
		tool string
		args map[string]any
		code string
	}{
		{"missing room id", "get_room", map[string]any{}, "invalid_request"},
		{"unknown room", "get_room", map[string]any{"room_id": "NOPE00"}, "room_not_found"},
		{"unknown player", "set_hands", map[string]any{"room_id": roomID, "player_id": "player_x", "hands": 2}, "player_not_found"},
		{"empty name", "add_player", map[string]any{"room_id": roomID, "name": "  "}, "empty_name"},
		{"bad display mode", "update_settings", map[string]any{"room_id": roomID, "display_mode": "euros"}, "invalid_request"},
		{"bad chip value", "update_settings", map[string]any{"room_id": roomID, "chip_value": 0}, "invalid_config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertToolErrorCode(t, mustCallTool(t, c, tc.tool, tc.args), tc.code)
		})
	}
}

func newMCPClient(t *testing.T, endpoint string) (*client.Client, func()) {
	t.Helper()
	ctx := context.Background()
	trans, err := transport.NewStreamableHTTP(endpoint)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	if err := trans.Start(ctx); err != nil {
		t.Fatalf("transport start: %v", err)
	}
	c := client.NewClient(trans)
	_, err = c.Initialize(ctx, mcp.InitializeRequest{Params: mcp.InitializeParams{ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION}})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return c, func() { _ = trans.Close() }
}

func mustListTools(t *testing.T, c *client.Client) []mcp.Tool {
	t.Helper()
	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	return res.Tools
}

func assertToolNames(t *testing.T, tools []mcp.Tool, expected ...string) {
	t.Helper()
	got := make([]string, 0, len(tools))
	for _, tool := range tools {
		got = append(got, tool.Name)
	}
	sort.Strings(got)
	sort.Strings(expected)
	if len(got) != len(expected) {
		t.Fatalf("tool count mismatch got=%v expected=%v", got, expected)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Fatalf("tool list mismatch got=%v expected=%v", got, expected)
		}
	}
}

func mustCallTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := c.CallTool(context.Background(), mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}})
	if err != nil {
		t.Fatalf("call tool %s: %v", name, err)
	}
	return res
}

func mustSucceed(t *testing.T, c *client.Client, name string, args map[string]any) map[string]any {
	t.Helper()
	res := mustCallTool(t, c, name, args)
	if res.IsError {
		t.Fatalf("%s expected success, got: %v", name, res.StructuredContent)
	}
	return mapFromStructured(t, res)
}

func assertToolErrorCode(t *testing.T, res *mcp.CallToolResult, want string) {
	t.Helper()
	if !res.IsError {
		t.Fatalf("expected tool error %q, got success: %v", want, res.StructuredContent)
	}
	payload := mapFromStructured(t, res)
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("error payload missing 'error': %v", payload)
	}
	if got := asString(errObj["code"]); got != want {
		t.Fatalf("error code=%q want=%q payload=%v", got, want, payload)
	}
}

func mapFromStructured(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	b, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat64(v any) float64 {
	f, _ := v.(float64)
	return f
}
