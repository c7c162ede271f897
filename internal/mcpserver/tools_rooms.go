package mcpserver

import (
	"context"

	"chiptally/internal/commit"
	"chiptally/internal/room"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerRoomTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_room",
			mcp.WithDescription("Create a room with a fresh 6 character id"),
			mcp.WithString("host_name", mcp.Description("Optional host player added on creation")),
		),
		s.handleCreateRoom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_room",
			mcp.WithDescription("Read a room with its totals and balance status"),
			mcp.WithString("room_id", mcp.Required(), mcp.Description("Room id")),
		),
		s.handleGetRoom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"update_settings",
			mcp.WithDescription("Change chips per hand, chip value or display mode"),
			mcp.WithString("room_id", mcp.Required(), mcp.Description("Room id")),
			mcp.WithNumber("chips_per_hand", mcp.Description("Chips bought per hand, > 0")),
			mcp.WithNumber("chip_value", mcp.Description("Cash value of one chip, > 0")),
			mcp.WithString("display_mode", mcp.Description("chip|cash")),
		),
		s.handleUpdateSettings,
	)
}

func (s *Server) handleCreateRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.rooms.CreateRoom(ctx, request.GetString("host_name", ""))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, err := request.RequireString("room_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	view, svcErr := s.rooms.Room(ctx, roomID)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(view), nil
}

func (s *Server) handleUpdateSettings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, err := request.RequireString("room_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	args := request.GetArguments()
	var patch commit.ConfigPatch
	if _, ok := args["chips_per_hand"]; ok {
		v := request.GetFloat("chips_per_hand", 0)
		patch.ChipsPerHand = &v
	}
	if _, ok := args["chip_value"]; ok {
		v := request.GetFloat("chip_value", 0)
		patch.ChipValue = &v
	}
	if raw := request.GetString("display_mode", ""); raw != "" {
		mode := room.DisplayMode(raw)
		if !mode.Valid() {
			return toolError("invalid_request", "display_mode must be chip|cash"), nil
		}
		patch.DisplayMode = &mode
	}
	written, svcErr := s.rooms.UpdateSettings(ctx, roomID, patch)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(map[string]any{"written": written}), nil
}
