package mcpserver

import (
	"context"

	"chiptally/internal/app/rooms"

	"github.com/mark3labs/mcp-go/mcp"
)

func playerTool(name, description string, extra ...mcp.ToolOption) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithString("room_id", mcp.Required(), mcp.Description("Room id")),
		mcp.WithString("player_id", mcp.Required(), mcp.Description("Player id")),
	}
	return mcp.NewTool(name, append(opts, extra...)...)
}

func (s *Server) registerPlayerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"add_player",
			mcp.WithDescription("Add a player who starts with one hand bought"),
			mcp.WithString("room_id", mcp.Required(), mcp.Description("Room id")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Player name")),
		),
		s.handleAddPlayer,
	)
	s.mcpServer.AddTool(playerTool("delete_player", "Remove a player from the room"), s.handleDeletePlayer)
	s.mcpServer.AddTool(
		playerTool("rename_player", "Rename a player",
			mcp.WithString("name", mcp.Required(), mcp.Description("New name"))),
		s.playerEdit(func(r mcp.CallToolRequest) (rooms.PlayerPatch, error) {
			v, err := r.RequireString("name")
			return rooms.PlayerPatch{Name: &v}, err
		}),
	)
	s.mcpServer.AddTool(
		playerTool("set_hands", "Set hands bought; derives buy-in unless overridden",
			mcp.WithNumber("hands", mcp.Required(), mcp.Description("Hands, rounded to a whole number, min 0"))),
		s.playerEdit(func(r mcp.CallToolRequest) (rooms.PlayerPatch, error) {
			v, err := r.RequireFloat("hands")
			return rooms.PlayerPatch{Hands: &v}, err
		}),
	)
	s.mcpServer.AddTool(
		playerTool("adjust_hands", "Add or remove hands relative to the current count",
			mcp.WithNumber("delta", mcp.Required(), mcp.Description("Signed change, usually 1 or -1"))),
		s.playerEdit(func(r mcp.CallToolRequest) (rooms.PlayerPatch, error) {
			v, err := r.RequireInt("delta")
			return rooms.PlayerPatch{AdjustHands: &v}, err
		}),
	)
	s.mcpServer.AddTool(
		playerTool("set_current_chips", "Set the chips a player holds now",
			mcp.WithNumber("chips", mcp.Required(), mcp.Description("Chip count"))),
		s.playerEdit(func(r mcp.CallToolRequest) (rooms.PlayerPatch, error) {
			v, err := r.RequireFloat("chips")
			return rooms.PlayerPatch{CurrentChips: &v}, err
		}),
	)
	s.mcpServer.AddTool(
		playerTool("set_buy_in", "Set a manual buy-in in chips",
			mcp.WithNumber("chips", mcp.Required(), mcp.Description("Buy-in in chips"))),
		s.playerEdit(func(r mcp.CallToolRequest) (rooms.PlayerPatch, error) {
			v, err := r.RequireFloat("chips")
			return rooms.PlayerPatch{BuyInChips: &v}, err
		}),
	)
	s.mcpServer.AddTool(
		playerTool("set_buy_in_override", "Turn the manual buy-in override on or off",
			mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("Override state"))),
		s.playerEdit(func(r mcp.CallToolRequest) (rooms.PlayerPatch, error) {
			v, err := r.RequireBool("enabled")
			return rooms.PlayerPatch{BuyInOverride: &v}, err
		}),
	)
}

func (s *Server) handleAddPlayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, err := request.RequireString("room_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	p, svcErr := s.rooms.AddPlayer(ctx, roomID, name)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(p), nil
}

func (s *Server) handleDeletePlayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, playerID, errResp := playerArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	if err := s.rooms.DeletePlayer(ctx, roomID, playerID); err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"deleted": playerID}), nil
}

func (s *Server) playerEdit(parse func(mcp.CallToolRequest) (rooms.PlayerPatch, error)) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		roomID, playerID, errResp := playerArgs(request)
		if errResp != nil {
			return errResp, nil
		}
		patch, err := parse(request)
		if err != nil {
			return toolError("invalid_request", err.Error()), nil
		}
		written, svcErr := s.rooms.UpdatePlayer(ctx, roomID, playerID, patch)
		if svcErr != nil {
			return mapDomainError(svcErr), nil
		}
		return toolResult(map[string]any{"written": written}), nil
	}
}

func playerArgs(request mcp.CallToolRequest) (string, string, *mcp.CallToolResult) {
	roomID, err := request.RequireString("room_id")
	if err != nil {
		return "", "", toolError("invalid_request", err.Error())
	}
	playerID, err := request.RequireString("player_id")
	if err != nil {
		return "", "", toolError("invalid_request", err.Error())
	}
	return roomID, playerID, nil
}
