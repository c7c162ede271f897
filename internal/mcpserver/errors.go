package mcpserver

import (
	"errors"
	"fmt"

	"chiptally/internal/app/rooms"
	"chiptally/internal/commit"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

func mapDomainError(err error) *mcp.CallToolResult {
	var fanOut *commit.FanOutError
	switch {
	case err == nil:
		return toolError("internal_error", "unknown error")
	case errors.Is(err, rooms.ErrInvalidRequest), errors.Is(err, commit.ErrMissingRoomID):
		return toolError("invalid_request", err.Error())
	case errors.Is(err, commit.ErrEmptyName):
		return toolError("empty_name", err.Error())
	case errors.Is(err, commit.ErrInvalidNumber):
		return toolError("invalid_number", err.Error())
	case errors.Is(err, commit.ErrInvalidChipValue):
		return toolError("invalid_chip_value", err.Error())
	case errors.Is(err, commit.ErrInvalidConfig):
		return toolError("invalid_config", err.Error())
	case errors.Is(err, rooms.ErrRoomNotFound):
		return toolError("room_not_found", err.Error())
	case errors.Is(err, rooms.ErrPlayerNotFound):
		return toolError("player_not_found", err.Error())
	case errors.Is(err, rooms.ErrRoomIDExhausted):
		return toolError("room_id_exhausted", err.Error())
	case errors.As(err, &fanOut):
		return toolError("fan_out_incomplete", err.Error())
	default:
		return toolError("internal_error", err.Error())
	}
}
