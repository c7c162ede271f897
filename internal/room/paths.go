package room

import "strings"

const Root = "rooms"

// Path builds a store path under rooms/<roomID>.
func Path(roomID string, parts ...string) string {
	segs := make([]string, 0, len(parts)+2)
	segs = append(segs, Root, roomID)
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return strings.Join(segs, "/")
}

func ConfigPath(roomID, key string) string {
	return Path(roomID, "config", key)
}

func PlayerPath(roomID, playerID string) string {
	return Path(roomID, "players", playerID)
}

func PlayerFieldPath(roomID, playerID, field string) string {
	return Path(roomID, "players", playerID, field)
}

func UpdatedAtPath(roomID string) string {
	return Path(roomID, "updatedAt")
}

func ExpiresAtPath(roomID string) string {
	return Path(roomID, "expiresAt")
}
