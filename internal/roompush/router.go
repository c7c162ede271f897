package roompush

import "strings"

type Router struct{}

// MatchTargets returns the enabled targets watching roomID that accept kind.
func (r Router) MatchTargets(targets []PushTarget, roomID, kind string) []PushTarget {
	if len(targets) == 0 {
		return nil
	}
	out := make([]PushTarget, 0, len(targets))
	for _, target := range targets {
		if !target.Enabled || target.RoomID != roomID {
			continue
		}
		if !kindAllowed(target.Events, kind) {
			continue
		}
		out = append(out, target)
	}
	return out
}

func kindAllowed(allowlist []string, kind string) bool {
	if len(allowlist) == 0 {
		return true
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	for _, v := range allowlist {
		if v != "" && strings.ToLower(strings.TrimSpace(v)) == kind {
			return true
		}
	}
	return false
}

// roomIDs lists the distinct rooms the enabled targets watch.
func roomIDs(targets []PushTarget) map[string]struct{} {
	out := map[string]struct{}{}
	for _, target := range targets {
		if target.Enabled {
			out[target.RoomID] = struct{}{}
		}
	}
	return out
}
