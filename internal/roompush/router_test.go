package roompush

import "testing"

func TestRouterMatchTargets(t *testing.T) {
	r := Router{}
	targets := []PushTarget{
		{Platform: "discord", Endpoint: "https://x/1", RoomID: "ABCDEF", Enabled: true},
		{Platform: "webhook", Endpoint: "https://x/2", RoomID: "ABCDEF", Events: []string{"standings"}, Enabled: true},
		{Platform: "webhook", Endpoint: "https://x/3", RoomID: "GHIJKL", Enabled: true},
		{Platform: "webhook", Endpoint: "https://x/4", RoomID: "ABCDEF", Enabled: false},
	}
	tests := []struct {
		roomID string
		kind   string
		want   int
	}{
		{"ABCDEF", KindHistory, 1},
		{"ABCDEF", KindStandings, 2},
		{"GHIJKL", KindHistory, 1},
		{"ZZZZZZ", KindStandings, 0},
	}
	for _, tt := range tests {
		if got := r.MatchTargets(targets, tt.roomID, tt.kind); len(got) != tt.want {
			t.Fatalf("%s/%s: matched %d targets, want %d", tt.roomID, tt.kind, len(got), tt.want)
		}
	}
	if got := roomIDs(targets); len(got) != 2 {
		t.Fatalf("roomIDs=%v want ABCDEF and GHIJKL", got)
	}
}
