package main

import (
	"errors"
	"testing"

	"chiptally/internal/room"
)

func TestParseTap(t *testing.T) {
	tests := []struct {
		line  string
		delta int
		ref   string
		err   bool
	}{
		{line: "+ Ana", delta: 1, ref: "Ana"},
		{line: "- Ana", delta: -1, ref: "Ana"},
		{line: "+3 Ana Lee", delta: 3, ref: "Ana Lee"},
		{line: "  -2 p1 ", delta: -2, ref: "p1"},
		{line: "Ana", err: true},
		{line: "+0 Ana", err: true},
		{line: "+x Ana", err: true},
		{line: "+", err: true},
	}
	for _, tt := range tests {
		delta, ref, err := parseTap(tt.line)
		if tt.err {
			if !errors.Is(err, errBadTap) {
				t.Fatalf("parseTap(%q) err = %v, want errBadTap", tt.line, err)
			}
			continue
		}
		if err != nil || delta != tt.delta || ref != tt.ref {
			t.Fatalf("parseTap(%q) = %d, %q, %v", tt.line, delta, ref, err)
		}
	}
}

func TestHandDraftsKeepTapWhileEditing(t *testing.T) {
	h := newHandDrafts()
	ana := room.Player{ID: "p1", Name: "Ana", Hands: 2}
	h.sync([]room.Player{ana, {ID: "p2", Hands: 1}})

	d := h.draft(ana)
	d.Begin()
	d.Set(3)
	h.sync([]room.Player{ana})
	if got := h.overlay(room.Data{Players: []room.Player{ana}}).Players[0].Hands; got != 3 {
		t.Fatalf("overlay hands = %d, want drafted 3", got)
	}
	d.End()
	ana.Hands = 3
	h.sync([]room.Player{ana})
	if d.Value() != 3 {
		t.Fatalf("draft = %d after echo", d.Value())
	}
	if _, ok := h.drafts["p2"]; ok {
		t.Fatal("draft for removed player kept")
	}
}
