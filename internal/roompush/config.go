package roompush

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chiptally/internal/config"
	"chiptally/internal/ids"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

func ConfigFromServer(cfg config.ServerConfig) (Config, error) {
	out := Config{
		Enabled:             cfg.RoomPushEnabled,
		ConfigPath:          strings.TrimSpace(cfg.RoomPushConfigPath),
		ConfigReload:        5 * time.Second,
		Workers:             cfg.RoomPushWorkers,
		RetryMax:            max(cfg.RoomPushRetryMax, 0),
		RetryBase:           time.Duration(cfg.RoomPushRetryBaseMS) * time.Millisecond,
		PanelUpdateInterval: time.Duration(cfg.RoomPushPanelUpdateMS) * time.Millisecond,
		FailureThreshold:    3,
		CircuitOpenDuration: 30 * time.Second,
		RequestTimeout:      5 * time.Second,
		DispatchBuffer:      512,
	}
	if !out.Enabled {
		return out, nil
	}
	if out.Workers <= 0 {
		out.Workers = 2
	}
	if out.RetryBase <= 0 {
		out.RetryBase = 500 * time.Millisecond
	}
	if out.PanelUpdateInterval <= 0 {
		out.PanelUpdateInterval = 2 * time.Second
	}

	var err error
	if out.ConfigPath != "" {
		var raw []byte
		if raw, err = os.ReadFile(out.ConfigPath); err != nil {
			return Config{}, fmt.Errorf("read room push config path %q: %w", out.ConfigPath, err)
		}
		out.Targets, err = parseTargets(out.ConfigPath, raw)
	} else if inline := strings.TrimSpace(cfg.RoomPushConfigJSON); inline != "" {
		out.Targets, err = parseTargets("inline.json", []byte(inline))
	}
	if err != nil {
		return Config{}, err
	}
	return out, nil
}

// parseTargets decodes a targets document. Files ending in .hcl use target
// blocks; anything else is a JSON array of PushTarget.
func parseTargets(name string, raw []byte) ([]PushTarget, error) {
	if strings.EqualFold(filepath.Ext(name), ".hcl") {
		return parseTargetsHCL(name, raw)
	}
	return parseTargetsJSON(raw)
}

func parseTargetsJSON(raw []byte) ([]PushTarget, error) {
	var targets []PushTarget
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &targets); err != nil {
		return nil, fmt.Errorf("parse room push targets: %w", err)
	}
	return filterTargets(targets), nil
}

type targetsFile struct {
	Targets []targetBlock `hcl:"target,block"`
}

type targetBlock struct {
	Platform string   `hcl:"platform,label"`
	RoomID   string   `hcl:"room_id"`
	Endpoint string   `hcl:"endpoint"`
	Secret   string   `hcl:"secret,optional"`
	Events   []string `hcl:"events,optional"`
	Disabled bool     `hcl:"disabled,optional"`
}

func parseTargetsHCL(name string, raw []byte) ([]PushTarget, error) {
	file, diags := hclparse.NewParser().ParseHCL(raw, name)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse room push targets: %s", diags.Error())
	}
	var doc targetsFile
	if diags := gohcl.DecodeBody(file.Body, nil, &doc); diags.HasErrors() {
		return nil, fmt.Errorf("decode room push targets: %s", diags.Error())
	}
	targets := make([]PushTarget, 0, len(doc.Targets))
	for _, b := range doc.Targets {
		targets = append(targets, PushTarget{
			Platform: b.Platform,
			Endpoint: b.Endpoint,
			Secret:   b.Secret,
			RoomID:   b.RoomID,
			Events:   b.Events,
			Enabled:  !b.Disabled,
		})
	}
	return filterTargets(targets), nil
}

// filterTargets keeps enabled targets with an endpoint and a well formed
// room id.
func filterTargets(targets []PushTarget) []PushTarget {
	filtered := make([]PushTarget, 0, len(targets))
	for _, target := range targets {
		target.Platform = strings.ToLower(strings.TrimSpace(target.Platform))
		target.Endpoint = strings.TrimSpace(target.Endpoint)
		target.RoomID = strings.TrimSpace(target.RoomID)
		if !target.Enabled || target.Endpoint == "" || !ids.ValidRoomID(target.RoomID) {
			continue
		}
		for i := range target.Events {
			target.Events[i] = strings.ToLower(strings.TrimSpace(target.Events[i]))
		}
		filtered = append(filtered, target)
	}
	return filtered
}
