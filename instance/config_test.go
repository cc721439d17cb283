package instance

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wasmbridge/wasm-bridge/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Bind != BindNone {
		t.Errorf("Bind = %d, want none", cfg.Bind)
	}
	if cfg.MaxMemory != NoLimit || cfg.MaxTableEntries != NoLimit {
		t.Error("default limits are not unbounded")
	}
	if cfg.EpochTicks != 0 || cfg.WASI {
		t.Error("default enables a deadline or WASI")
	}
}

func TestConfigFromMapNil(t *testing.T) {
	cfg, err := ConfigFromMap(nil)
	if err != nil {
		t.Fatalf("ConfigFromMap(nil): %v", err)
	}
	if cfg.MaxMemory != NoLimit {
		t.Error("nil map did not yield defaults")
	}
}

func TestConfigFromMap(t *testing.T) {
	cfg, err := ConfigFromMap(map[string]any{
		"bind":              "registry",
		"max_memory":        1 << 20,
		"max_table_entries": int64(128),
		"epoch_ticks":       float64(250),
		"epoch_autoreset":   true,
		"wasi.enable":       true,
		"wasi.args":         []any{"-v", "input.txt"},
		"wasi.env":          map[string]string{"HOME": "/tmp"},
		"wasi.stdin":        "buffer",
		"wasi.stdin_data":   "hello",
		"wasi.stdout":       "line",
		"wasi.stderr":       "block",
		"denied_ops":        []string{"byte_array.from", "dict.set"},
		"unknown_key":       struct{}{},
	})
	if err != nil {
		t.Fatalf("ConfigFromMap: %v", err)
	}

	if cfg.Bind != BindRegistry {
		t.Errorf("Bind = %d", cfg.Bind)
	}
	if cfg.MaxMemory != 1<<20 || cfg.MaxTableEntries != 128 {
		t.Errorf("limits = %d, %d", cfg.MaxMemory, cfg.MaxTableEntries)
	}
	if cfg.EpochTicks != 250 || !cfg.EpochAutoreset {
		t.Errorf("epoch = %d, %t", cfg.EpochTicks, cfg.EpochAutoreset)
	}
	if !cfg.WASI || len(cfg.Args) != 2 || cfg.Args[1] != "input.txt" {
		t.Errorf("wasi = %t, args = %v", cfg.WASI, cfg.Args)
	}
	if cfg.Env["HOME"] != "/tmp" {
		t.Errorf("env = %v", cfg.Env)
	}
	if cfg.StdinMode != StdinBuffer || string(cfg.StdinData) != "hello" {
		t.Errorf("stdin = %d, %q", cfg.StdinMode, cfg.StdinData)
	}
	if cfg.StdoutBuffering != LineBuffered || cfg.StderrBuffering != BlockBuffered {
		t.Errorf("buffering = %d, %d", cfg.StdoutBuffering, cfg.StderrBuffering)
	}
	if len(cfg.DeniedOps) != 2 || cfg.DeniedOps[0] != "byte_array.from" {
		t.Errorf("denied = %v", cfg.DeniedOps)
	}
}

func TestConfigFromMapRejects(t *testing.T) {
	cases := []struct {
		name string
		m    map[string]any
	}{
		{"bind mode", map[string]any{"bind": "telepathy"}},
		{"bind type", map[string]any{"bind": 7}},
		{"negative limit", map[string]any{"max_memory": -1}},
		{"fractional ticks", map[string]any{"epoch_ticks": 1.5}},
		{"wasi flag type", map[string]any{"wasi.enable": "yes"}},
		{"args element", map[string]any{"wasi.args": []any{"ok", 3}}},
		{"env type", map[string]any{"wasi.env": []string{"HOME=/tmp"}}},
		{"stdin mode", map[string]any{"wasi.stdin": "pipe"}},
		{"stdin data", map[string]any{"wasi.stdin_data": 42}},
		{"stdout mode", map[string]any{"wasi.stdout": "full"}},
		{"denied type", map[string]any{"denied_ops": "dict.set"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ConfigFromMap(tc.m)
			if err == nil {
				t.Fatal("bad setting accepted")
			}
			var e *errors.Error
			if !stderrors.As(err, &e) || e.Phase != errors.PhaseConfig {
				t.Errorf("error = %v, want config phase", err)
			}
		})
	}
}

func TestConfigErrorNamesKey(t *testing.T) {
	_, err := ConfigFromMap(map[string]any{"max_memory": "lots"})
	if err == nil {
		t.Fatal("bad setting accepted")
	}
	if !strings.Contains(err.Error(), "max_memory") {
		t.Errorf("error %v does not name the offending key", err)
	}
}

func TestMaxPages(t *testing.T) {
	cases := []struct {
		maxMemory uint64
		want      uint32
	}{
		{NoLimit, 0},
		{5 * PageSize, 5},
		{5*PageSize + 1, 6},
		{1, 1},
		{1 << 40, 0},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		cfg.MaxMemory = tc.maxMemory
		if got := cfg.maxPages(); got != tc.want {
			t.Errorf("maxPages(%d) = %d, want %d", tc.maxMemory, got, tc.want)
		}
	}
}
