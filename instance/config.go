package instance

import (
	"fmt"

	"github.com/wasmbridge/wasm-bridge/errors"
)

// BindMode selects how host values cross the guest boundary.
type BindMode uint8

const (
	// BindNone exposes no value bridge; the guest only sees numeric
	// parameters and linear memory.
	BindNone BindMode = iota
	// BindRegistry routes values through integer handles into the object
	// registry.
	BindRegistry
	// BindNative passes values directly as opaque externrefs.
	BindNative
)

// StdinMode selects the guest standard input source.
type StdinMode uint8

const (
	// StdinNone leaves stdin unconnected; reads see end of stream.
	StdinNone StdinMode = iota
	// StdinBuffer serves the preset StdinData bytes.
	StdinBuffer
	// StdinInstance connects a feedable interactive line stream.
	StdinInstance
)

// Buffering selects how an output pipe batches sink callbacks.
type Buffering uint8

const (
	Unbuffered Buffering = iota
	LineBuffered
	BlockBuffered
)

// Config controls one instance. The zero value is not usable; start from
// DefaultConfig or ConfigFromMap.
type Config struct {
	Bind BindMode

	// MaxMemory bounds total guest memory growth in bytes, NoLimit for
	// unbounded. MaxTableEntries bounds host-driven table growth.
	MaxMemory       uint64
	MaxTableEntries uint64

	// EpochTicks interrupts guest calls running longer than this many
	// epoch ticks; 0 disables the deadline. EpochAutoreset permits the
	// host to re-arm a running call's deadline through ResetEpoch.
	EpochTicks     uint64
	EpochAutoreset bool

	// WASI instantiates wasi_snapshot_preview1 when the guest imports it.
	WASI bool
	Args []string
	Env  map[string]string

	StdinMode StdinMode
	StdinData []byte
	// OnStdinRequest fires when an interactive guest read would block.
	OnStdinRequest func()

	// OnStdout and OnStderr receive guest output; nil discards it.
	OnStdout        func([]byte)
	OnStderr        func([]byte)
	StdoutBuffering Buffering
	StderrBuffering Buffering

	// DeniedOps lists bridge operations withheld from this instance,
	// keyed like "byte_array.get".
	DeniedOps []string

	// OnError observes every error surfaced by this instance's public
	// operations, in addition to the error return.
	OnError func(error)
}

// DefaultConfig returns a config with no bridge, no limits and no WASI.
func DefaultConfig() *Config {
	return &Config{
		MaxMemory:       NoLimit,
		MaxTableEntries: NoLimit,
	}
}

func badKey(key string, v any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Path(key).
		Detail("unexpected value %v (%T)", v, v).
		Build()
}

func cfgString(m map[string]any, key string, dst *string) error {
	v, ok := m[key]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return badKey(key, v)
	}
	*dst = s
	return nil
}

func cfgBool(m map[string]any, key string, dst *bool) error {
	v, ok := m[key]
	if !ok {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		return badKey(key, v)
	}
	*dst = b
	return nil
}

func cfgUint(m map[string]any, key string, dst *uint64) error {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case int:
		if n < 0 {
			return badKey(key, v)
		}
		*dst = uint64(n)
	case int64:
		if n < 0 {
			return badKey(key, v)
		}
		*dst = uint64(n)
	case uint64:
		*dst = n
	case float64:
		if n < 0 || n != float64(uint64(n)) {
			return badKey(key, v)
		}
		*dst = uint64(n)
	default:
		return badKey(key, v)
	}
	return nil
}

func cfgStrings(m map[string]any, key string, dst *[]string) error {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		*dst = s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			str, ok := e.(string)
			if !ok {
				return badKey(key, v)
			}
			out = append(out, str)
		}
		*dst = out
	default:
		return badKey(key, v)
	}
	return nil
}

// ConfigFromMap builds a Config from loosely typed settings, as supplied by
// embedding hosts. Unknown keys are ignored; recognized keys with values of
// the wrong type fail.
func ConfigFromMap(m map[string]any) (*Config, error) {
	cfg := DefaultConfig()
	if m == nil {
		return cfg, nil
	}

	var bind string
	if err := cfgString(m, "bind", &bind); err != nil {
		return nil, err
	}
	switch bind {
	case "", "none":
	case "registry":
		cfg.Bind = BindRegistry
	case "native":
		cfg.Bind = BindNative
	default:
		return nil, badKey("bind", bind)
	}

	if err := cfgUint(m, "max_memory", &cfg.MaxMemory); err != nil {
		return nil, err
	}
	if err := cfgUint(m, "max_table_entries", &cfg.MaxTableEntries); err != nil {
		return nil, err
	}
	if err := cfgUint(m, "epoch_ticks", &cfg.EpochTicks); err != nil {
		return nil, err
	}
	if err := cfgBool(m, "epoch_autoreset", &cfg.EpochAutoreset); err != nil {
		return nil, err
	}
	if err := cfgBool(m, "wasi.enable", &cfg.WASI); err != nil {
		return nil, err
	}
	if err := cfgStrings(m, "wasi.args", &cfg.Args); err != nil {
		return nil, err
	}
	if env, ok := m["wasi.env"]; ok {
		e, ok := env.(map[string]string)
		if !ok {
			return nil, badKey("wasi.env", env)
		}
		cfg.Env = e
	}

	var stdin string
	if err := cfgString(m, "wasi.stdin", &stdin); err != nil {
		return nil, err
	}
	switch stdin {
	case "", "none":
	case "buffer":
		cfg.StdinMode = StdinBuffer
	case "instance":
		cfg.StdinMode = StdinInstance
	default:
		return nil, badKey("wasi.stdin", stdin)
	}
	if data, ok := m["wasi.stdin_data"]; ok {
		switch d := data.(type) {
		case []byte:
			cfg.StdinData = d
		case string:
			cfg.StdinData = []byte(d)
		default:
			return nil, badKey("wasi.stdin_data", data)
		}
	}

	for _, key := range []string{"wasi.stdout", "wasi.stderr"} {
		var mode string
		if err := cfgString(m, key, &mode); err != nil {
			return nil, err
		}
		var buf Buffering
		switch mode {
		case "", "unbuffered":
			buf = Unbuffered
		case "line":
			buf = LineBuffered
		case "block":
			buf = BlockBuffered
		default:
			return nil, badKey(key, mode)
		}
		if key == "wasi.stdout" {
			cfg.StdoutBuffering = buf
		} else {
			cfg.StderrBuffering = buf
		}
	}

	if err := cfgStrings(m, "denied_ops", &cfg.DeniedOps); err != nil {
		return nil, err
	}
	return cfg, nil
}

// maxPages converts the byte limit to a page count for the runtime's guest
// growth cap. 0 keeps the runtime default.
func (c *Config) maxPages() uint32 {
	if c.MaxMemory == NoLimit {
		return 0
	}
	pages := (c.MaxMemory + PageSize - 1) / PageSize
	if pages > 65536 {
		return 0
	}
	if pages == 0 {
		pages = 1
	}
	return uint32(pages)
}

func (c *Config) String() string {
	return fmt.Sprintf("bind=%d wasi=%t epoch=%d", c.Bind, c.WASI, c.EpochTicks)
}
