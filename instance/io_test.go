package instance

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/wasm-bridge/engine"
	"github.com/wasmbridge/wasm-bridge/internal/wasmgen"
)

// fdWriteModule emits a guest whose say() export writes msg to the given
// file descriptor through wasi fd_write. The message bytes are stored into
// linear memory at runtime, one i32 at a time, so no data section is
// needed.
func fdWriteModule(fd int32, msg string) []byte {
	const (
		iovec    = 0  // iov_base, iov_len
		nwritten = 8
		text     = 16
	)

	m := wasmgen.New()
	fdWrite := m.ImportFunc("wasi_snapshot_preview1", "fd_write",
		[]api.ValueType{i32t, i32t, i32t, i32t}, []api.ValueType{i32t})
	m.Memory(1, "memory")

	var body [][]byte
	for i := 0; i < len(msg); i += 4 {
		var word int32
		for j := 0; j < 4 && i+j < len(msg); j++ {
			word |= int32(msg[i+j]) << (8 * j)
		}
		body = append(body,
			wasmgen.I32Const(int32(text+i)),
			wasmgen.I32Const(word),
			wasmgen.I32Store(),
		)
	}
	body = append(body,
		wasmgen.I32Const(iovec), wasmgen.I32Const(text), wasmgen.I32Store(),
		wasmgen.I32Const(iovec+4), wasmgen.I32Const(int32(len(msg))), wasmgen.I32Store(),
		wasmgen.I32Const(fd),
		wasmgen.I32Const(iovec),
		wasmgen.I32Const(1),
		wasmgen.I32Const(nwritten),
		wasmgen.Call(fdWrite),
		wasmgen.Drop(),
	)
	m.ExportFunc("say", nil, nil, wasmgen.Body(body...))
	return m.Build()
}

func TestStdoutCapture(t *testing.T) {
	ctx := context.Background()
	module := loadModule(t, "stdoutcap", fdWriteModule(1, "hello\nworld\n"), nil)

	var lines []string
	cfg := DefaultConfig()
	cfg.WASI = true
	cfg.OnStdout = func(p []byte) { lines = append(lines, string(p)) }
	cfg.StdoutBuffering = LineBuffered

	inst, err := Instantiate(ctx, engine.Global(), module, nil, cfg)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	if _, err := inst.Call(ctx, "say"); err != nil {
		t.Fatalf("say: %v", err)
	}
	if len(lines) != 2 || lines[0] != "hello" || lines[1] != "world" {
		t.Errorf("lines = %q, want [hello world]", lines)
	}
}

func TestStderrCaptureUnbuffered(t *testing.T) {
	ctx := context.Background()
	module := loadModule(t, "stderrcap", fdWriteModule(2, "oops"), nil)

	var got []byte
	cfg := DefaultConfig()
	cfg.WASI = true
	cfg.OnStderr = func(p []byte) { got = append(got, p...) }

	inst, err := Instantiate(ctx, engine.Global(), module, nil, cfg)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	if _, err := inst.Call(ctx, "say"); err != nil {
		t.Fatalf("say: %v", err)
	}
	if string(got) != "oops" {
		t.Errorf("stderr = %q, want oops", got)
	}
}

func TestStdinNotInteractive(t *testing.T) {
	ctx := context.Background()
	module := loadModule(t, "nostdin", hostCallModule(), nil)
	inst, err := Instantiate(ctx, engine.Global(), module, addHost(plainAdd), nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	if err := inst.StdinAddLine("ignored"); err == nil {
		t.Error("StdinAddLine accepted without an interactive stdin")
	}
	if err := inst.StdinClose(); err == nil {
		t.Error("StdinClose accepted without an interactive stdin")
	}
}
