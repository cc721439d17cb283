package wasmgen

// Instruction helpers. Each returns the byte encoding of one instruction;
// Body joins them and appends the function end opcode.

// Body assembles a function body with no locals.
func Body(instrs ...[]byte) []byte {
	var out []byte
	for _, in := range instrs {
		out = append(out, in...)
	}
	return append(out, 0x0b)
}

func LocalGet(i uint32) []byte { return append([]byte{0x20}, EncodeULEB128(i)...) }

func Call(funcIdx uint32) []byte { return append([]byte{0x10}, EncodeULEB128(funcIdx)...) }

func I32Const(v int32) []byte { return append([]byte{0x41}, EncodeSLEB128(v)...) }

func I64Const(v int64) []byte { return append([]byte{0x42}, EncodeSLEB128(v)...) }

func I32Add() []byte { return []byte{0x6a} }

func I64Add() []byte { return []byte{0x7c} }

func Drop() []byte { return []byte{0x1a} }

// LoopForever spins until interrupted from outside.
func LoopForever() []byte {
	return []byte{0x03, 0x40, 0x0c, 0x00, 0x0b}
}

// I32Load reads an i32 at the address on the stack.
func I32Load() []byte { return []byte{0x28, 0x02, 0x00} }

// I32Store writes the i32 on the stack to the address beneath it.
func I32Store() []byte { return []byte{0x36, 0x02, 0x00} }

// MemoryGrow grows memory by the page count on the stack.
func MemoryGrow() []byte { return []byte{0x40, 0x00} }
