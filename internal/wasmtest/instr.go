package wasmtest

// Instructions return their encoding so bodies can be assembled with Code.

func Code(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func I32Const(v int32) []byte {
	var w writer
	w.byte(0x41)
	w.s32(v)
	return w.bytes()
}

// U32 pushes v reinterpreted as i32.
func U32(v uint32) []byte { return I32Const(int32(v)) }

func index(op byte, idx uint32) []byte {
	var w writer
	w.byte(op)
	w.u32(idx)
	return w.bytes()
}

func Call(fn uint32) []byte        { return index(0x10, fn) }
func LocalGet(i uint32) []byte     { return index(0x20, i) }
func LocalSet(i uint32) []byte     { return index(0x21, i) }
func GlobalGet(i uint32) []byte    { return index(0x23, i) }
func GlobalSet(i uint32) []byte    { return index(0x24, i) }
func Br(depth uint32) []byte       { return index(0x0c, depth) }
func BrIf(depth uint32) []byte     { return index(0x0d, depth) }
func Unreachable() []byte          { return []byte{0x00} }
func Drop() []byte                 { return []byte{0x1a} }
func Return() []byte               { return []byte{0x0f} }
func End() []byte                  { return []byte{0x0b} }
func Block() []byte                { return []byte{0x02, 0x40} }
func Loop() []byte                 { return []byte{0x03, 0x40} }
func If() []byte                   { return []byte{0x04, 0x40} }
func I32Eqz() []byte               { return []byte{0x45} }
func I32Add() []byte               { return []byte{0x6a} }
func I32And() []byte               { return []byte{0x71} }
func I32Load(offset uint32) []byte { return memarg(0x28, 2, offset) }
func I32Store(offset uint32) []byte {
	return memarg(0x36, 2, offset)
}

func memarg(op byte, align, offset uint32) []byte {
	var w writer
	w.byte(op)
	w.u32(align)
	w.u32(offset)
	return w.bytes()
}
