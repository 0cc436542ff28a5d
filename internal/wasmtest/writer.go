package wasmtest

import "bytes"

// writer accumulates wasm binary encoding.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) bytes() []byte { return w.buf.Bytes() }

func (w *writer) byte(b byte) { w.buf.WriteByte(b) }

func (w *writer) raw(data []byte) { w.buf.Write(data) }

// u32 writes an unsigned LEB128 value.
func (w *writer) u32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			break
		}
	}
}

// s32 writes a signed LEB128 value.
func (w *writer) s32(v int32) {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		w.buf.WriteByte(b)
	}
}

func (w *writer) name(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}

// vec writes a length-prefixed byte vector.
func (w *writer) vec(data []byte) {
	w.u32(uint32(len(data)))
	w.buf.Write(data)
}

// section writes id followed by the size-prefixed body.
func (w *writer) section(id byte, body *writer) {
	w.byte(id)
	w.vec(body.bytes())
}
