// Package wasmtest assembles small core wasm modules for tests.
package wasmtest

import "fmt"

// ValType is a wasm value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

type funcType struct {
	params  []ValType
	results []ValType
}

type importFunc struct {
	module, name string
	typ          funcType
}

type function struct {
	typ    funcType
	locals []ValType
	body   []byte
	export string
}

type global struct {
	typ     ValType
	init    int32
	mutable bool
}

type segment struct {
	data   []byte
	offset uint32
}

// Module builds a module with at most one memory.
type Module struct {
	imports   []importFunc
	funcs     []function
	globals   []global
	data      []segment
	memPages  uint32
	memExport string
	hasMemory bool
}

func New() *Module { return &Module{} }

// Import declares an imported function and returns its index. Imports must
// precede every Func.
func (m *Module) Import(module, name string, params, results []ValType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmtest: imports must be declared before functions")
	}
	m.imports = append(m.imports, importFunc{module: module, name: name, typ: funcType{params, results}})
	return uint32(len(m.imports) - 1)
}

// Func defines a function and returns its index. An empty export name
// keeps it private.
func (m *Module) Func(export string, params, results, locals []ValType, body []byte) uint32 {
	m.funcs = append(m.funcs, function{
		typ:    funcType{params, results},
		locals: locals,
		body:   body,
		export: export,
	})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Memory declares the module memory, exported under name when non-empty.
func (m *Module) Memory(pages uint32, name string) *Module {
	m.hasMemory = true
	m.memPages = pages
	m.memExport = name
	return m
}

// Global declares a mutable i32 global and returns its index.
func (m *Module) Global(init int32) uint32 {
	m.globals = append(m.globals, global{typ: I32, init: init, mutable: true})
	return uint32(len(m.globals) - 1)
}

// Data places bytes at offset in memory 0.
func (m *Module) Data(offset uint32, data []byte) *Module {
	m.data = append(m.data, segment{offset: offset, data: data})
	return m
}

// BumpAllocator exports cabi_realloc handing out 8-aligned memory from
// base upwards. Freed memory is never reused.
func (m *Module) BumpAllocator(base int32) uint32 {
	heap := m.Global(base)
	// cabi_realloc(old_ptr, old_size, align, new_size) -> ptr
	body := Code(
		GlobalGet(heap),
		GlobalGet(heap),
		LocalGet(3), I32Const(7), I32Add(), I32Const(-8), I32And(),
		I32Add(),
		GlobalSet(heap),
	)
	return m.Func("cabi_realloc", []ValType{I32, I32, I32, I32}, []ValType{I32}, nil, body)
}

func (t funcType) encode(w *writer) {
	w.byte(0x60)
	w.u32(uint32(len(t.params)))
	for _, p := range t.params {
		w.byte(byte(p))
	}
	w.u32(uint32(len(t.results)))
	for _, r := range t.results {
		w.byte(byte(r))
	}
}

func constExpr(w *writer, v int32) {
	w.raw(I32Const(v))
	w.raw(End())
}

// Bytes encodes the module. Each function gets its own type entry.
func (m *Module) Bytes() []byte {
	var out writer
	out.raw([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	var types writer
	types.u32(uint32(len(m.imports) + len(m.funcs)))
	for _, imp := range m.imports {
		imp.typ.encode(&types)
	}
	for _, fn := range m.funcs {
		fn.typ.encode(&types)
	}
	out.section(1, &types)

	if len(m.imports) > 0 {
		var imports writer
		imports.u32(uint32(len(m.imports)))
		for i, imp := range m.imports {
			imports.name(imp.module)
			imports.name(imp.name)
			imports.byte(0x00)
			imports.u32(uint32(i))
		}
		out.section(2, &imports)
	}

	if len(m.funcs) > 0 {
		var funcs writer
		funcs.u32(uint32(len(m.funcs)))
		for i := range m.funcs {
			funcs.u32(uint32(len(m.imports) + i))
		}
		out.section(3, &funcs)
	}

	if m.hasMemory {
		var mem writer
		mem.u32(1)
		mem.byte(0x00)
		mem.u32(m.memPages)
		out.section(5, &mem)
	}

	if len(m.globals) > 0 {
		var globals writer
		globals.u32(uint32(len(m.globals)))
		for _, g := range m.globals {
			globals.byte(byte(g.typ))
			if g.mutable {
				globals.byte(0x01)
			} else {
				globals.byte(0x00)
			}
			constExpr(&globals, g.init)
		}
		out.section(6, &globals)
	}

	var exports writer
	var n uint32
	if m.hasMemory && m.memExport != "" {
		n++
	}
	for _, fn := range m.funcs {
		if fn.export != "" {
			n++
		}
	}
	exports.u32(n)
	if m.hasMemory && m.memExport != "" {
		exports.name(m.memExport)
		exports.byte(0x02)
		exports.u32(0)
	}
	for i, fn := range m.funcs {
		if fn.export != "" {
			exports.name(fn.export)
			exports.byte(0x00)
			exports.u32(uint32(len(m.imports) + i))
		}
	}
	out.section(7, &exports)

	if len(m.funcs) > 0 {
		var code writer
		code.u32(uint32(len(m.funcs)))
		for _, fn := range m.funcs {
			var body writer
			body.u32(uint32(len(fn.locals)))
			for _, l := range fn.locals {
				body.u32(1)
				body.byte(byte(l))
			}
			body.raw(fn.body)
			body.raw(End())
			code.vec(body.bytes())
		}
		out.section(10, &code)
	}

	if len(m.data) > 0 {
		var data writer
		data.u32(uint32(len(m.data)))
		for _, seg := range m.data {
			data.u32(0)
			constExpr(&data, int32(seg.offset))
			data.vec(seg.data)
		}
		out.section(11, &data)
	}

	return out.bytes()
}

// String summarizes the module for test failure messages.
func (m *Module) String() string {
	return fmt.Sprintf("module(imports=%d funcs=%d globals=%d data=%d)", len(m.imports), len(m.funcs), len(m.globals), len(m.data))
}
