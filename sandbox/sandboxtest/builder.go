// Package sandboxtest assembles small WebAssembly modules byte by byte so the
// sandbox and host can be tested against real guests without a toolchain.
//
// Every module built here has one memory and an optional bump allocator. Entry
// points either return a fixed payload placed in a data segment, trap, spin
// forever, or log their request through schnuffel.log before returning.
package sandboxtest

import (
	"github.com/miampf/schnuffel/contract"
)

// Value types.
const (
	I32 byte = 0x7f
	I64 byte = 0x7e
)

const (
	heapBase   = 65536
	dataBase   = 1024
	pageSize   = 65536
	defaultMem = 2
)

type funcType struct {
	params, results []byte
}

type importFunc struct {
	module, name string
	typ          int
}

type function struct {
	export string
	typ    int
	body   []byte
}

type segment struct {
	offset uint32
	data   []byte
}

// Builder assembles a module. Methods return the receiver for chaining.
type Builder struct {
	types     []funcType
	imports   []importFunc
	funcs     []function
	segments  []segment
	pages     uint32
	exportMem bool
	heap      bool
	next      uint32
	logImport int
}

// New returns a builder for a module with a two-page exported memory.
func New() *Builder {
	return &Builder{
		pages:     defaultMem,
		exportMem: true,
		next:      dataBase,
		logImport: -1,
	}
}

// Memory sets the memory size in pages.
func (b *Builder) Memory(pages uint32) *Builder {
	b.pages = pages
	return b
}

// WithoutMemoryExport keeps the memory but does not export it.
func (b *Builder) WithoutMemoryExport() *Builder {
	b.exportMem = false
	return b
}

// Alloc adds a bump allocator exported as alloc(size) -> ptr. Allocations start
// at the second page and are never freed.
func (b *Builder) Alloc() *Builder {
	b.heap = true
	return b.Func(contract.ExportAlloc, []byte{I32}, []byte{I32}, []byte{
		0x23, 0x00, // global.get heap
		0x23, 0x00, // global.get heap
		0x20, 0x00, // local.get size
		0x6a,       // i32.add
		0x24, 0x00, // global.set heap
		0x0b,
	})
}

// Dealloc adds a no-op dealloc(ptr, len).
func (b *Builder) Dealloc() *Builder {
	return b.Func(contract.ExportDealloc, []byte{I32, I32}, nil, []byte{0x0b})
}

// Returning adds an entry point that ignores its request and returns payload.
func (b *Builder) Returning(name string, payload []byte) *Builder {
	ptr := b.place(payload)
	return b.ReturningPointer(name, ptr, uint32(len(payload)))
}

// ReturningPointer adds an entry point returning the packed (ptr, length)
// verbatim, whether or not it lies inside memory.
func (b *Builder) ReturningPointer(name string, ptr, length uint32) *Builder {
	body := append([]byte{0x42}, sleb(int64(uint64(ptr)<<32|uint64(length)))...)
	body = append(body, 0x0b)
	return b.Func(name, entryParams(), []byte{I64}, body)
}

// Trapping adds an entry point that executes unreachable.
func (b *Builder) Trapping(name string) *Builder {
	return b.Func(name, entryParams(), []byte{I64}, []byte{0x00, 0x0b})
}

// Spinning adds an entry point that loops forever.
func (b *Builder) Spinning(name string) *Builder {
	return b.Func(name, entryParams(), []byte{I64}, []byte{
		0x03, 0x40, // loop
		0x0c, 0x00, // br 0
		0x0b,       // end
		0x42, 0x00, // i64.const 0
		0x0b,
	})
}

// Logging adds an entry point that passes its raw request to schnuffel.log at
// level and then returns payload.
func (b *Builder) Logging(name string, level int32, payload []byte) *Builder {
	idx := b.importLog()
	ptr := b.place(payload)

	body := append([]byte{0x41}, sleb(int64(level))...)
	body = append(body,
		0x20, 0x00,      // local.get ptr
		0x20, 0x01,      // local.get len
		0x10, byte(idx), // call schnuffel.log
		0x42,
	)
	body = append(body, sleb(int64(uint64(ptr)<<32|uint64(len(payload))))...)
	body = append(body, 0x0b)
	return b.Func(name, entryParams(), []byte{I64}, body)
}

// Import adds a function import. Imports must be added before they are
// referenced by index.
func (b *Builder) Import(module, name string, params, results []byte) *Builder {
	b.imports = append(b.imports, importFunc{module: module, name: name, typ: b.typeIndex(params, results)})
	return b
}

// Func adds a function with the given body (instructions only, ending in
// 0x0b). An empty name leaves it unexported.
func (b *Builder) Func(name string, params, results, body []byte) *Builder {
	b.funcs = append(b.funcs, function{export: name, typ: b.typeIndex(params, results), body: body})
	return b
}

func (b *Builder) importLog() int {
	if b.logImport < 0 {
		b.logImport = len(b.imports)
		b.Import(contract.HostModule, contract.HostLog, []byte{I32, I32, I32}, nil)
	}
	return b.logImport
}

// place copies data into a data segment and returns its address.
func (b *Builder) place(data []byte) uint32 {
	ptr := b.next
	b.segments = append(b.segments, segment{offset: ptr, data: append([]byte(nil), data...)})
	b.next += (uint32(len(data)) + 7) &^ 7
	return ptr
}

func (b *Builder) typeIndex(params, results []byte) int {
	for i, t := range b.types {
		if string(t.params) == string(params) && string(t.results) == string(results) {
			return i
		}
	}
	b.types = append(b.types, funcType{params: params, results: results})
	return len(b.types) - 1
}

func entryParams() []byte {
	return []byte{I32, I32}
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	var types []byte
	types = append(types, uleb(uint64(len(b.types)))...)
	for _, t := range b.types {
		types = append(types, 0x60)
		types = append(types, vec(t.params)...)
		types = append(types, vec(t.results)...)
	}
	out = appendSection(out, 1, types)

	if len(b.imports) > 0 {
		var imports []byte
		imports = append(imports, uleb(uint64(len(b.imports)))...)
		for _, imp := range b.imports {
			imports = append(imports, name(imp.module)...)
			imports = append(imports, name(imp.name)...)
			imports = append(imports, 0x00)
			imports = append(imports, uleb(uint64(imp.typ))...)
		}
		out = appendSection(out, 2, imports)
	}

	var funcs []byte
	funcs = append(funcs, uleb(uint64(len(b.funcs)))...)
	for _, f := range b.funcs {
		funcs = append(funcs, uleb(uint64(f.typ))...)
	}
	out = appendSection(out, 3, funcs)

	mem := []byte{0x01, 0x00}
	mem = append(mem, uleb(uint64(b.pages))...)
	out = appendSection(out, 5, mem)

	if b.heap {
		global := []byte{0x01, I32, 0x01, 0x41}
		global = append(global, sleb(heapBase)...)
		global = append(global, 0x0b)
		out = appendSection(out, 6, global)
	}

	var exports [][]byte
	if b.exportMem {
		e := append(name(contract.ExportMemory), 0x02, 0x00)
		exports = append(exports, e)
	}
	for i, f := range b.funcs {
		if f.export == "" {
			continue
		}
		e := append(name(f.export), 0x00)
		e = append(e, uleb(uint64(len(b.imports)+i))...)
		exports = append(exports, e)
	}
	exportSec := uleb(uint64(len(exports)))
	for _, e := range exports {
		exportSec = append(exportSec, e...)
	}
	out = appendSection(out, 7, exportSec)

	code := uleb(uint64(len(b.funcs)))
	for _, f := range b.funcs {
		body := append([]byte{0x00}, f.body...)
		code = append(code, uleb(uint64(len(body)))...)
		code = append(code, body...)
	}
	out = appendSection(out, 10, code)

	if len(b.segments) > 0 {
		data := uleb(uint64(len(b.segments)))
		for _, s := range b.segments {
			data = append(data, 0x00, 0x41)
			data = append(data, sleb(int64(s.offset))...)
			data = append(data, 0x0b)
			data = append(data, vec(s.data)...)
		}
		out = appendSection(out, 11, data)
	}

	return out
}

func appendSection(out []byte, id byte, content []byte) []byte {
	out = append(out, id)
	out = append(out, uleb(uint64(len(content)))...)
	return append(out, content...)
}

func vec(b []byte) []byte {
	return append(uleb(uint64(len(b))), b...)
}

func name(s string) []byte {
	return vec([]byte(s))
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		out = append(out, c)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if !done {
			c |= 0x80
		}
		out = append(out, c)
		if done {
			return out
		}
	}
}
