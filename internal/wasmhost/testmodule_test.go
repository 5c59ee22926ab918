package wasmhost

// Hand-assembled minimal WebAssembly modules used to exercise Engine
// without a Go-toolchain-compiled .wasm fixture (spec.md §4.4 defines the
// module contract precisely enough to hand-encode it).

// uleb128 encodes v as unsigned LEB128, sufficient for every length this
// file needs (all well under 2^32).
func uleb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func wasmSection(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, uleb128(uint32(len(body)))...)
	out = append(out, body...)
	return out
}

func wasmName(s string) []byte {
	out := uleb128(uint32(len(s)))
	return append(out, s...)
}

// wasmFuncBody wraps raw instruction bytes (no locals) into a code-section
// entry, appending the trailing `end` opcode.
func wasmFuncBody(instrs ...byte) []byte {
	body := append([]byte{0x00}, instrs...) // 0x00 local-decl count
	body = append(body, 0x0B)               // end
	out := uleb128(uint32(len(body)))
	return append(out, body...)
}

const (
	wasmExportKindFunc   = 0x00
	wasmExportKindMemory = 0x02
)

func wasmExportEntry(name string, kind byte, index uint32) []byte {
	out := wasmName(name)
	out = append(out, kind)
	out = append(out, uleb128(index)...)
	return out
}

// copyDigitalInputsToOutputs is `step`'s body: outputs.digital =
// inputs.digital, i.e. mem[OffsetDigitalOutputs] = load(mem[OffsetDigitalInputs]).
var copyDigitalInputsToOutputs = []byte{
	0x41, OffsetDigitalOutputs, // i32.const <addr>
	0x41, OffsetDigitalInputs, // i32.const <addr>
	0x28, 0x02, 0x00, // i32.load align=2 offset=0
	0x36, 0x02, 0x00, // i32.store align=2 offset=0
}

// goodWasmModule exports memory, step, init and fault. step copies the
// digital-inputs word to digital-outputs so Step() is observably correct;
// init/fault are no-ops that exist purely so the export-presence checks
// have something to find.
func goodWasmModule() []byte {
	typeSec := wasmSection(1, append([]byte{0x01}, 0x60, 0x00, 0x00))
	funcSec := wasmSection(3, []byte{0x03, 0x00, 0x00, 0x00}) // 3 funcs, all type 0
	memSec := wasmSection(5, []byte{0x01, 0x00, 0x01})        // 1 memory, min=1 page, no max

	exportBody := []byte{0x04} // 4 exports
	exportBody = append(exportBody, wasmExportEntry("memory", wasmExportKindMemory, 0)...)
	exportBody = append(exportBody, wasmExportEntry("step", wasmExportKindFunc, 0)...)
	exportBody = append(exportBody, wasmExportEntry("init", wasmExportKindFunc, 1)...)
	exportBody = append(exportBody, wasmExportEntry("fault", wasmExportKindFunc, 2)...)
	exportSec := wasmSection(7, exportBody)

	codeBody := []byte{0x03} // 3 function bodies
	codeBody = append(codeBody, wasmFuncBody(copyDigitalInputsToOutputs...)...)
	codeBody = append(codeBody, wasmFuncBody()...) // init: empty
	codeBody = append(codeBody, wasmFuncBody()...) // fault: empty
	codeSec := wasmSection(10, codeBody)

	return assembleModule(typeSec, funcSec, memSec, exportSec, codeSec)
}

// noStepWasmModule exports memory, init and fault but no step, used to
// verify ReloadModule rejects a replacement missing the step export
// without disturbing the currently-active module.
func noStepWasmModule() []byte {
	typeSec := wasmSection(1, append([]byte{0x01}, 0x60, 0x00, 0x00))
	funcSec := wasmSection(3, []byte{0x02, 0x00, 0x00}) // 2 funcs, all type 0
	memSec := wasmSection(5, []byte{0x01, 0x00, 0x01})

	exportBody := []byte{0x03} // 3 exports
	exportBody = append(exportBody, wasmExportEntry("memory", wasmExportKindMemory, 0)...)
	exportBody = append(exportBody, wasmExportEntry("init", wasmExportKindFunc, 0)...)
	exportBody = append(exportBody, wasmExportEntry("fault", wasmExportKindFunc, 1)...)
	exportSec := wasmSection(7, exportBody)

	codeBody := []byte{0x02} // 2 function bodies
	codeBody = append(codeBody, wasmFuncBody()...) // init: empty
	codeBody = append(codeBody, wasmFuncBody()...) // fault: empty
	codeSec := wasmSection(10, codeBody)

	return assembleModule(typeSec, funcSec, memSec, exportSec, codeSec)
}

func assembleModule(sections ...[]byte) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00} // magic + version
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}
