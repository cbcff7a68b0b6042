// Package specmerge merges an EOSIO test harness with a WebAssembly spec
// test module, producing one module in which the harness's apply
// entrypoint calls the spec test's functions.
//
// The harness is generated C++ compiled with the EOSIO toolchain. Its first
// five functions are ABI stubs, followed by one placeholder function per
// spec test export, an optional check helper, and apply. The merge drops
// the placeholders, appends the spec test's functions after the stubs, and
// moves apply (and check) behind them with every call rewired.
//
// # Architecture Overview
//
//	specmerge/           Root package with Merge over module binaries
//	├── wast/            Text module reader and section records
//	├── merge/           Index shifting, correlation, relocation, composition
//	├── toolchain/       EOSIO compiler, linker and converters
//	├── verify/          wazero validation of assembled output
//	├── spectest/        Batch driver over a directory of spec tests
//	├── errors/          Structured error types
//	└── cmd/             merge and spectests command line tools
//
// # Quick Start
//
// Merge two binaries:
//
//	tc, err := toolchain.New(toolchain.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := specmerge.Merge(ctx, tc, "harness.wasm", "test.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.ApplyIndex)
//
// Merge two text modules without any external tools:
//
//	res, err := merge.Merge(harnessText, testText)
//
// # Index Spaces
//
// Type indices of the spec test move up by the harness's highest type
// index plus one. Function indices of the spec test move up by five, the
// number of ABI stubs. The merged type and function index spaces are
// checked to be contiguous before any text is produced.
//
// # Thread Safety
//
// A merge keeps all of its state on the stack of the call, so concurrent
// merges are safe. Toolchain is safe for concurrent use.
package specmerge
