// Package toolchain drives the external EOSIO tools a merge depends on:
// the C++ compiler and linker that build a harness, and the converters
// between binary and text modules.
//
// Every launch goes through a circuit breaker that opens after repeated
// launch failures (missing binary, permission denied). A tool that runs
// and exits non-zero is reported as a tool_failure for that call only.
//
// Disassembly results are cached by the SHA-256 of the input binary, and
// concurrent conversions of the same input share one tool invocation.
package toolchain
