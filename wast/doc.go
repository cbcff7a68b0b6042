// Package wast reads the textual module listings produced by a binary-to-text
// converter (eosio-wasm2wast, wasm2wat) into typed section records.
//
// Records keep their original text. Numeric index references inside a record
// (declared "(;N;)" indices, "(type N)", "call N", export and element
// function targets) are addressed as Refs and can be rewritten without
// touching any other byte of the record:
//
//	mod, err := wast.Read("test", src)
//	shifted := mod.Funcs[0].Rewrite(func(ref wast.Ref) int {
//		if ref.Kind == wast.RefCall {
//			return ref.Value + 5
//		}
//		return ref.Value
//	})
//
// Record boundaries are found by paren depth over a token stream, so nested
// block/loop instructions or parens inside string literals can never be
// mistaken for a section header.
package wast
