// Package merge splices a test module into a harness module.
//
// The harness (module A) is compiled from a generated driver and owns five
// ABI stub functions, an "apply" entrypoint with signature
// (param i64 i64 i64) and optionally a "check" helper with signature
// (param i32 i32). Its remaining functions are placeholders for the test
// functions. The test module (module B) exports the functions under test.
//
// Merge renumbers B behind A's ABI stubs and types, pairs each A placeholder
// with the B export at the same position, rewrites the calls inside apply to
// the paired B functions, moves apply (and check) to the end of the function
// index space and serializes the result:
//
//	res, err := merge.Merge(harnessText, testText)
//	if err != nil {
//		return err
//	}
//	os.WriteFile("merged.wast", []byte(res.Text), 0o644)
//
// The output keeps B's table and A's memory; see Compose for the full
// section order.
package merge
