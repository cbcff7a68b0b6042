package specmerge

import (
	"context"

	"github.com/wippyai/specmerge/merge"
)

// Disassembler converts a module binary at path to its text form
type Disassembler interface {
	Disassemble(ctx context.Context, path string) (string, error)
}

// Assembler converts a text module to a binary
type Assembler interface {
	Assemble(ctx context.Context, wast, out string) error
}

// Merge disassembles both binaries and merges them
func Merge(ctx context.Context, d Disassembler, harnessPath, testPath string) (*merge.Result, error) {
	harness, err := d.Disassemble(ctx, harnessPath)
	if err != nil {
		return nil, err
	}
	test, err := d.Disassemble(ctx, testPath)
	if err != nil {
		return nil, err
	}
	return merge.Merge(harness, test)
}
