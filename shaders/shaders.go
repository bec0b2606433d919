// Package shaders hands out the precompiled SPIR-V blobs produced by the
// offline shader pipeline. Run `go generate` after editing the GLSL sources in
// order to compile them again.
package shaders

import (
	"fmt"
	"os"
	"path/filepath"
)

//go:generate ./compile.sh

// Load reads the vertex and fragment shader bytecode from dir. The blobs are
// opaque to the rest of the program; both modules use "main" as their entry
// point.
func Load(dir string) (vert []byte, frag []byte, err error) {
	vert, err = os.ReadFile(filepath.Join(dir, "simple.vert.spv"))
	if err != nil {
		return nil, nil, fmt.Errorf("reading vertex shader bytecode: %w", err)
	}

	frag, err = os.ReadFile(filepath.Join(dir, "simple.frag.spv"))
	if err != nil {
		return nil, nil, fmt.Errorf("reading fragment shader bytecode: %w", err)
	}

	return vert, frag, nil
}
