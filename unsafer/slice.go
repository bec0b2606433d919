package unsafer

import (
	"reflect"
	"unsafe"
)

// SliceBytesToUint32 interprets a byte slice as a slice of uint32. SPIR-V
// bytecode is a stream of 32-bit words but is read from disk as bytes; Vulkan
// shader module creation wants the word view.
//
// Note that the returned slice points to the same underlying data in memory. It
// does not make a copy.
func SliceBytesToUint32(input []byte) []uint32 {
	header := *(*reflect.SliceHeader)(unsafe.Pointer(&input))
	header.Len = len(input) / 4
	header.Cap = header.Len
	wordSlice := *(*[]uint32)(unsafe.Pointer(&header))
	return wordSlice
}
