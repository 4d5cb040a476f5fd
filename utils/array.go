package utils

import (
	"unsafe"
)

// BytesToT32 reinterprets a little-endian byte buffer (triton raw output, gocv 32-bit
// Mat data) as a slice of T without copying.
func BytesToT32[T int32 | float32](arr []byte) []T {
	if len(arr) < 4 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&arr[0])), len(arr)/4)
}

// BytesToT64 is BytesToT32 for 64-bit element types, e.g. CV_64F Mat data.
func BytesToT64[T int64 | float64](arr []byte) []T {
	if len(arr) < 8 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&arr[0])), len(arr)/8)
}
