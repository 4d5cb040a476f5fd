package utils

// RefPointer returns a pointer to a copy of val, used for optional arguments.
func RefPointer[T string | bool | int | int8 | int16 | int32 | int64 | float32 | float64](val T) *T {
	return &val
}

// DerefPointer returns *val, or fallback when val is nil.
func DerefPointer[T string | bool | int | int8 | int16 | int32 | int64 | float32 | float64](val *T, fallback T) T {
	if val == nil {
		return fallback
	}
	return *val
}
