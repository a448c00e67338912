package classfile

import "math"

func int32bitsToFloat32(bits int32) float32 {
	return math.Float32frombits(uint32(bits))
}

func float32bitsToInt32(f float32) int32 {
	return int32(math.Float32bits(f))
}

func int64bitsToFloat64(bits int64) float64 {
	return math.Float64frombits(uint64(bits))
}

func float64bitsToInt64(f float64) int64 {
	return int64(math.Float64bits(f))
}
