package merge

import (
	"math"

	"github.com/protoverse/protomerge/pkg/wrappererr"
)

// Value conversion between a version's native type and the unified type.
// Widening is total; narrowing is range-checked and fails with a coded error
// instead of truncating.

// WidenSigned32 sign-extends a signed 32-bit value into the unified 64-bit
// type. Negative values stay negative.
func WidenSigned32(v int32) int64 { return int64(v) }

// WidenUnsigned32 zero-extends an unsigned 32-bit value into the unified
// 64-bit type. Bit patterns above the signed-32 maximum stay large positive
// values, never negative.
func WidenUnsigned32(v uint32) int64 { return int64(v) }

// WidenFloat converts float to double. Exact: every float32 is representable
// as a float64.
func WidenFloat(v float32) float64 { return float64(v) }

// NarrowToSigned32 converts a unified 64-bit value back to a signed 32-bit
// version.
func NarrowToSigned32(field string, v int64) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, wrappererr.NewTypeRangeError(field, v, "int32")
	}
	return int32(v), nil
}

// NarrowToUnsigned32 converts a unified 64-bit value back to an unsigned
// 32-bit version.
func NarrowToUnsigned32(field string, v int64) (uint32, error) {
	if v < 0 || v > math.MaxUint32 {
		return 0, wrappererr.NewTypeRangeError(field, v, "uint32")
	}
	return uint32(v), nil
}

// NarrowToFloat converts double back to float, rejecting values outside the
// finite float range. Precision loss within range is accepted; range loss is
// not.
func NarrowToFloat(field string, v float64) (float32, error) {
	if v > math.MaxFloat32 || v < -math.MaxFloat32 {
		return 0, wrappererr.New(wrappererr.CodeConvOutOfRange,
			"value %g of field %s does not fit float", v, field)
	}
	return float32(v), nil
}
