package component

import (
	"fmt"

	"github.com/mfkiwl/blockstream/errors"
)

// DType is a semantic element type with a fixed byte width. Streams carry
// whole elements of a single DType; byte counts convert to element counts
// by integer division on Size.
type DType struct {
	name string
	size int
}

// dtypeSizes maps canonical type names to their byte widths.
var dtypeSizes = map[string]int{
	"int8":            1,
	"int16":           2,
	"int32":           4,
	"int64":           8,
	"uint8":           1,
	"uint16":          2,
	"uint32":          4,
	"uint64":          8,
	"float32":         4,
	"float64":         8,
	"complex_float32": 8,
	"complex_float64": 16,
}

// ParseDType resolves a type name to a DType. Returns ErrUnknownDType for
// names outside the supported set.
func ParseDType(name string) (DType, error) {
	size, ok := dtypeSizes[name]
	if !ok {
		return DType{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownDType, name),
			"DType", "ParseDType", "name lookup")
	}
	return DType{name: name, size: size}, nil
}

// MustDType is ParseDType for statically known names; panics on failure.
// Intended for tests and default configurations.
func MustDType(name string) DType {
	dt, err := ParseDType(name)
	if err != nil {
		panic(err)
	}
	return dt
}

// Name returns the canonical type name.
func (d DType) Name() string { return d.name }

// Size returns the element byte width.
func (d DType) Size() int { return d.size }

// IsComplex reports whether the type carries interleaved real/imaginary parts.
func (d DType) IsComplex() bool {
	return d.name == "complex_float32" || d.name == "complex_float64"
}

// IsZero reports whether the DType is the unconfigured zero value.
func (d DType) IsZero() bool { return d.size == 0 }

// String implements fmt.Stringer.
func (d DType) String() string { return d.name }
