package runtime

import (
	"strings"

	"github.com/mbasic/microbasic/berrors"
	"github.com/mbasic/microbasic/value"
)

// array is a dense, row-major store for one DIMensioned (or implicitly
// allocated) variable.
type array struct {
	dims     []int
	data     []value.Value
	isString bool
}

func newArray(dims []int, isString bool) *array {
	size := 1
	for _, d := range dims {
		size *= d
	}
	data := make([]value.Value, size)
	if isString {
		for i := range data {
			data[i] = value.Text("")
		}
	}
	return &array{dims: dims, data: data, isString: isString}
}

func (a *array) offset(idx []int) (int, error) {
	off := 0
	for i, d := range a.dims {
		if idx[i] < 0 || idx[i] >= d {
			return 0, berrors.IndexOutOfRange("")
		}
		off = off*d + idx[i]
	}
	return off, nil
}

// vars holds every scalar and array variable in the running program.
// Name typing is sigil-based: a trailing "$" means string, anything
// else means numeric — there is no separate declaration step for
// scalars, only for arrays via DIM.
type vars struct {
	scalars map[string]value.Value
	arrays  map[string]*array
}

func newVars() *vars {
	return &vars{scalars: map[string]value.Value{}, arrays: map[string]*array{}}
}

func isStringName(name string) bool {
	return strings.HasSuffix(name, "$")
}

func zeroValue(name string) value.Value {
	if isStringName(name) {
		return value.Text("")
	}
	return value.Number(0)
}

// Get returns a scalar's value, defaulting to 0 or "" if never assigned.
func (v *vars) Get(name string) value.Value {
	if val, ok := v.scalars[name]; ok {
		return val
	}
	return zeroValue(name)
}

// Set assigns a scalar.
func (v *vars) Set(name string, val value.Value) {
	v.scalars[name] = val
}

// Dim explicitly declares an array's shape. Redimensioning — whether
// the array was already DIMed or only implicitly allocated by a prior
// reference — is an error.
func (v *vars) Dim(name string, dims []int) error {
	if _, exists := v.arrays[name]; exists {
		return berrors.ArrayAlreadyDimensioned(name)
	}
	v.arrays[name] = newArray(dims, isStringName(name))
	return nil
}

// ensureArray returns the named array, implicitly allocating an
// 11-element-per-dimension array (indices 0..10) on first reference if
// it was never DIMed.
func (v *vars) ensureArray(name string, ndims int) (*array, error) {
	a, ok := v.arrays[name]
	if !ok {
		dims := make([]int, ndims)
		for i := range dims {
			dims[i] = 11
		}
		a = newArray(dims, isStringName(name))
		v.arrays[name] = a
		return a, nil
	}
	if len(a.dims) != ndims {
		return nil, berrors.ArrayDimensionMismatch(name, len(a.dims))
	}
	return a, nil
}

// GetIndexed reads one array element, auto-allocating the array if
// this is its first reference.
func (v *vars) GetIndexed(name string, idx []int) (value.Value, error) {
	a, err := v.ensureArray(name, len(idx))
	if err != nil {
		return value.Value{}, err
	}
	off, err := a.offset(idx)
	if err != nil {
		return value.Value{}, berrors.IndexOutOfRange(name)
	}
	return a.data[off], nil
}

// SetIndexed writes one array element, auto-allocating as GetIndexed does.
func (v *vars) SetIndexed(name string, idx []int, val value.Value) error {
	a, err := v.ensureArray(name, len(idx))
	if err != nil {
		return err
	}
	off, err := a.offset(idx)
	if err != nil {
		return berrors.IndexOutOfRange(name)
	}
	a.data[off] = val
	return nil
}

// Clear resets every scalar and array, as CLEAR does.
func (v *vars) Clear() {
	v.scalars = map[string]value.Value{}
	v.arrays = map[string]*array{}
}
