package image

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernlang/fern/vm"
)

// compileSnapshot compiles source and captures its image.
type compileSnapshot struct{}

func (compileSnapshot) Run(v *vm.MutatorView, source string) (*FunctionImage, error) {
	expr, err := vm.Parse(v, source)
	if err != nil {
		return nil, err
	}
	fn, err := vm.Compile(v, expr)
	if err != nil {
		return nil, err
	}
	return Snapshot(v, fn.Get())
}

// rehydrateEval loads an image into a fresh heap and evaluates it.
type rehydrateEval struct{}

func (rehydrateEval) Run(v *vm.MutatorView, img *FunctionImage) (string, error) {
	fn, err := Rehydrate(v, img)
	if err != nil {
		return "", err
	}
	thread, err := vm.AllocThread(v)
	if err != nil {
		return "", err
	}
	result, err := thread.Get().QuickEval(v, fn)
	if err != nil {
		return "", err
	}
	return vm.PrintValue(v, result), nil
}

// snapshotThenEval pushes a source program through the full pipeline:
// compile, snapshot, marshal, unmarshal, rehydrate into a different
// heap, evaluate.
func snapshotThenEval(t *testing.T, source string) string {
	t.Helper()

	img, err := vm.Mutate(vm.NewMemory(), compileSnapshot{}, source)
	require.NoError(t, err)

	data, err := Marshal(img)
	require.NoError(t, err)
	back, err := Unmarshal(data)
	require.NoError(t, err)

	out, err := vm.Mutate(vm.NewMemory(), rehydrateEval{}, back)
	require.NoError(t, err)
	return out
}

func TestImageRoundTripSimple(t *testing.T) {
	assert.Equal(t, "42", snapshotThenEval(t, "42"))
	assert.Equal(t, "7", snapshotThenEval(t, "(+ 3 4)"))
	assert.Equal(t, "(1 2 3)", snapshotThenEval(t, "'(1 2 3)"))
	assert.Equal(t, "x", snapshotThenEval(t, "'x"))
	assert.Equal(t, `"hello"`, snapshotThenEval(t, `"hello"`))
}

func TestImageRoundTripLet(t *testing.T) {
	assert.Equal(t, "12", snapshotThenEval(t, "(let ((x 3) (y 4)) (* x y))"))
}

func TestImageRoundTripNestedFunctions(t *testing.T) {
	// the lambda is a nested function literal with a nonlocal table
	out := snapshotThenEval(t,
		"(let ((make (lambda (n) (lambda (x) (+ x n))))) ((make 3) 4))")
	assert.Equal(t, "7", out)
}

func TestImageMarshalDeterministic(t *testing.T) {
	img, err := vm.Mutate(vm.NewMemory(), compileSnapshot{}, "(+ 1 2)")
	require.NoError(t, err)

	first, err := Marshal(img)
	require.NoError(t, err)
	second, err := Marshal(img)
	require.NoError(t, err)
	assert.Equal(t, first, second, "canonical CBOR must be deterministic")
}

func TestImageFileRoundTrip(t *testing.T) {
	img, err := vm.Mutate(vm.NewMemory(), compileSnapshot{}, "(- 10 4)")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "test.image")
	require.NoError(t, WriteFile(path, img))

	back, err := ReadFile(path)
	require.NoError(t, err)

	out, err := vm.Mutate(vm.NewMemory(), rehydrateEval{}, back)
	require.NoError(t, err)
	assert.Equal(t, "6", out)
}

func TestImageSnapshotShape(t *testing.T) {
	img, err := vm.Mutate(vm.NewMemory(), compileSnapshot{}, "(+ 1 2)")
	require.NoError(t, err)

	assert.Empty(t, img.Name)
	assert.Empty(t, img.Params)
	assert.NotEmpty(t, img.Code)
	assert.Empty(t, img.Nonlocals)
}

func TestImageRejectsUnknownOpcode(t *testing.T) {
	img := &FunctionImage{Code: []uint32{0xFFFFFFFF}}

	_, err := vm.Mutate(vm.NewMemory(), rehydrateEval{}, img)
	assert.Error(t, err)
}
