package workload

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microbench/internal/kernel"
	"microbench/internal/matrix"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"branch", "cache", "containers", "dispatch", "errors", "ilp", "inlining"}, Names())
	assert.Len(t, All(), 7)

	_, err := Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownSuite)

	assert.Error(t, Register(Suite{Name: "branch", Build: buildBranch}))
	assert.Error(t, Register(Suite{Name: "empty"}))
}

func TestEverySuiteIsFullyBound(t *testing.T) {
	for _, s := range All() {
		t.Run(s.Name, func(t *testing.T) {
			m, err := Build(s.Name, DefaultSeed)
			require.NoError(t, err)
			require.NoError(t, m.Validate())
			assert.Equal(t, m.Size(), m.Bound())
			assert.NotEmpty(t, s.Description)
		})
	}
}

func TestContainersShape(t *testing.T) {
	m, err := Build("containers", DefaultSeed)
	require.NoError(t, err)
	assert.Equal(t, 4*3*3*5, m.Size())

	var first []string
	for c := range m.Cells() {
		first = c.Values()
		break
	}
	assert.Equal(t, []string{"Insert", "Small", "8", "Growable"}, first)
}

// runOnce executes one call of the cell's kernel outside the engine.
func runOnce(t *testing.T, m *matrix.Matrix, values ...string) uint64 {
	t.Helper()
	cell, err := m.Cell(values...)
	require.NoError(t, err)
	factory, err := m.Resolve(cell)
	require.NoError(t, err)
	k, err := factory()
	require.NoError(t, err)
	if k.Setup != nil {
		require.NoError(t, k.Setup())
	}
	if k.Teardown != nil {
		defer k.Teardown()
	}
	if k.Reset != nil {
		k.Reset()
	}
	v, err := k.Run()
	require.NoError(t, err)
	return v
}

func TestContainerKernels(t *testing.T) {
	m, err := Build("containers", DefaultSeed)
	require.NoError(t, err)

	for _, kind := range BackendKinds {
		assert.Equal(t, uint64(64), runOnce(t, m, OpInsert, "Point", "64", kind), kind)
		assert.Equal(t, uint64(1024), runOnce(t, m, OpClearRefill, "Large", "1024", kind), kind)
		assert.Equal(t, uint64(8), runOnce(t, m, OpCopy, "Small", "8", kind), kind)
	}

	// Every backend iterates the same seeded data.
	want := runOnce(t, m, OpIterate, "Small", "1024", Growable)
	assert.NotZero(t, want)
	for _, kind := range BackendKinds[1:] {
		assert.Equal(t, want, runOnce(t, m, OpIterate, "Small", "1024", kind), kind)
	}
}

func TestSeedControlsData(t *testing.T) {
	a, err := Build("containers", 1)
	require.NoError(t, err)
	b, err := Build("containers", 1)
	require.NoError(t, err)
	c, err := Build("containers", 2)
	require.NoError(t, err)

	cell := []string{OpIterate, "Point", "64", Linked}
	assert.Equal(t, runOnce(t, a, cell...), runOnce(t, b, cell...))
	assert.NotEqual(t, runOnce(t, a, cell...), runOnce(t, c, cell...))
}

func TestBackends(t *testing.T) {
	for _, kind := range BackendKinds {
		t.Run(kind, func(t *testing.T) {
			b, err := NewBackend[Small](kind, 40)
			require.NoError(t, err)

			for i := range 40 {
				b.Push(Small(i))
			}
			assert.Equal(t, 40, b.Len())

			var seen []Small
			b.Iterate(func(v Small) { seen = append(seen, v) })
			require.Len(t, seen, 40)
			assert.Equal(t, Small(0), seen[0])
			assert.Equal(t, Small(39), seen[39])

			cp := b.Copy()
			b.Clear()
			assert.Zero(t, b.Len())
			assert.Equal(t, 40, cp.Len())

			b.Push(7)
			var after []Small
			cp.Iterate(func(v Small) { after = append(after, v) })
			assert.Equal(t, seen, after)
		})
	}

	_, err := NewBackend[Small]("Deque", 1)
	assert.Error(t, err)
}

func TestFixedBackendPanicsWhenFull(t *testing.T) {
	b, err := NewBackend[Point](Fixed, 1)
	require.NoError(t, err)
	b.Push(Point{})
	assert.Panics(t, func() { b.Push(Point{}) })
}

func TestBranchlessMatchesBranchy(t *testing.T) {
	for _, threshold := range []int{100, 195} {
		data := uniformInts(newRand(3, 1), 1024, 1, 100)
		branchy := slices.Clone(data)
		branchless := slices.Clone(data)

		assert.Equal(t, swapBranchy(branchy, threshold), swapBranchless(branchless, threshold))
		assert.Equal(t, branchy, branchless)
	}
}

func TestTraversalsAgree(t *testing.T) {
	data := randomWords(newRand(1, 2), 1000)
	order := make([]int32, len(data))
	for i := range order {
		order[len(order)-1-i] = int32(i)
	}
	want := sumSequential(data)
	assert.Equal(t, want, sumStrided(data, cacheStride))
	assert.Equal(t, want, sumIndexed(data, order))
}

func TestUnrolledChainsDifferOnlyInShape(t *testing.T) {
	data := randomWords(newRand(1, 3), ilpElements)
	assert.NotZero(t, mixDependent(data))
	assert.NotZero(t, mixUnrolled4(data))
	assert.NotZero(t, mixUnrolled8(data))

	var want uint64
	for _, v := range data {
		want += v * mixPrime
	}
	assert.Equal(t, want, mixIndependent(data))
}

func TestErrorMechanismsCountTheSameFailures(t *testing.T) {
	m, err := Build("errors", DefaultSeed)
	require.NoError(t, err)

	want := runOnce(t, m, "returncode")
	assert.NotZero(t, want)
	assert.Equal(t, want, runOnce(t, m, "panicrecover"))
	assert.Equal(t, want, runOnce(t, m, "defer"))
}

func TestDispatchAndInliningAgree(t *testing.T) {
	m, err := Build("dispatch", DefaultSeed)
	require.NoError(t, err)
	want := runOnce(t, m, "direct")
	assert.Equal(t, want, runOnce(t, m, "interface"))
	assert.Equal(t, want, runOnce(t, m, "funcvalue"))

	m, err = Build("inlining", DefaultSeed)
	require.NoError(t, err)
	assert.Equal(t, runOnce(t, m, "inlined"), runOnce(t, m, "noinline"))
}

func TestKernelsValidate(t *testing.T) {
	m, err := Build("cache", DefaultSeed)
	require.NoError(t, err)
	for c := range m.Cells() {
		f, err := m.Resolve(c)
		require.NoError(t, err)
		k, err := f()
		require.NoError(t, err)
		assert.NoError(t, k.Validate())
		assert.IsType(t, kernel.Func(nil), k.Run)
	}
}
