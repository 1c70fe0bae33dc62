package kernel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	var nilKernel *Kernel
	assert.ErrorIs(t, nilKernel.Validate(), ErrNoBody)
	assert.ErrorIs(t, (&Kernel{}).Validate(), ErrNoBody)
	assert.NoError(t, (&Kernel{Run: Void(func() {})}).Validate())
}

func TestAdapters(t *testing.T) {
	calls := 0
	v, err := Void(func() { calls++ })()
	assert.NoError(t, err)
	assert.Zero(t, v)
	assert.Equal(t, 1, calls)

	v, err = Pure(func() uint64 { return 42 })()
	assert.NoError(t, err)
	assert.Equal(t, uint64(42), v)

	k, err := Simple(Pure(func() uint64 { return 7 }))()
	require.NoError(t, err)
	assert.Nil(t, k.Setup)
	v, _ = k.Run()
	assert.Equal(t, uint64(7), v)
}

func TestStatefulInstancesAreIndependent(t *testing.T) {
	type buf struct{ items []int }

	factory := Stateful(StatefulSpec[*buf]{
		Setup: func() (*buf, error) { return &buf{}, nil },
		Run: func(b *buf) (uint64, error) {
			b.items = append(b.items, 1)
			return uint64(len(b.items)), nil
		},
		Reset:      func(b *buf) { b.items = b.items[:0] },
		ResetTimed: true,
	})

	a, err := factory()
	require.NoError(t, err)
	b, err := factory()
	require.NoError(t, err)
	require.NoError(t, a.Setup())
	require.NoError(t, b.Setup())

	a.Run()
	a.Run()
	v, _ := a.Run()
	assert.Equal(t, uint64(3), v)

	v, _ = b.Run()
	assert.Equal(t, uint64(1), v, "state leaked between instances")

	a.Reset()
	v, _ = a.Run()
	assert.Equal(t, uint64(1), v)
	assert.True(t, a.ResetTimed)
}

func TestStatefulSetupError(t *testing.T) {
	boom := errors.New("boom")
	factory := Stateful(StatefulSpec[int]{
		Setup: func() (int, error) { return 0, boom },
		Run:   func(int) (uint64, error) { return 0, nil },
	})
	k, err := factory()
	require.NoError(t, err)
	assert.ErrorIs(t, k.Setup(), boom)

	_, err = Stateful(StatefulSpec[int]{})()
	assert.ErrorIs(t, err, ErrNoBody)
}

func TestPublish(t *testing.T) {
	Publish(99)
	assert.Equal(t, uint64(99), Observed())
}
