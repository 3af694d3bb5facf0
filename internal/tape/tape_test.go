package tape

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcox74/bfjit/internal/width"
)

func TestNewAndLoadStoreRoundTrip(t *testing.T) {
	s, err := New(width.W8, 16, 0)
	require.NoError(t, err)
	defer s.Release()

	s.Store(0, 42)
	require.Equal(t, uint64(42), s.Load(0))

	s.Move(3)
	s.Store(0, 7)
	require.Equal(t, uint64(7), s.Load(0))
	require.Equal(t, 3, s.Ptr())
}

func TestCheckPointer(t *testing.T) {
	s, err := New(width.W8, 4, 0)
	require.NoError(t, err)
	defer s.Release()

	require.True(t, s.CheckPointer())
	s.Move(10)
	require.False(t, s.CheckPointer())
	s.Move(-20)
	require.False(t, s.CheckPointer())
}

func TestGrowPreservesCellContents(t *testing.T) {
	s, err := New(width.W32, 8, 0)
	require.NoError(t, err)
	defer s.Release()

	s.Store(0, 100)
	s.Move(2)
	s.Store(0, 200)

	require.NoError(t, s.Grow(4096))

	s.Move(-2)
	require.Equal(t, uint64(100), s.Load(0))
	s.Move(2)
	require.Equal(t, uint64(200), s.Load(0))
}

func TestGrowIsNoOpWhenNotLarger(t *testing.T) {
	s, err := New(width.W8, 8, 0)
	require.NoError(t, err)
	defer s.Release()

	s.Store(0, 5)
	require.NoError(t, s.Grow(1))
	require.Equal(t, uint64(5), s.Load(0))
}

func TestWideCellsRoundTrip(t *testing.T) {
	s, err := New(width.W64, 4, 0)
	require.NoError(t, err)
	defer s.Release()

	const v = uint64(0x0102030405060708)
	s.Store(0, v)
	require.Equal(t, v, s.Load(0))
}

func TestReleaseThenFaultWithinIsFalse(t *testing.T) {
	s, err := New(width.W8, 4, 0)
	require.NoError(t, err)
	addr := s.PtrAt(0)
	require.True(t, FaultWithin(addr))

	require.NoError(t, s.Release())
	require.False(t, FaultWithin(addr))
}
