package safe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeGo_RecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	SafeGo("test", func() {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()
}

func TestMustNotNil(t *testing.T) {
	req := require.New(t)
	var m map[string]int

	req.Panics(func() { MustNotNil(m, "m") })
	req.Panics(func() { MustNotNil(nil, "nil") })
	req.NotPanics(func() { MustNotNil(1, "int") })
}

func TestDefaults(t *testing.T) {
	req := require.New(t)

	req.Equal("x", DefaultString("", "x"))
	req.Equal("y", DefaultString("y", "x"))
	req.Equal(10, DefaultInt(0, 10))
	req.Equal(3, DefaultInt(3, 10))
}
