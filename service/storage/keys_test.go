package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDMKey_DistinctPairsNeverCollide(t *testing.T) {
	req := require.New(t)

	req.NotEqual(DMKey("a:b", "c"), DMKey("a", "b:c"))
	req.NotEqual(DMKey("a|1:b", "c"), DMKey("a", "1:b|c"))
	req.NotEqual(DMKey("", "ab"), DMKey("a", "b"))
	req.Equal(DMKey("a:b", "c"), DMKey("c", "a:b"))
}

func TestDMKey_Symmetric(t *testing.T) {
	require.Equal(t, DMKey("a", "b"), DMKey("b", "a"))
}
