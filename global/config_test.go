package global

import (
	"context"
	"testing"

	"PPChat/global/config"
	"PPChat/service/identity"
	"PPChat/service/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfigAll_MemoryDrivers(t *testing.T) {
	req := require.New(t)
	cfg := config.Default()

	comps, err := ConfigAll(context.Background(), cfg, zap.NewNop())
	req.NoError(err)
	defer func() { req.NoError(comps.Close(context.Background())) }()

	req.IsType(identity.AcceptAll{}, comps.Resolver)
	req.IsType(&storage.MemoryStore{}, comps.Store)
	req.Empty(comps.Publishers)
	req.Empty(comps.Observers)
	req.Nil(comps.LastSeen)
	req.Nil(comps.Directory)
}

func TestComponents_CloseReverseOrder(t *testing.T) {
	req := require.New(t)
	var order []int
	c := &Components{}
	for i := 0; i < 3; i++ {
		i := i
		c.onClose(func(context.Context) error { order = append(order, i); return nil })
	}
	req.NoError(c.Close(context.Background()))
	req.Equal([]int{2, 1, 0}, order)

	// second close is a no-op
	req.NoError(c.Close(context.Background()))
	req.Len(order, 3)
}
