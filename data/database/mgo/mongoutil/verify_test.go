package mongoutil

import (
	"context"
	"testing"

	"PPChat/tools/errs"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestValidateAndSetDefaults_BuildsURI(t *testing.T) {
	req := require.New(t)
	c := &Config{Address: []string{"h1:27017", "h2:27017"}, Database: "ppchat", Username: "root", Password: "p@ss"}

	req.NoError(c.ValidateAndSetDefaults())

	req.Equal(defaultMaxPoolSize, c.MaxPoolSize)
	req.Equal(defaultMaxRetry, c.MaxRetry)
	req.Equal("mongodb://root:p%40ss@h1:27017,h2:27017/ppchat?authSource=ppchat&maxPoolSize=100", c.Uri)
}

func TestValidateAndSetDefaults_Rejects(t *testing.T) {
	req := require.New(t)

	req.ErrorIs((&Config{Database: "x"}).ValidateAndSetDefaults(), errs.ErrArgs)
	req.ErrorIs((&Config{Uri: "mongodb://h"}).ValidateAndSetDefaults(), errs.ErrArgs)
}

func TestShouldRetry(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	req.False(shouldRetry(ctx, mongo.CommandError{Code: 18}))
	req.True(shouldRetry(ctx, mongo.CommandError{Code: 91}))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	req.False(shouldRetry(cctx, mongo.CommandError{Code: 91}))
}
