package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerator_UniqueUnderConcurrency(t *testing.T) {
	req := require.New(t)
	g, err := NewGenerator(7)
	req.NoError(err)

	const workers, perWorker = 8, 2000
	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.Next())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	req.Len(seen, workers*perWorker)
}

func TestGenerator_EncodesNode(t *testing.T) {
	req := require.New(t)
	g, err := NewGenerator(513)
	req.NoError(err)

	id := g.Next()
	req.Equal(int64(513), (id>>seqBits)&maxNode)
}

func TestNewGenerator_RejectsOutOfRangeNode(t *testing.T) {
	_, err := NewGenerator(1024)
	require.Error(t, err)
}
