package statistics

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
)

// fanOut runs fn for every key concurrently and collects the results by key.
// The first error wins; remaining results are discarded.
func fanOut[K comparable, V any](ctx context.Context, keys []K, fn func(context.Context, K) (V, error)) (map[K]V, error) {
	var wg sync.WaitGroup
	errChan := make(chan error, len(keys))
	resChan := make(chan *lo.Entry[K, V], len(keys))

	for _, key := range keys {
		wg.Add(1)
		go func(k K) {
			defer wg.Done()
			v, err := fn(ctx, k)
			if err != nil {
				errChan <- fmt.Errorf("%v: %w", k, err)
				return
			}
			resChan <- &lo.Entry[K, V]{Key: k, Value: v}
		}(key)
	}

	go func() { wg.Wait(); close(errChan); close(resChan) }()

	results := make(map[K]V, len(keys))
	for i := 0; i < len(keys); i++ {
		select {
		case err := <-errChan:
			if err != nil {
				return nil, err
			}
		case entry := <-resChan:
			results[entry.Key] = entry.Value
		}
	}
	return results, nil
}
