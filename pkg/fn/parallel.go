package fn

import "sync"

// ParMapResult maps f over items with at most workers goroutines in
// flight, preserving input order in the output. workers <= 0 lifts the
// bound entirely.
func ParMapResult[T, U any](items []T, workers int, f func(T) Result[U]) []Result[U] {
	results := make([]Result[U], len(items))
	if len(items) == 0 {
		return results
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	wg.Add(len(items))
	for i := range items {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = f(items[i])
		}(i)
	}
	wg.Wait()
	return results
}
