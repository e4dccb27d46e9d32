package evaluation

import (
	"fmt"
	"runtime"
	"sync"
)

// runPool executes jobs across a fixed set of workers and waits for all of
// them. A panicking job is converted to an error result instead of killing
// the process.
func runPool[J any, R any](workers int, jobs []J, fn func(job J) R, onPanic func(job J, recovered interface{}) R) []R {
	if workers < 1 {
		workers = 1
	}

	jobCh := make(chan J)
	results := make([]R, 0, len(jobs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				result := runOne(job, fn, onPanic)
				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
		}()
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()

	return results
}

func runOne[J any, R any](job J, fn func(job J) R, onPanic func(job J, recovered interface{}) R) (result R) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 2048)
			n := runtime.Stack(buf, false)
			result = onPanic(job, fmt.Sprintf("%v\n%s", r, buf[:n]))
		}
	}()
	return fn(job)
}
