package memcodec

import (
	"runtime"
	"sync"
)

// Records below this count are transcoded on the calling goroutine.
const parallelThreshold = 1 << 14

// forEachRecord applies fn to every record index. Records are independent
// and non-overlapping, so large runs are split across CPUs.
func forEachRecord(n int, fn func(i int)) {
	if n < parallelThreshold {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		begin := w * chunk
		end := begin + chunk
		if end > n {
			end = n
		}
		if begin >= end {
			break
		}
		wg.Add(1)
		go func(begin, end int) {
			defer wg.Done()
			for i := begin; i < end; i++ {
				fn(i)
			}
		}(begin, end)
	}
	wg.Wait()
}
