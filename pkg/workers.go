package tpx3

import (
	"fmt"
)

// chunk is a half-open index range [start, end) handed to a worker.
type chunk struct {
	index int
	start int
	end   int
}

type workerResult[R any] struct {
	index int
	value R
	err   error
}

// splitEvenly cuts n items into at most parts contiguous chunks.
func splitEvenly(n int, parts int) []chunk {
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	if n == 0 {
		return []chunk{{index: 0, start: 0, end: 0}}
	}
	chunks := make([]chunk, 0, parts)
	size := n / parts
	extra := n % parts
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		if i < extra {
			end++
		}
		chunks = append(chunks, chunk{index: i, start: start, end: end})
		start = end
	}
	return chunks
}

func worker[R any](id int, process func(chunk) (R, error), jobs <-chan chunk, results chan<- workerResult[R]) {
	for job := range jobs {
		results <- runJob(id, process, job)
	}
}

func runJob[R any](id int, process func(chunk) (R, error), job chunk) (result workerResult[R]) {
	result.index = job.index
	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprintf("worker %d recovered from panic on chunk %d: %v", id, job.index, r)
			logger.Error(message)
			result.err = fmt.Errorf("worker %d: chunk %d: %v", id, job.index, r)
		}
	}()
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Worker %d processing chunk %d [%d, %d)", id, job.index, job.start, job.end)
		logger.Info(message, "workers")
	}
	result.value, result.err = process(job)
	return result
}

// runWorkers fans chunks out to numWorkers goroutines and returns their
// results in chunk order. The first failing chunk's error is returned.
func runWorkers[R any](numWorkers int, chunks []chunk, process func(chunk) (R, error)) ([]R, error) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	jobs := make(chan chunk, len(chunks))
	results := make(chan workerResult[R], len(chunks))

	for w := 0; w < numWorkers; w++ {
		go worker(w, process, jobs, results)
	}
	for _, c := range chunks {
		jobs <- c
	}
	close(jobs)

	values := make([]R, len(chunks))
	errs := make([]error, len(chunks))
	for range chunks {
		r := <-results
		values[r.index] = r.value
		errs[r.index] = r.err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return values, nil
}
