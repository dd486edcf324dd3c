// Package worker runs a pool of goroutines that drain the job queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/the-hive/segmenter/internal/queue"
)

// HandlerFunc processes a job. It should return an error if processing fails.
type HandlerFunc func(ctx context.Context, job queue.Job) error

// dequeueBackoff is the pause after a failed dequeue so a broken
// connection does not spin the loop.
const dequeueBackoff = 500 * time.Millisecond

// StartWorkers starts workerCount goroutines that dequeue jobs from q and
// hand them to handler. It blocks until ctx is cancelled and every worker
// has returned.
func StartWorkers(ctx context.Context, q queue.Queue, handler HandlerFunc, workerCount int) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	log.Printf("StartWorkers: workerCount=%d", workerCount)

	var wg sync.WaitGroup
	wg.Add(workerCount)

	for i := 0; i < workerCount; i++ {
		workerID := i + 1
		go func() {
			defer wg.Done()
			workerLoop(ctx, q, handler, workerID)
		}()
	}

	wg.Wait()
	log.Printf("StartWorkers: all workers stopped")
	return nil
}

func workerLoop(ctx context.Context, q queue.Queue, handler HandlerFunc, workerID int) {
	log.Printf("workerLoop: workerID=%d started", workerID)

	for {
		select {
		case <-ctx.Done():
			log.Printf("workerLoop: workerID=%d context cancelled, stopping", workerID)
			return
		default:
		}

		job, err := q.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Printf("workerLoop: workerID=%d context cancelled during dequeue", workerID)
				return
			}
			log.Printf("workerLoop: workerID=%d dequeue error: %v, continuing", workerID, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeueBackoff):
			}
			continue
		}

		log.Printf("workerLoop: workerID=%d processing job type=%s createdAt=%s", workerID, job.Type, job.CreatedAt.Format(time.RFC3339))

		if err := runHandler(ctx, handler, job); err != nil {
			log.Printf("workerLoop: workerID=%d handler error for job type=%s: %v", workerID, job.Type, err)
			continue
		}

		log.Printf("workerLoop: workerID=%d successfully processed job type=%s", workerID, job.Type)
	}
}

// runHandler keeps a panicking handler from taking the worker down.
func runHandler(ctx context.Context, handler HandlerFunc, job queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return handler(ctx, job)
}

// PanicError reports a recovered handler panic.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}
