package filepool

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/rtsampler/sfzcore/audioreader"
)

// Ticket identifies one streaming job. Monotonically increasing. Tickets are
// not compared to cancel a job: a job that is no longer wanted is discarded
// through StreamJob.Cancel's atomic stale flag, so the two threads never
// share a mutex.
type Ticket uint64

// streamJobChunkFrames is how many frames the loader thread decodes between
// staleness checks, bounding how long a discarded job keeps running.
const streamJobChunkFrames = 4096

// StreamJob describes one tail-streaming request: decode path starting at
// startFrame up to endFrame (0 meaning "to end of file"), pushing frames
// into ring as they decode.
type StreamJob struct {
	Ticket     Ticket
	Path       string
	StartFrame uint64
	EndFrame   uint64
	Ring       *Ring

	stale atomic.Bool
}

// Cancel marks the job stale; the loader thread drops it at the next chunk
// boundary instead of continuing to decode into a ring nobody reads.
func (j *StreamJob) Cancel() { j.stale.Store(true) }

// streamer runs StreamJobs in the background with bounded concurrency: each
// job gets its own goroutine, and a weighted semaphore limits how many of
// them decode at once.
type streamer struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	nextTicket atomic.Uint64
}

func newStreamer(maxConcurrent int64) *streamer {
	return &streamer{sem: semaphore.NewWeighted(maxConcurrent)}
}

// NewTicket returns a fresh, unique Ticket.
func (p *Pool) NewTicket() Ticket {
	return Ticket(p.ticketCounter.Add(1))
}

// Submit enqueues job on the streaming worker pool. Returns immediately;
// the job runs on a background goroutine and writes into job.Ring as it
// decodes. Control/loader thread only.
func (p *Pool) Submit(ctx context.Context, job *StreamJob) {
	p.streamer.wg.Add(1)
	go func() {
		defer p.streamer.wg.Done()
		if err := p.streamer.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer p.streamer.sem.Release(1)
		runStreamJob(ctx, job)
	}()
}

// Wait blocks until all currently submitted jobs have finished or been
// cancelled. Used by tests and by graceful shutdown; never called from the
// audio thread.
func (p *Pool) Wait() {
	p.streamer.wg.Wait()
}

func runStreamJob(ctx context.Context, job *StreamJob) {
	r, err := audioreader.Open(job.Path)
	if err != nil {
		return
	}
	defer r.Close()

	ch := r.Channels()
	scratch := make([]float32, streamJobChunkFrames*ch)

	frame := uint64(0)
	for job.StartFrame > 0 && frame < job.StartFrame {
		want := job.StartFrame - frame
		if want > streamJobChunkFrames {
			want = streamJobChunkFrames
		}
		n, err := r.ReadNextBlock(scratch[:int(want)*ch])
		if err != nil || n == 0 {
			return
		}
		frame += uint64(n)
	}

	for {
		if job.stale.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		want := streamJobChunkFrames
		if job.EndFrame > 0 {
			remaining := job.EndFrame - frame
			if remaining == 0 {
				return
			}
			if uint64(want) > remaining {
				want = int(remaining)
			}
		}

		n, err := r.ReadNextBlock(scratch[:want*ch])
		if n == 0 || err != nil {
			return
		}
		frame += uint64(n)

		payload := scratch[:n*ch]
		written := 0
		for written < n {
			w := job.Ring.Write(payload[written*ch : n*ch])
			if w == 0 {
				if job.stale.Load() {
					return
				}
				continue // ring full; spin until the consumer drains (loader thread, never audio thread)
			}
			written += w
		}
	}
}
