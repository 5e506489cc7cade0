package voice

import (
	"sync"
	"time"
)

// recorder buffers captured PCM and moves it into chunks on every flush
// interval. stop performs a final flush and returns the chunks in order.
type recorder struct {
	mu      sync.Mutex
	pending []byte
	chunks  [][]byte
	running bool
	frames  uint64

	stopCh chan struct{}
	done   chan struct{}
}

func (r *recorder) start(interval time.Duration) {
	r.mu.Lock()
	r.running = true
	r.stopCh = make(chan struct{})
	r.done = make(chan struct{})
	stopCh, done := r.stopCh, r.done
	r.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				r.mu.Lock()
				r.flushLocked()
				r.mu.Unlock()
			}
		}
	}()
}

func (r *recorder) write(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || len(data) == 0 {
		return
	}
	r.pending = append(r.pending, data...)
	r.frames += uint64(len(data) / 2)
}

func (r *recorder) flushLocked() {
	if len(r.pending) == 0 {
		return
	}
	r.chunks = append(r.chunks, r.pending)
	r.pending = nil
}

func (r *recorder) stop() [][]byte {
	r.mu.Lock()
	if !r.running {
		chunks := r.chunks
		r.mu.Unlock()
		return chunks
	}
	r.running = false
	close(r.stopCh)
	done := r.done
	r.mu.Unlock()

	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
	return r.chunks
}
