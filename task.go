package rack

import (
	"sync"
	"time"
)

// RepeatingTask runs a function periodically on its own goroutine until
// stopped. Stop blocks until the loop has exited, so after Stop returns the
// function is guaranteed not to run again.
type RepeatingTask struct {
	close    chan struct{}
	finished chan struct{}
	once     sync.Once
}

// Every starts calling fn every interval. fn receives the tick time.
func Every(interval time.Duration, fn func(time.Time)) *RepeatingTask {
	t := &RepeatingTask{
		close:    make(chan struct{}, 1),
		finished: make(chan struct{}),
	}
	go func() {
		defer close(t.finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.close:
				return
			case now := <-ticker.C:
				fn(now)
			}
		}
	}()
	return t
}

// Stop cancels the task and waits for it to finish. Stopping a stopped task
// (or a nil one) does nothing.
func (t *RepeatingTask) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() { t.close <- struct{}{} })
	<-t.finished
}

// Done is closed once the task loop has exited.
func (t *RepeatingTask) Done() <-chan struct{} {
	return t.finished
}
