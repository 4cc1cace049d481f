package session

import (
	"sync"

	"github.com/five82/videocompress/internal/media"
)

// result is written exactly once and read any number of times.
type result struct {
	once sync.Once
	done chan struct{}
	info *media.MediaInfo
	err  error
}

func newResult() *result {
	return &result{done: make(chan struct{})}
}

// complete stores the outcome. Only the first call has any effect; it
// reports whether this call was the one that completed the result.
func (r *result) complete(info *media.MediaInfo, err error) bool {
	completed := false
	r.once.Do(func() {
		r.info = info
		r.err = err
		close(r.done)
		completed = true
	})
	return completed
}

func (r *result) get() (*media.MediaInfo, error) {
	<-r.done
	return r.info, r.err
}
