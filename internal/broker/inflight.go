package broker

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"coach-backend/internal/contract"
)

// inflight coalesces concurrent requests with the same digest into one call.
type inflight struct {
	group  singleflight.Group
	active atomic.Int64
}

// Do runs fn once per key among concurrent callers. shared reports whether the
// result was handed to more than one caller.
func (f *inflight) Do(key string, fn func() (contract.Response, error)) (resp contract.Response, err error, shared bool) {
	v, err, shared := f.group.Do(key, func() (result any, err error) {
		f.active.Add(1)
		defer f.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				result, err = contract.Response{}, fmt.Errorf("analysis request panicked: %v", r)
			}
		}()
		return fn()
	})
	if v != nil {
		resp = v.(contract.Response)
	}
	return resp, err, shared
}

func (f *inflight) Len() int {
	return int(f.active.Load())
}
