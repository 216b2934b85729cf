package identity

import "golang.org/x/sync/singleflight"

// throttle coalesces concurrent resolutions for the same key into a
// single in-flight lookup, so a burst of requests for the same identity
// only hits the network once.
type throttle struct {
	group singleflight.Group
}

func (t *throttle) do(key string, fn func() (Identity, error)) (Identity, error) {
	v, err, _ := t.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return Identity{}, err
	}
	return v.(Identity), nil
}
