package buildreqcheck

import (
	"sync"
	"sync/atomic"
)

var atExit struct {
	sync.Mutex
	fns    []func() error
	closed uint32
}

func RegisterAtExit(fn func() error) {
	if atomic.LoadUint32(&atExit.closed) != 0 {
		panic("BUG: RegisterAtExit must not be called from an atExit func")
	}
	atExit.Lock()
	defer atExit.Unlock()
	atExit.fns = append(atExit.fns, fn)
}

// RunAtExit runs every registered cleanup function, in reverse registration
// order, even if an earlier one fails. It returns the first error
// encountered, if any, but never skips a later function because an earlier
// one failed: a stuck chroot must not prevent the workdir from being
// removed.
func RunAtExit() error {
	atomic.StoreUint32(&atExit.closed, 1)
	var first error
	for i := len(atExit.fns) - 1; i >= 0; i-- {
		if err := atExit.fns[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
