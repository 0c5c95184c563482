// Package clock 抽象时间相关操作，生产代码注入 Real()，测试注入 Fake()。
package clock

import (
	"sort"
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	// AfterFunc 在 d 之后调用 f，返回可取消的 Timer。
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	// Stop 返回 true 表示本次调用阻止了回调执行。
	Stop() bool
}

type realClock struct{}

func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// FakeClock 只在 Advance 时前进，到期的回调按截止时间顺序同步执行。
// 不要在回调里调用 Advance。
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	callback func()
	stopped  bool
	fired    bool
}

func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	w := &fakeWaiter{deadline: c.current.Add(d), callback: f}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()
	if d <= 0 {
		c.Advance(0)
	}
	return &fakeTimer{clock: c, waiter: w}
}

// Pending 返回尚未触发且未取消的定时器数量。
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.waiters {
		if !w.stopped && !w.fired {
			n++
		}
	}
	return n
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current
	var due, rest []*fakeWaiter
	for _, w := range c.waiters {
		switch {
		case w.stopped || w.fired:
		case !w.deadline.After(now):
			w.fired = true
			due = append(due, w)
		default:
			rest = append(rest, w)
		}
	}
	c.waiters = rest
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, w := range due {
		w.callback()
	}
}

type fakeTimer struct {
	clock  *FakeClock
	waiter *fakeWaiter
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.waiter.stopped || t.waiter.fired {
		return false
	}
	t.waiter.stopped = true
	return true
}
