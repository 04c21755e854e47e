package model

import "math/rand"

// SimContext is the interface between simulated components and the event
// loop that drives them. All callbacks run on a single goroutine; a callback
// must never block.
type SimContext interface {
	Now() VirtualTime
	SetTimer(expireAt VirtualTime, name string, callback func()) (cancel func())
	Later(name string, callback func()) (cancel func())
	Rand() *rand.Rand
}

type EventSource interface {
	Subscribe(callback func()) (cancel func())
}
