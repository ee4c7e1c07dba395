package services

import "sync"

const lockStripes = 128

// UserLocks serializes session transitions and event appends per participant.
// The simultaneous-participation invariant spans experiments, so the critical
// section is keyed by user id alone; stripes keep unrelated users fully
// parallel.
type UserLocks struct {
	stripes [lockStripes]sync.Mutex
}

func NewUserLocks() *UserLocks {
	return &UserLocks{}
}

// Lock acquires the stripe for userID and returns its unlock func.
func (l *UserLocks) Lock(userID int64) func() {
	m := &l.stripes[uint64(userID)%lockStripes]
	m.Lock()
	return m.Unlock
}
