package services

import (
	"time"

	"github.com/you/kycstore/domain"
)

type realClock struct{}

// RealClock returns the wall clock
func RealClock() domain.Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) domain.Timer {
	return time.AfterFunc(d, f)
}
