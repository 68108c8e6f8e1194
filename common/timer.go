package common

import "time"

// NewTimer returns a channel that is closed once dur has elapsed or
// ctrl has been closed, whichever happens first.
func NewTimer(ctrl Control, dur time.Duration) <-chan struct{} {
	sub := ctrl.Sub()

	timer := time.NewTimer(dur)
	go func() {
		defer sub.Close()

		select {
		case <-sub.Closed():
			return
		case <-timer.C:
			return
		}
	}()

	return sub.Closed()
}
