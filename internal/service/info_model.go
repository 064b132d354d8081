package service

import "time"

// Info holds what every service shares. Services never read process-wide state: everything comes in through here or their own fields.
type Info struct {
	Now func() time.Time // Clock used for expiration checks. `time.Now` if nil.
}

func (i *Info) now() time.Time {
	if i == nil || i.Now == nil {
		return time.Now()
	}

	return i.Now()
}
