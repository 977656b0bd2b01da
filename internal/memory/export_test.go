package memory

import "time"

// SetForgetterClock replaces the forgetter's clock.
func SetForgetterClock(f *Forgetter, now func() time.Time) { f.now = now }
