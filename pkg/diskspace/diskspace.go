// Package diskspace provides a point-in-time advisory check of free space
// before a chunking run starts writing. It is not a reservation: space
// consumed by other processes after the check still surfaces later as an
// ordinary write error.
package diskspace

// Check reports whether the filesystem holding dir has at least required
// bytes available. available is 0 when the platform offers no probe, in
// which case ok is true and the caller proceeds.
func Check(dir string, required int64) (available int64, ok bool, err error) {
	return check(dir, required)
}
