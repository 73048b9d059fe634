//go:build !unix

package diskspace

// No statfs equivalent wired up on this platform; the check passes and any
// real shortage surfaces as a write error.
func check(dir string, required int64) (int64, bool, error) {
	return 0, true, nil
}
