//go:build darwin

package cpu

// pinToCore is a no-op: macOS has no thread-to-core binding, only affinity
// tags, so workers are merely locked to their OS thread.
func pinToCore(int) (func() error, error) {
	return func() error { return nil }, nil
}
