//go:build !unix

package filepool

// lockPreloadedHead is a no-op on platforms without mlock.
func lockPreloadedHead(frames []float32) {}
