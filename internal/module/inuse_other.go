//go:build !unix && !windows

package module

func isInUse(error) bool { return false }
