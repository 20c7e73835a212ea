// Package fsperm hardens on-disk audit artifacts with POSIX permission bits.
// On platforms without POSIX permissions (Windows) os.Chmod only toggles the
// read-only bit; the calls succeed and the hardening degrades to a no-op.
package fsperm

import "os"

// SecureDir restricts a directory to owner-only access (0700).
func SecureDir(path string) error {
	return os.Chmod(path, 0o700)
}

// SecureFile restricts a file to owner read/write (0600).
func SecureFile(path string) error {
	return os.Chmod(path, 0o600)
}
