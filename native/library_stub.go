//go:build !unix

package native

import "github.com/germangb/newton-go/errors"

// Library is unavailable on this platform; the dynamic loader path needs
// dlopen. Use nativetest.Engine for platform-independent testing. The
// embedded Engine keeps the type assignable where the real binding is
// used; it is never non-nil because Open always fails.
type Library struct {
	Engine
}

// Open always fails on non-unix platforms.
func Open(path string) (*Library, error) {
	return nil, errors.Unsupported("native library loading (requires dlopen)")
}

// Close is a no-op on non-unix platforms.
func (l *Library) Close() error { return nil }
