//go:build unix

package mmap

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}

func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	prot := unix.PROT_READ | unix.PROT_WRITE
	flags := unix.MAP_ANON | unix.MAP_PRIVATE

	data, err := unix.Mmap(-1, 0, size, prot, flags)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}

// osRelease drops the pages of a page-aligned private anonymous range.
// On Linux MADV_DONTNEED guarantees zero-fill on the next touch for such
// mappings. Elsewhere it is only a hint, so the range is zeroed first.
func osRelease(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if runtime.GOOS != "linux" {
		clear(data)
		_ = unix.Madvise(data, unix.MADV_DONTNEED)
		return nil
	}
	if err := unix.Madvise(data, unix.MADV_DONTNEED); err != nil {
		clear(data)
	}
	return nil
}

func osAdvise(data []byte, pattern AccessPattern) error {
	if len(data) == 0 {
		return nil
	}

	var advice int
	switch pattern {
	case AccessSequential:
		advice = unix.MADV_SEQUENTIAL
	case AccessRandom:
		advice = unix.MADV_RANDOM
	case AccessWillNeed:
		advice = unix.MADV_WILLNEED
	case AccessDontNeed:
		advice = unix.MADV_DONTNEED
	default:
		advice = unix.MADV_NORMAL
	}

	// madvise requires page-aligned addresses; the hint is advisory.
	err := unix.Madvise(data, advice)
	if err == unix.EINVAL {
		return nil
	}
	return err
}
