package main

import "golang.org/x/sys/unix"

// hostPageSize reports the page size of the machine running the
// packer, used as the default for --output-align: flashable images
// are conventionally padded to a page boundary even though nothing in
// the kernel's own layout requires it (segAlign, not this, governs
// where init lands relative to the kernel).
func hostPageSize() int {
	return unix.Getpagesize()
}
