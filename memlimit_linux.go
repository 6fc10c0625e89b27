// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import "golang.org/x/sys/unix"

// A quarter of physical RAM, leaving the rest for the page cache and
// everybody else.
func defaultMemLimit() int64 {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 1024 * 1024 * 1024
	}
	return int64(si.Totalram) * int64(si.Unit) / 4
}
