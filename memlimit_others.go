// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build !linux

package main

func defaultMemLimit() int64 {
	return 1024 * 1024 * 1024 // fall back on 1GiB
}
