// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"math"
	"os"
	"strconv"
)

var memLimit int64 = calcMemLimit()

func calcMemLimit() int64 {
	if e := os.Getenv("CRUNCHGB"); e != "" {
		f, err := strconv.ParseFloat(e, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			panic("malformed CRUNCHGB environment variable, should be a number of gigabytes: " + e)
		}
		return int64(f * 1024 * 1024 * 1024)
	}
	return defaultMemLimit()
}
