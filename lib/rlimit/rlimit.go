// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

// Package rlimit raises process resource limits for load generation.
// Thousands of simulated users mean thousands of concurrent sockets;
// the default file-descriptor soft limit is far too low for that.
package rlimit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// RaiseNoFile raises the soft RLIMIT_NOFILE to the hard limit and
// returns the resulting soft limit. It never lowers an already-higher
// soft limit.
func RaiseNoFile() (uint64, error) {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return 0, fmt.Errorf("rlimit: getrlimit: %w", err)
	}
	if limit.Cur >= limit.Max {
		return limit.Cur, nil
	}

	limit.Cur = limit.Max
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return 0, fmt.Errorf("rlimit: setrlimit: %w", err)
	}
	return limit.Cur, nil
}
