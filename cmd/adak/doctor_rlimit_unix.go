// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build unix

package main

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/AleutianAI/adak/pkg/ux"
)

// minRecommendedFD is the floor below which "too many open files"
// becomes plausible on macOS defaults.
const minRecommendedFD = 1024

// checkFDLimit inspects RLIMIT_NOFILE. Low limits warn rather than
// fail; the client itself needs very few descriptors.
func checkFDLimit(context.Context) CheckResult {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return CheckResult{
			Name:   "file descriptors",
			Status: ux.IconWarning,
			Detail: "getrlimit failed: " + err.Error(),
		}
	}

	detail := fmt.Sprintf("soft %d, hard %d", limit.Cur, limit.Max)
	if limit.Cur < minRecommendedFD {
		return CheckResult{
			Name:   "file descriptors",
			Status: ux.IconWarning,
			Detail: detail + fmt.Sprintf(" (recommend at least %d, try ulimit -n)", minRecommendedFD),
		}
	}
	return CheckResult{Name: "file descriptors", Status: ux.IconSuccess, Detail: detail}
}
