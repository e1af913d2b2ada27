// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/adak/pkg/ux"
)

// minGoVersion is the oldest runtime the binaries are built and tested
// against.
const minGoVersion = "go1.25"

// doctorHTTPTimeout bounds the relay reachability probe.
const doctorHTTPTimeout = 5 * time.Second

// CheckResult is the outcome of one environment check.
type CheckResult struct {
	Name   string
	Status ux.Icon
	Detail string
}

// Failed reports whether the check should fail the run. Warnings do
// not.
func (r CheckResult) Failed() bool {
	return r.Status == ux.IconError
}

// DoctorOptions configures the environment check run.
type DoctorOptions struct {
	// ServerURL enables the relay reachability check when non-empty.
	// Accepts the same ws:// URL the chat command takes.
	ServerURL string
}

// RunDoctor executes the environment checks and renders each result.
//
// # Outputs
//
//   - bool: true when no check failed.
func RunDoctor(ctx context.Context, opts DoctorOptions) bool {
	checks := []func(context.Context) CheckResult{
		checkGreeting,
		checkRuntime,
		checkTTY,
		checkFDLimit,
		checkLocalIP,
	}
	if opts.ServerURL != "" {
		checks = append(checks, func(ctx context.Context) CheckResult {
			return checkRelay(ctx, opts.ServerURL)
		})
	}

	ok := true
	for _, check := range checks {
		result := check(ctx)
		ux.CheckStatus(result.Name, result.Status, result.Detail)
		if result.Failed() {
			ok = false
		}
	}

	if ok {
		ux.Success("All checks passed.")
	} else {
		ux.Error("Some checks failed.")
	}
	return ok
}

// checkGreeting proves stdout works at all.
func checkGreeting(context.Context) CheckResult {
	fmt.Println("Hello, World!")
	return CheckResult{Name: "greeting", Status: ux.IconSuccess, Detail: "stdout writable"}
}

// checkRuntime gates on the Go runtime version the binary was built
// with.
func checkRuntime(context.Context) CheckResult {
	version := runtime.Version()
	if goVersionLess(version, minGoVersion) {
		return CheckResult{
			Name:   "runtime",
			Status: ux.IconError,
			Detail: fmt.Sprintf("%s is older than %s", version, minGoVersion),
		}
	}
	return CheckResult{Name: "runtime", Status: ux.IconSuccess, Detail: version}
}

// goVersionLess compares two goN.M[.P] strings numerically. Non-release
// toolchains (devel builds) never count as too old.
func goVersionLess(a, b string) bool {
	pa, oka := parseGoVersion(a)
	pb, okb := parseGoVersion(b)
	if !oka || !okb {
		return false
	}
	for i := 0; i < 3; i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return false
}

// parseGoVersion extracts up to three numeric components from a
// "go1.25.3" string.
func parseGoVersion(v string) ([3]int, bool) {
	var parts [3]int
	v = strings.TrimPrefix(v, "go")
	fields := strings.SplitN(v, ".", 3)
	for i, f := range fields {
		n := 0
		if _, err := fmt.Sscanf(f, "%d", &n); err != nil {
			return parts, false
		}
		parts[i] = n
	}
	return parts, true
}

// checkTTY reports whether interactive features (form, input history)
// will be available.
func checkTTY(context.Context) CheckResult {
	stdin := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	stdout := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	switch {
	case stdin && stdout:
		return CheckResult{Name: "terminal", Status: ux.IconSuccess, Detail: "interactive"}
	case stdin || stdout:
		return CheckResult{Name: "terminal", Status: ux.IconWarning, Detail: "partially interactive (pipe on one side)"}
	default:
		return CheckResult{Name: "terminal", Status: ux.IconWarning, Detail: "not a terminal, interactive features disabled"}
	}
}

// checkLocalIP reports the address the relay would be reached from on
// the LAN. The UDP dial never sends a packet; it only resolves the
// route.
func checkLocalIP(context.Context) CheckResult {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return CheckResult{
			Name:   "local ip",
			Status: ux.IconWarning,
			Detail: "no route found: " + err.Error(),
		}
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return CheckResult{Name: "local ip", Status: ux.IconWarning, Detail: "could not determine local address"}
	}
	return CheckResult{Name: "local ip", Status: ux.IconSuccess, Detail: addr.IP.String()}
}

// checkRelay probes the relay's health endpoint.
func checkRelay(ctx context.Context, serverURL string) CheckResult {
	healthURL := healthURLFor(serverURL)

	// The probe can hang up to its timeout; show something meanwhile.
	spin := ux.NewSpinner("Probing " + healthURL)
	spin.Start()
	defer spin.Stop()

	ctx, cancel := context.WithTimeout(ctx, doctorHTTPTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return CheckResult{Name: "relay", Status: ux.IconError, Detail: "bad server URL: " + err.Error()}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return CheckResult{Name: "relay", Status: ux.IconError, Detail: "unreachable: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CheckResult{Name: "relay", Status: ux.IconError, Detail: "health returned " + resp.Status}
	}
	return CheckResult{Name: "relay", Status: ux.IconSuccess, Detail: healthURL}
}

// healthURLFor maps a chat server URL (ws:// or http://) to its health
// endpoint.
func healthURLFor(serverURL string) string {
	base := serverURL
	base = strings.Replace(base, "ws://", "http://", 1)
	base = strings.Replace(base, "wss://", "https://", 1)
	base = strings.TrimSuffix(base, "/ws/chat")
	base = strings.TrimSuffix(base, "/")
	return base + "/health"
}
