// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command maprender renders YAML map projects to PNG images.
package main

import (
	"fmt"
	"os"

	"github.com/gogpu/mapcompose/internal/cli"
)

func main() {
	if err := cli.BuildCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "maprender:", err)
		os.Exit(1)
	}
}
