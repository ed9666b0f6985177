//go:build !linux

package main

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
)

func installService(logger zerolog.Logger) error {
	return fmt.Errorf("service installation is only supported on Linux, not %s", runtime.GOOS)
}

func uninstallService(logger zerolog.Logger) error {
	return fmt.Errorf("service removal is only supported on Linux, not %s", runtime.GOOS)
}
