//go:build linux

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"
)

const serviceUnit = `[Unit]
Description=Setu - CardDAV bridge for Google Contacts
After=network-online.target

[Service]
Type=simple
ExecStart=%s --headless
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

// installService writes a systemd user unit and enables it.
func installService(logger zerolog.Logger) error {
	if !hasSystemdUser() {
		return fmt.Errorf("systemd user session not available (container or non-systemd init)")
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot resolve current executable: %w", err)
	}
	path, err := servicePath()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf(serviceUnit, exe)), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("installed systemd service")

	exec.Command("systemctl", "--user", "daemon-reload").Run()
	if err := exec.Command("systemctl", "--user", "enable", "--now", "setu").Run(); err != nil {
		return fmt.Errorf("systemctl enable --now failed: %w", err)
	}
	logger.Info().Msg("setu service enabled and started")

	fmt.Fprintln(os.Stderr, "Setu is now running as a background service.")
	fmt.Fprintln(os.Stderr, "  Status:  systemctl --user status setu")
	fmt.Fprintln(os.Stderr, "  Logs:    journalctl --user -u setu -f")
	fmt.Fprintln(os.Stderr, "  Stop:    systemctl --user stop setu")
	return nil
}

func uninstallService(logger zerolog.Logger) error {
	exec.Command("systemctl", "--user", "disable", "--now", "setu").Run()

	path, err := servicePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		logger.Info().Str("path", path).Msg("removed service unit")
	}

	exec.Command("systemctl", "--user", "daemon-reload").Run()
	fmt.Fprintln(os.Stderr, "Setu service uninstalled.")
	return nil
}

func servicePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".config", "systemd", "user")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "setu.service"), nil
}

// hasSystemdUser reports whether a responsive systemd user instance exists.
// /run/systemd/system only exists when systemd is the init.
func hasSystemdUser() bool {
	if _, err := os.Stat("/run/systemd/system"); err != nil {
		return false
	}
	return exec.Command("systemctl", "--user", "is-system-running").Run() == nil
}
