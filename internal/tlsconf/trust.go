package tlsconf

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
)

// InstallCA installs ca.crt from dir into the OS trust store so local apps
// accept the server certificate without a warning.
//
// Windows uses `certutil.exe -user -addstore Root` (CurrentUser store, no
// admin rights). Linux copies into the distro trust anchor directory via
// pkexec and runs the distro's update command.
func InstallCA(dir string, logger zerolog.Logger) error {
	caPath := filepath.Join(dir, caCertFile)
	if _, err := os.Stat(caPath); err != nil {
		return fmt.Errorf("CA certificate not found at %s: %w", caPath, err)
	}

	switch runtime.GOOS {
	case "windows":
		logger.Info().Msg("installing CA into Windows CurrentUser trust store")
		cmd := exec.Command("certutil.exe", "-user", "-addstore", "Root", caPath)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("certutil.exe failed: %w", err)
		}
	case "linux":
		logger.Info().Msg("installing CA into system trust store")
		targetDir, updateCmd, err := linuxTrustStore()
		if err != nil {
			return err
		}
		script := fmt.Sprintf("cp -- '%s' '%s/setu-local-ca.crt' && %s", caPath, targetDir, updateCmd)
		cmd := exec.Command("pkexec", "sh", "-c", script)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("CA trust store update failed: %w", err)
		}
	default:
		return fmt.Errorf("CA trust store installation not supported on %s, install %s manually", runtime.GOOS, caPath)
	}

	logger.Info().Msg("CA certificate installed")
	return nil
}

// linuxTrustStore detects the distro's trust anchor directory and the command
// that rebuilds the store.
func linuxTrustStore() (dir, update string, err error) {
	switch {
	case dirExists("/usr/local/share/ca-certificates"):
		// Debian, Ubuntu and derivatives
		return "/usr/local/share/ca-certificates", "update-ca-certificates", nil
	case dirExists("/etc/pki/ca-trust/source/anchors"):
		// RHEL, Fedora, SUSE, CentOS
		return "/etc/pki/ca-trust/source/anchors", "update-ca-trust", nil
	case dirExists("/etc/ca-certificates/trust-source/anchors"):
		// Arch
		return "/etc/ca-certificates/trust-source/anchors", "trust extract-compat", nil
	}
	return "", "", fmt.Errorf("could not detect system CA trust store")
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
