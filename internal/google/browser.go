package google

import (
	"errors"
	"os/exec"
	"runtime"
)

// openBrowser opens url in the default browser. On Linux the URL is passed as
// a direct argument (no shell) so '&' in query strings is not mangled.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		for _, browser := range []string{
			"xdg-open",
			"sensible-browser",
			"firefox",
			"chromium",
			"chromium-browser",
			"google-chrome",
		} {
			if err := exec.Command(browser, url).Start(); err == nil {
				return nil
			}
		}
		return errors.New("no browser found")
	}
}
