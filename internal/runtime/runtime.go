package runtime

import (
	"log/slog"
	"os"
	"os/exec"
	stdruntime "runtime"
)

func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// OpenBrowser hands a URL to the OS default browser. The browser
// session itself is outside our control.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch stdruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
