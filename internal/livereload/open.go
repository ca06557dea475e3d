package livereload

import (
	"context"
	"runtime"

	"github.com/ShayCichocki/sitepipe/internal/exec"
)

// OpenBrowser launches url with opener, or with the platform default when
// opener is empty.
func OpenBrowser(ctx context.Context, runner exec.CommandRunner, opener, url string) error {
	cmd := exec.Command{Name: opener, Args: []string{url}}
	if opener == "" {
		switch runtime.GOOS {
		case "darwin":
			cmd.Name = "open"
		case "windows":
			cmd = exec.Command{Name: "rundll32", Args: []string{"url.dll,FileProtocolHandler", url}}
		default:
			cmd.Name = "xdg-open"
		}
	}
	return runner.Start(ctx, cmd)
}
