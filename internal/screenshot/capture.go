// Package screenshot captures the virtual display via external tools and
// serves the captured images over HTTP.
package screenshot

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// captureTimeout bounds a single external capture invocation.
const captureTimeout = 10 * time.Second

// Capturer grabs the display contents into PNG files under Dir.
type Capturer struct {
	Display string
	Dir     string
	Logger  *zap.Logger

	// now is overridable for tests.
	now func() time.Time
}

// NewCapturer creates a capturer writing into dir.
func NewCapturer(display, dir string, logger *zap.Logger) *Capturer {
	return &Capturer{Display: display, Dir: dir, Logger: logger, now: time.Now}
}

// Capture grabs the whole display into a timestamped PNG and returns its
// path. It tries scrot first and falls back to ImageMagick's import when
// scrot is unavailable.
func (c *Capturer) Capture(ctx context.Context) (string, error) {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return "", fmt.Errorf("screenshot dir: %w", err)
	}

	now := time.Now
	if c.now != nil {
		now = c.now
	}
	name := fmt.Sprintf("screenshot_%s.png", now().Format("20060102_150405"))
	path, err := c.ResolvePath(name)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	// -z silent, -o overwrite an existing file rather than numbering it.
	if err := c.runTool(ctx, "scrot", "-z", "-o", path); err != nil {
		c.Logger.Debug("scrot failed, trying import", zap.Error(err))
		if err := c.runTool(ctx, "import", "-window", "root", path); err != nil {
			return "", fmt.Errorf("capture display %s: %w", c.Display, err)
		}
	}

	c.Logger.Info("screenshot captured", zap.String("path", path))
	return path, nil
}

func (c *Capturer) runTool(ctx context.Context, tool string, args ...string) error {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Env = append(os.Environ(), "DISPLAY="+c.Display)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", tool, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Latest returns the path of the most recently captured screenshot, or an
// error when none exist.
func (c *Capturer) Latest() (string, error) {
	names, err := c.List()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no screenshots in %s", c.Dir)
	}
	return filepath.Join(c.Dir, names[len(names)-1]), nil
}

// List returns the PNG filenames under Dir sorted by modification time,
// oldest first.
func (c *Capturer) List() ([]string, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list screenshots: %w", err)
	}

	type file struct {
		name string
		mod  time.Time
	}
	files := make([]file, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{e.Name(), info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return names, nil
}

// ResolvePath maps a bare filename to a path under Dir, rejecting anything
// that would escape it.
func (c *Capturer) ResolvePath(name string) (string, error) {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid screenshot filename %q", name)
	}
	return filepath.Join(c.Dir, name), nil
}
