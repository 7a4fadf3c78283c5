package chart

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog"

	"quotechart/internal/config"
)

// ErrNoDisplay indicates there is no graphical session to show the chart in.
var ErrNoDisplay = errors.New("chart: no graphical display available")

// Viewer shows a rendered chart file. Unless it is a DetachedViewer, Show
// blocks until the chart is dismissed.
type Viewer interface {
	Show(ctx context.Context, path string) error
}

// CommandViewer opens the chart with an external image viewer.
type CommandViewer struct {
	command []string
	hold    bool
	in      io.Reader
	out     io.Writer
	goos    string
	getenv  func(string) string
	logger  zerolog.Logger
}

// NewCommandViewer builds a viewer from display settings. An empty command
// selects the platform default.
func NewCommandViewer(cfg config.DisplayConfig, logger zerolog.Logger) *CommandViewer {
	return &CommandViewer{
		command: cfg.Command,
		hold:    cfg.Hold,
		in:      os.Stdin,
		out:     os.Stderr,
		goos:    runtime.GOOS,
		getenv:  os.Getenv,
		logger:  logger.With().Str("component", "viewer").Logger(),
	}
}

// Show launches the viewer on path and waits for it to exit. With hold set
// it then keeps blocking until a line is read from stdin or ctx is done.
func (v *CommandViewer) Show(ctx context.Context, path string) error {
	if err := v.checkDisplay(); err != nil {
		return err
	}

	argv := v.resolveCommand()
	if len(argv) == 0 {
		return fmt.Errorf("%w: no viewer for %s", ErrNoDisplay, v.goos)
	}
	args := append(append([]string{}, argv[1:]...), path)

	v.logger.Debug().Strs("command", argv).Str("path", path).Msg("launching chart viewer")
	cmd := exec.CommandContext(ctx, argv[0], args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run viewer %s: %w", argv[0], err)
	}

	if !v.hold {
		v.logger.Info().Str("path", path).Msg("chart left on disk for the detached viewer")
		return nil
	}
	return v.waitForDismiss(ctx)
}

// Detached reports whether Show returns without waiting for the user, in
// which case the chart file must outlive the call.
func (v *CommandViewer) Detached() bool {
	return !v.hold
}

func (v *CommandViewer) checkDisplay() error {
	if v.goos != "linux" && v.goos != "freebsd" && v.goos != "openbsd" {
		return nil
	}
	if v.getenv("DISPLAY") == "" && v.getenv("WAYLAND_DISPLAY") == "" {
		return ErrNoDisplay
	}
	return nil
}

func (v *CommandViewer) resolveCommand() []string {
	if len(v.command) > 0 {
		return v.command
	}
	switch v.goos {
	case "darwin":
		return []string{"open", "-W"}
	case "windows":
		return []string{"cmd", "/c", "start", "/wait", ""}
	case "linux", "freebsd", "openbsd":
		return []string{"xdg-open"}
	default:
		return nil
	}
}

func (v *CommandViewer) waitForDismiss(ctx context.Context) error {
	fmt.Fprintln(v.out, "Close the chart and press Enter to exit.")

	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(v.in).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		return err
	}
}

var _ DetachedViewer = (*CommandViewer)(nil)
