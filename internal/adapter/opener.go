package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// MoviePageURL is the public web page for a movie
const MoviePageURL = "https://www.themoviedb.org/movie/%d"

// ErrNoOpener is returned when no command could open a URL
var ErrNoOpener = errors.New("no command available to open URLs")

// Opener opens URLs in a browser
type Opener struct {
	command string   // configured browser command, empty for system default
	args    []string // additional arguments for the browser
	logger  *slog.Logger

	// Overridable for tests
	goos     string
	lookPath func(file string) (string, error)
	start    func(name string, args ...string) error
}

// systemOpeners lists the default URL handlers per platform, tried in order
var systemOpeners = map[string][][]string{
	"darwin":  {{"open"}},
	"windows": {{"rundll32", "url.dll,FileProtocolHandler"}, {"cmd", "/c", "start", ""}},
	"linux":   {{"xdg-open"}, {"gio", "open"}, {"sensible-browser"}},
}

// NewOpener creates an opener. An empty command uses the system default.
func NewOpener(cfg BrowserConfig, logger *slog.Logger) *Opener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Opener{
		command:  cfg.Command,
		args:     cfg.Args,
		logger:   logger,
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		start:    startDetached,
	}
}

func startDetached(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// OpenMovie opens the web page of a movie
func (o *Opener) OpenMovie(movieID int) error {
	return o.Open(fmt.Sprintf(MoviePageURL, movieID))
}

// Open opens url in the configured browser or the system default
func (o *Opener) Open(url string) error {
	if o.command != "" {
		args := append(append([]string{}, o.args...), url)
		o.logger.Info("opening with configured browser", "command", o.command, "url", url)
		return o.start(o.command, args...)
	}

	candidates, ok := systemOpeners[o.goos]
	if !ok {
		candidates = systemOpeners["linux"]
	}
	for _, c := range candidates {
		if _, err := o.lookPath(c[0]); err != nil {
			o.logger.Debug("opener not available", "command", c[0], "error", err)
			continue
		}
		args := append(append([]string{}, c[1:]...), url)
		if err := o.start(c[0], args...); err != nil {
			o.logger.Debug("opener failed", "command", c[0], "error", err)
			continue
		}
		o.logger.Info("opened with system default", "command", c[0], "url", url)
		return nil
	}
	return ErrNoOpener
}
