// Package logging configures the shared logrus logger used by every component.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var base = logrus.New()

func init() {
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Setup applies the configured level and output. Unknown levels fall back to info.
func Setup(level string, out io.Writer, jsonFormat bool) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
	if out != nil {
		base.SetOutput(out)
	}
	if jsonFormat {
		base.SetFormatter(&logrus.JSONFormatter{})
	}
}

// For returns a logger tagged with the component name.
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}

// Logger exposes the underlying logger, mainly for tests that capture output.
func Logger() *logrus.Logger {
	return base
}
