// Package log provides a component-scoped structured logger shared across the
// companion core. It wraps logrus the same way the teacher's agent runtime logs
// per-component ("[TurnExecutor] ...", "[Compactor] ..."): every call site gets a
// logrus.Entry pre-tagged with its component name instead of hand-formatting
// prefixes into message strings.
package log

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	base     = logrus.New()
	initOnce sync.Once
)

func init() {
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetLevel(logrus.InfoLevel)
}

// SetLevel adjusts the global log level (e.g. from config at process start).
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		base.Warnf("log: unknown level %q, keeping %s", level, base.GetLevel())
		return
	}
	base.SetLevel(lvl)
}

// For returns a logger scoped to the named component, e.g. log.For("mood").
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}
