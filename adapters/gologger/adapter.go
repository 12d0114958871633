package gologger

import (
	"fmt"
	"io"
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ParseLevel maps a user supplied level name onto the glog level names.
// An empty value selects glog.DefaultLogLevel.
func ParseLevel(raw string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	switch normalized {
	case "":
		return glog.DefaultLogLevel, nil
	case glog.Trace, glog.Debug, glog.Info, glog.Warn, glog.Error, glog.Fatal:
		return normalized, nil
	}
	return "", fmt.Errorf("gologger: unknown level %q", raw)
}

// NewConsoleLogger returns a glog text logger writing to out. The returned
// logger is also a provider: GetLogger hands out named children that share
// the writer and level. Fatal records are logged without exiting the process.
func NewConsoleLogger(out io.Writer, name, level string) *glog.BaseLogger {
	return glog.NewLogger(
		glog.WithWriter(out),
		glog.WithLevel(level),
		glog.WithName(strings.TrimSpace(name)),
		glog.WithLoggerTypeConsole(),
		glog.WithFatalBehavior(glog.FatalBehaviorLogOnly),
	)
}
