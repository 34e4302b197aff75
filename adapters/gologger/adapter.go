package gologger

import (
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// Named returns the logger the provider hands out for name, falling back to a
// nop logger when the provider is missing or returns nil.
func Named(provider glog.LoggerProvider, name string) glog.Logger {
	if provider == nil {
		return glog.Nop()
	}
	return glog.Ensure(provider.GetLogger(name))
}

// FromLogger wraps a single logger as a provider.
func FromLogger(logger glog.Logger) glog.LoggerProvider {
	if logger == nil {
		return nil
	}
	return glog.ProviderFromLogger(logger)
}
