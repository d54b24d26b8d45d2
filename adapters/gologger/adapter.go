package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Named loggers used across the relay. Subsystems resolve their logger
// under the shared root so output groups predictably in the host
// application's log stream.
const (
	RootLoggerName      = "relay"
	WebhooksLoggerName  = "relay.webhooks"
	SweeperLoggerName   = "relay.sweeper"
	TransportLoggerName = "relay.transport"
	JobsLoggerName      = "relay.jobs"
)

// Resolve picks a logger with deterministic precedence provider > logger >
// nop, so every relay component logs through the same resolution rules.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// Component resolves the named logger for one relay subsystem. The provider
// wins when it yields a logger for the name; otherwise the fallback is used,
// and a nop logger when neither is available.
func Component(provider glog.LoggerProvider, fallback glog.Logger, name string) glog.Logger {
	if name == "" {
		name = RootLoggerName
	}
	if provider != nil {
		if named := provider.GetLogger(name); named != nil {
			return glog.Ensure(named)
		}
	}
	if fallback != nil {
		return glog.Ensure(fallback)
	}
	return glog.Nop()
}

// ToJobProvider bridges a glog provider into the go-job logger provider
// contract used by the queue worker.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger bridges a glog logger into the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves the glog pair and returns the matching go-job
// bridges, so the sweep job logs through the relay's logger rather than the
// runner's default.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
