package ports

import (
	"context"

	"github.com/tjfontaine/uptime-bridge/internal/core/domain"
)

// MonitorDirectory is the remote collection of uptime monitors.
type MonitorDirectory interface {
	// FindMonitorByURL returns the first monitor whose normalized URL equals
	// the normalized domain, or nil when none exists.
	FindMonitorByURL(ctx context.Context, normalizedDomain string) (*domain.RemoteMonitor, error)

	// CreateHTTPMonitor issues exactly one creation request. The returned
	// response is never nil; a missing id means creation failed.
	CreateHTTPMonitor(ctx context.Context, spec domain.MonitorSpec) (domain.APIResponse, error)
}

// DomainLocker serializes reconciliation of the same domain.
type DomainLocker interface {
	// Lock blocks until the domain is held or ctx is done. The returned
	// function releases the lock and is safe to call once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
