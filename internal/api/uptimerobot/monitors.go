package uptimerobot

import (
	"context"
	"net/http"
	"strings"

	"github.com/tjfontaine/uptime-bridge/internal/core/domain"
	"github.com/tjfontaine/uptime-bridge/internal/extract"
)

// Monitor creation defaults.
const (
	DefaultInterval    = 300
	DefaultHTTPMethod  = "POST"
	DefaultTimeout     = 30
	DefaultGracePeriod = 0
)

// CreateMonitorRequest is the body of POST /monitors for an HTTP monitor.
type CreateMonitorRequest struct {
	Type           string `json:"type"`
	URL            string `json:"url"`
	FriendlyName   string `json:"friendlyName"`
	Interval       int    `json:"interval"`
	HTTPMethodType string `json:"httpMethodType"`
	Timeout        int    `json:"timeout"`
	GracePeriod    int    `json:"gracePeriod"`
}

// NewCreateMonitorRequest fills defaults for unset fields and applies the
// API's limits to the values before they are sent.
func NewCreateMonitorRequest(spec domain.MonitorSpec) CreateMonitorRequest {
	req := CreateMonitorRequest{
		Type:           "http",
		URL:            spec.URL,
		FriendlyName:   spec.FriendlyName,
		Interval:       spec.Interval,
		HTTPMethodType: spec.HTTPMethod,
		Timeout:        spec.Timeout,
		GracePeriod:    spec.GracePeriod,
	}
	if req.Interval <= 0 {
		req.Interval = DefaultInterval
	}
	if req.HTTPMethodType == "" {
		req.HTTPMethodType = DefaultHTTPMethod
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}
	if req.GracePeriod < 0 {
		req.GracePeriod = DefaultGracePeriod
	}
	return req.Normalize()
}

// Normalize uppercases the method and clips the display name to the
// length the API accepts.
func (r CreateMonitorRequest) Normalize() CreateMonitorRequest {
	r.HTTPMethodType = strings.ToUpper(r.HTTPMethodType)
	r.FriendlyName = extract.ClipFriendlyName(r.FriendlyName)
	return r
}

// FindMonitorByURL returns the first monitor whose normalized URL equals
// normalizedDomain, without fetching any page past the match. A listing that
// fails part way is treated as the end of the collection. The error is only
// set when ctx is done.
func (c *Client) FindMonitorByURL(ctx context.Context, normalizedDomain string) (*domain.RemoteMonitor, error) {
	pager := c.ListMonitors()
	for m := range pager.All(ctx) {
		if extract.Normalize(m.URL) == normalizedDomain {
			return &m, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

// CreateHTTPMonitor issues one POST /monitors. The caller checks the
// response for an id; a response without one is a failed creation.
func (c *Client) CreateHTTPMonitor(ctx context.Context, spec domain.MonitorSpec) (domain.APIResponse, error) {
	return c.Do(ctx, http.MethodPost, monitorsPath, NewCreateMonitorRequest(spec))
}
