package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrLockUnavailable is returned when a per-domain lock cannot be acquired.
var ErrLockUnavailable = errors.New("domain lock unavailable")

// MonitorContext describes the monitor wanted for one domain.
type MonitorContext struct {
	Domain       string `json:"domain"`
	MonitorURL   string `json:"monitor_url"`
	FriendlyName string `json:"friendly_name"`
}

// RemoteMonitor is a monitor record owned by the monitoring service.
type RemoteMonitor struct {
	ID           int64          `json:"id"`
	URL          string         `json:"url"`
	FriendlyName string         `json:"friendlyName,omitempty"`
	Raw          map[string]any `json:"-"`
}

// MonitorSpec holds the parameters of an HTTP monitor to create.
// Intervals and timeouts are in seconds, as the monitoring API expects.
type MonitorSpec struct {
	URL          string
	FriendlyName string
	Interval     int
	HTTPMethod   string
	Timeout      int
	GracePeriod  int
}

// StatusCodeKey is the key under which the transport status code is stored
// in every APIResponse.
const StatusCodeKey = "code"

// APIResponse is a decoded monitoring API response. It always carries the
// transport status code under StatusCodeKey, even when the body was not JSON.
type APIResponse map[string]any

// StatusCode returns the transport status code, or 0 if none was recorded.
func (r APIResponse) StatusCode() int {
	switch v := r[StatusCodeKey].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

// ID returns the created identifier when the response carries a non-empty one.
func (r APIResponse) ID() (string, bool) {
	switch v := r["id"].(type) {
	case json.Number:
		if s := v.String(); s != "" && s != "0" {
			return s, true
		}
	case string:
		if v != "" {
			return v, true
		}
	case float64:
		if v != 0 {
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
	case int64:
		if v != 0 {
			return strconv.FormatInt(v, 10), true
		}
	case int:
		if v != 0 {
			return strconv.Itoa(v), true
		}
	}
	return "", false
}

// RemoteMonitorFrom converts one entry of a listing page. Entries that are
// not objects yield false.
func RemoteMonitorFrom(v any) (RemoteMonitor, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return RemoteMonitor{}, false
	}
	m := RemoteMonitor{Raw: obj}
	m.URL, _ = obj["url"].(string)
	m.FriendlyName, _ = obj["friendlyName"].(string)
	switch id := obj["id"].(type) {
	case json.Number:
		m.ID, _ = id.Int64()
	case float64:
		m.ID = int64(id)
	case string:
		m.ID, _ = strconv.ParseInt(id, 10, 64)
	}
	return m, true
}

func (m RemoteMonitor) String() string {
	return fmt.Sprintf("monitor %d (%s)", m.ID, m.URL)
}
