package uptimerobot

import (
	"context"
	"iter"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/uptime-bridge/internal/core/domain"
	"github.com/tjfontaine/uptime-bridge/internal/metrics"
)

// Pager walks the monitor collection one page at a time, fetching the next
// page only when the current one is used up. A Pager is a single traversal
// and cannot be restarted; call ListMonitors again for a fresh one.
type Pager struct {
	client *Client

	next    string
	visited map[string]struct{}
	done    bool

	page  []domain.RemoteMonitor
	pos   int
	cur   domain.RemoteMonitor
	pages int
	err   error
}

// ListMonitors starts a new traversal at the first page.
func (c *Client) ListMonitors() *Pager {
	first := c.NormalizeAPIURL(monitorsPath)
	return &Pager{
		client:  c,
		next:    first,
		visited: map[string]struct{}{first: {}},
	}
}

// Next advances to the next monitor, fetching a page if needed. It returns
// false once the collection is exhausted or a page could not be fetched.
func (p *Pager) Next(ctx context.Context) bool {
	for {
		if p.pos < len(p.page) {
			p.cur = p.page[p.pos]
			p.pos++
			return true
		}
		if p.done {
			return false
		}
		p.fetch(ctx)
	}
}

// Monitor returns the monitor Next advanced to.
func (p *Pager) Monitor() domain.RemoteMonitor {
	return p.cur
}

// Err reports why the traversal stopped early. A failed page fetch ends the
// sequence like an empty page would; Err lets callers tell the two apart.
func (p *Pager) Err() error {
	return p.err
}

// Pages returns how many pages have been requested so far.
func (p *Pager) Pages() int {
	return p.pages
}

// All adapts the pager to a range-over-func sequence.
func (p *Pager) All(ctx context.Context) iter.Seq[domain.RemoteMonitor] {
	return func(yield func(domain.RemoteMonitor) bool) {
		for p.Next(ctx) {
			if !yield(p.Monitor()) {
				return
			}
		}
	}
}

func (p *Pager) fetch(ctx context.Context) {
	p.pages++
	metrics.MonitorPagesFetched.Inc()

	resp, err := p.client.Do(ctx, http.MethodGet, p.next, nil)
	if err != nil {
		p.stop(err, resp)
		return
	}
	if !isSuccess(resp.StatusCode()) {
		p.stop(&StatusError{Code: resp.StatusCode(), Response: resp}, resp)
		return
	}

	p.page = p.page[:0]
	p.pos = 0
	if items, ok := resp["data"].([]any); ok {
		for _, item := range items {
			if m, ok := domain.RemoteMonitorFrom(item); ok {
				p.page = append(p.page, m)
			}
		}
	}

	cursor, _ := resp["nextLink"].(string)
	if cursor == "" {
		p.done = true
		return
	}
	cursor = p.client.NormalizeAPIURL(cursor)
	if _, seen := p.visited[cursor]; seen {
		p.done = true
		return
	}
	p.visited[cursor] = struct{}{}
	p.next = cursor
}

func (p *Pager) stop(err error, resp domain.APIResponse) {
	p.err = err
	p.done = true
	p.page = nil
	p.pos = 0
	p.client.logger.Warn("GET /monitors failed",
		slog.Int("page", p.pages),
		slog.Int("status", resp.StatusCode()),
		slog.Any("response", map[string]any(resp)),
		slog.String("error", err.Error()),
	)
}
