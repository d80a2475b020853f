// Package connectivity reports whether the catalog API is reachable.
package connectivity

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// Prober polls a URL and treats any answered request below 500 as online
type Prober struct {
	client   *resty.Client
	url      string
	interval time.Duration

	online atomic.Bool
}

func NewProber(url string, interval, timeout time.Duration) *Prober {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)

	return &Prober{
		client:   client,
		url:      url,
		interval: interval,
	}
}

func (p *Prober) Online() bool {
	return p.online.Load()
}

// Check issues a single probe and records its outcome
func (p *Prober) Check(ctx context.Context) bool {
	online := isReachable(ctx, p.client, p.url)
	p.online.Store(online)
	return online
}

// Watch probes every interval and reports each transition away from the last
// recorded state until ctx is done. Call Check first to record the initial state.
func (p *Prober) Watch(ctx context.Context, onChange func(online bool)) error {
	last := p.Online()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			online := p.Check(ctx)
			if ctx.Err() != nil {
				return nil
			}
			if online == last {
				continue
			}
			last = online
			log.Infof("🌐 Connectivity changed: %s", Describe(online))
			onChange(online)
		}
	}
}

func (p *Prober) Close() error {
	return p.client.Close()
}

func isReachable(ctx context.Context, client *resty.Client, url string) bool {
	resp, err := client.R().
		SetContext(ctx).
		Head(url)

	if err != nil {
		log.Debugf("Connectivity probe failed for %s: %v", url, err)
		return false
	}

	if resp.StatusCode() >= 500 {
		log.Debugf("Connectivity probe for %s returned %s", url, resp.Status())
		return false
	}

	return true
}

// Describe renders a connectivity state for logs
func Describe(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
