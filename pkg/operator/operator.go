package operator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/runningman84/replica-monitor/pkg/config"
	"github.com/runningman84/replica-monitor/pkg/models"
	"github.com/runningman84/replica-monitor/pkg/parser"
	"github.com/runningman84/replica-monitor/pkg/render"
	"github.com/runningman84/replica-monitor/pkg/replica"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// SnapshotSource fetches the current snapshot of a dashboard
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, url string) (*models.ReplicaSnapshot, error)
}

// Operator keeps the latest snapshot of every configured dashboard
type Operator struct {
	config   *config.Config
	source   SnapshotSource
	renderer render.Renderer

	outMu sync.Mutex
	out   io.Writer

	mu       sync.RWMutex
	latest   map[string]*models.ReplicaSnapshot
	failures map[string]int // consecutive failed refreshes per dashboard
}

// NewOperator creates a new operator instance writing rendered snapshots to out
func NewOperator(cfg *config.Config, out io.Writer) (*Operator, error) {
	renderer, err := render.NewRenderer(cfg.OutputFormat, render.Options{WebserverPort: cfg.WebserverPort})
	if err != nil {
		return nil, err
	}

	return &Operator{
		config:   cfg,
		source:   replica.NewManager(cfg),
		renderer: renderer,
		out:      out,
		latest:   make(map[string]*models.ReplicaSnapshot),
		failures: make(map[string]int),
	}, nil
}

// Run refreshes every dashboard on the configured interval until ctx is cancelled.
// It returns an error only when a dashboard exceeds MaxConsecutiveFailures.
func (o *Operator) Run(ctx context.Context) error {
	o.logConfig()

	g, gctx := errgroup.WithContext(ctx)
	for _, url := range o.config.DashboardURLs {
		g.Go(func() error {
			return o.watch(gctx, url)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	klog.Infof("Stopped watching %d dashboard(s)", len(o.config.DashboardURLs))
	return nil
}

// RunOnce refreshes every dashboard a single time
func (o *Operator) RunOnce(ctx context.Context) error {
	o.logConfig()

	// Track errors during processing
	var mu sync.Mutex
	var errs []error

	g, gctx := errgroup.WithContext(ctx)
	for _, url := range o.config.DashboardURLs {
		g.Go(func() error {
			if err := o.refresh(gctx, url); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("dashboard %s: %w", url, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("operator encountered %d error(s) during refresh: %w", len(errs), errors.Join(errs...))
	}

	klog.Infof("Refresh completed successfully for %d dashboard(s)", len(o.config.DashboardURLs))
	return nil
}

func (o *Operator) watch(ctx context.Context, url string) error {
	ticker := time.NewTicker(o.config.RefreshInterval)
	defer ticker.Stop()

	for {
		if err := o.refresh(ctx, url); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if n := o.failureCount(url); o.config.MaxConsecutiveFailures > 0 && n >= o.config.MaxConsecutiveFailures {
				return fmt.Errorf("dashboard %s failed %d time(s) in a row: %w", url, n, err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// refresh fetches one dashboard and replaces its stored snapshot
func (o *Operator) refresh(ctx context.Context, url string) error {
	snapshot, err := o.source.GetSnapshot(ctx, url)
	if err != nil {
		o.recordFailure(url)

		if errors.Is(err, parser.ErrMalformedDocument) {
			klog.Warningf("Dashboard %s could not be parsed, the page layout may have changed: %v", url, err)
		} else if ctx.Err() == nil {
			klog.Warningf("Replica at %s is not reachable: %v", url, err)
		}
		return err
	}

	snapshot = o.filter(snapshot)
	o.store(url, snapshot)
	o.logSnapshotSummary(url, snapshot)

	o.outMu.Lock()
	defer o.outMu.Unlock()
	if err := o.renderer.Render(o.out, url, snapshot); err != nil {
		return fmt.Errorf("failed to render snapshot: %w", err)
	}

	return nil
}

// Latest returns the most recent snapshot of a dashboard, if the last refresh succeeded
func (o *Operator) Latest(url string) (*models.ReplicaSnapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.latest[url]
	return s, ok
}

func (o *Operator) store(url string, snapshot *models.ReplicaSnapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.latest[url] = snapshot
	o.failures[url] = 0
}

// recordFailure drops the stored snapshot, a replica that does not answer has no state to show
func (o *Operator) recordFailure(url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.latest, url)
	o.failures[url]++
}

func (o *Operator) failureCount(url string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.failures[url]
}

// filter returns a copy of the snapshot without canisters outside the whitelist
func (o *Operator) filter(snapshot *models.ReplicaSnapshot) *models.ReplicaSnapshot {
	if len(o.config.CanisterWhitelist) == 0 {
		return snapshot
	}

	filtered := *snapshot
	filtered.Canisters = nil
	for _, c := range snapshot.Canisters {
		if o.config.IsCanisterAllowed(c.ID) {
			filtered.Canisters = append(filtered.Canisters, c)
		} else {
			klog.V(1).Infof("Skipping canister %s (not in whitelist)", c.ID)
		}
	}
	return &filtered
}

func (o *Operator) logConfig() {
	klog.Info("Current config")
	klog.Infof("Log level: %s", o.config.LogLevel)
	klog.Infof("Output format: %s", o.config.OutputFormat)
	klog.Infof("Dashboards: %v", o.config.DashboardURLs)
	klog.Infof("Refresh interval: %s", o.config.RefreshInterval)
	klog.Infof("Request timeout: %s", o.config.RequestTimeout)
	if len(o.config.CanisterWhitelist) > 0 {
		klog.Infof("Canister whitelist: %v", o.config.CanisterWhitelist)
	} else {
		klog.Infof("Canister whitelist: all canisters")
	}
	if o.config.MaxConsecutiveFailures > 0 {
		klog.Infof("Max consecutive failures: %d", o.config.MaxConsecutiveFailures)
	}
}

func (o *Operator) logSnapshotSummary(url string, snapshot *models.ReplicaSnapshot) {
	klog.V(1).Infof("Dashboard %s: replica %s, subnet %s, %d canister(s)",
		url, snapshot.ReplicaVersion, snapshot.SubnetType, len(snapshot.Canisters))

	for _, c := range snapshot.Canisters {
		if c.Status != "" && c.Status != "Running" {
			klog.Warningf(" Canister %s is %s", c.ID, c.Status)
		}
	}
}
