package registry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/stubterm/backend/internal/logging"
	"github.com/GriffinCanCode/stubterm/backend/internal/providers/terminal"
	"github.com/GriffinCanCode/stubterm/backend/internal/shared/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TestConnect sends one echo round trip to id's stub and persists the
// outcome as the shell's status. Transport, protocol and cipher failures
// report false, as does an expired deadline. An unknown id, a cancelled
// context or a store failure is an error.
func (m *Manager) TestConnect(ctx context.Context, id uint) (bool, error) {
	release, err := m.locks.acquire(ctx, id)
	if err != nil {
		return false, err
	}
	defer release()

	shell, err := m.getShell(ctx, id)
	if err != nil {
		return false, err
	}
	return m.probe(ctx, shell)
}

// ProbeAll tests every stored shell concurrently and returns the outcome
// per id. Shells whose probe errored are left out.
func (m *Manager) ProbeAll(ctx context.Context) (map[uint]bool, error) {
	shells, err := m.store.List(ctx, types.ShellFilter{})
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make(map[uint]bool, len(shells))
		g       errgroup.Group
	)
	g.SetLimit(m.probeConcurrency)

	for i := range shells {
		shell := shells[i]
		g.Go(func() error {
			release, err := m.locks.acquire(ctx, shell.ID)
			if err != nil {
				return nil
			}
			defer release()

			alive, err := m.probe(ctx, &shell)
			if err != nil {
				m.logger.Debug("probe skipped", zap.Uint("shell_id", shell.ID), zap.Error(err))
				return nil
			}
			mu.Lock()
			results[shell.ID] = alive
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// probe runs the echo check. Callers hold the shell's lock.
func (m *Manager) probe(ctx context.Context, shell *types.Shell) (bool, error) {
	link, err := m.linkFor(shell)
	if err != nil {
		return false, err
	}

	token := uuid.NewString()
	out, err := terminal.RunOnce(ctx, link, terminal.DialectFor(string(shell.Type)), "", "echo "+token)
	if errors.Is(ctx.Err(), context.Canceled) {
		return false, ctx.Err()
	}

	alive := err == nil && strings.Contains(out, token)
	m.recorder.ProbeCompleted(alive)

	status := types.StatusDead
	if alive {
		status = types.StatusAlive
		m.transport.ResetBreaker(shell.Location)
	} else {
		m.logger.Warn("shell unreachable",
			zap.Uint("shell_id", shell.ID),
			zap.String("url", shell.Location),
			zap.Error(err))
	}

	if err := m.store.SetStatus(context.WithoutCancel(ctx), shell.ID, status, time.Now()); err != nil {
		return alive, m.storeError(shell.ID, err)
	}
	return alive, nil
}

// Prober sweeps every shell on a fixed interval.
type Prober struct {
	manager  *Manager
	interval time.Duration
	logger   *logging.Logger
}

// NewProber creates a prober. A non-positive interval disables it.
func NewProber(manager *Manager, interval time.Duration, logger *logging.Logger) *Prober {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Prober{manager: manager, interval: interval, logger: logger}
}

// Run sweeps until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, err := p.manager.ProbeAll(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				p.logger.Warn("status sweep failed", zap.Error(err))
				continue
			}
			alive := 0
			for _, ok := range results {
				if ok {
					alive++
				}
			}
			p.logger.Info("probe sweep complete",
				zap.Int("shells", len(results)),
				zap.Int("alive", alive))
		}
	}
}
