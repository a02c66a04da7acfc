package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/naruebet/tmwatch/internal/metrics"
	"github.com/naruebet/tmwatch/internal/models"
)

// Durable is a Gateway whose backend can be health-checked.
type Durable interface {
	Gateway
	Ping(ctx context.Context) error
}

// DialFunc establishes the durable backend. Called once on first use and again
// by the health probe while the backend is down.
type DialFunc func(ctx context.Context) (Durable, error)

// Mode identifies which physical store calls currently target.
type Mode string

const (
	ModeDurable   Mode = "durable"
	ModeEphemeral Mode = "ephemeral"
)

// Selector routes Gateway calls to the durable store when it is reachable and
// to the bounded ephemeral buffer otherwise. A dial failure never crashes the
// process or fails an ingestion; it flips the selector to ephemeral mode until
// the polled health probe sees the backend again.
//
// Records written to the buffer while the backend was down are not migrated
// when it recovers; List overlays the still-buffered entries so they stay
// visible until FIFO eviction ages them out.
type Selector struct {
	log  *slog.Logger
	dial DialFunc
	eph  *Ephemeral

	mu      sync.Mutex
	durable Durable
	up      bool
	dialed  bool
}

func NewSelector(dial DialFunc, eph *Ephemeral, log *slog.Logger) *Selector {
	metrics.StoreMode.Set(0)
	return &Selector{log: log, dial: dial, eph: eph}
}

// Mode reports the last-known storage mode. Calls never wait for a probe.
func (s *Selector) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.up {
		return ModeDurable
	}
	return ModeEphemeral
}

func (s *Selector) Connected() bool { return s.Mode() == ModeDurable }

// handle returns the live durable gateway, dialing lazily on first use.
// After a failed first dial only the probe retries; request paths stay on the
// buffer rather than paying a connection attempt per call.
func (s *Selector) handle(ctx context.Context) Durable {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.up {
		return s.durable
	}
	if s.dialed || s.dial == nil {
		return nil
	}
	s.dialed = true
	d, err := s.dial(ctx)
	if err != nil {
		s.log.Warn("durable store unreachable, using ephemeral buffer", "err", err)
		return nil
	}
	s.setUpLocked(d)
	return s.durable
}

func (s *Selector) setUpLocked(d Durable) {
	s.durable = d
	s.up = true
	metrics.StoreMode.Set(1)
	s.log.Info("storage mode", "mode", ModeDurable)
}

func (s *Selector) markDown(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.up {
		return
	}
	s.up = false
	metrics.StoreMode.Set(0)
	s.log.Warn("durable store failed, falling back to ephemeral buffer", "err", err)
}

// Put writes tx to the active store. A durable failure flips the mode and
// retries the same record against the buffer in-call, so ingestion never
// surfaces a storage error. The buffer write cannot fail by construction.
func (s *Selector) Put(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if d := s.handle(ctx); d != nil {
		out, err := d.Put(ctx, tx)
		if err == nil {
			return out, nil
		}
		s.markDown(err)
	}
	return s.eph.Put(ctx, tx)
}

func (s *Selector) Get(ctx context.Context, id string) (models.Transaction, error) {
	if d := s.handle(ctx); d != nil {
		tx, err := d.Get(ctx, id)
		switch {
		case err == nil:
			return tx, nil
		case errors.Is(err, ErrNotFound):
			// may still be buffered from a degraded period
		default:
			s.markDown(err)
			return models.Transaction{}, err
		}
	}
	return s.eph.Get(ctx, id)
}

// List merges durable rows with any still-buffered ephemeral records so a mode
// transition never makes a buffered record vanish. Durable copies win on id.
func (s *Selector) List(ctx context.Context, limit int) ([]models.Transaction, error) {
	buffered, _ := s.eph.List(ctx, 0)

	d := s.handle(ctx)
	if d == nil {
		if limit > 0 && limit < len(buffered) {
			buffered = buffered[:limit]
		}
		return buffered, nil
	}

	rows, err := d.List(ctx, limit)
	if err != nil {
		s.markDown(err)
		return nil, err
	}

	seen := make(map[string]struct{}, len(rows))
	for _, tx := range rows {
		seen[tx.ID] = struct{}{}
	}
	merged := rows
	for _, tx := range buffered {
		if _, ok := seen[tx.ID]; !ok {
			merged = append(merged, tx)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].OccurredAt.After(merged[j].OccurredAt)
	})
	if limit > 0 && limit < len(merged) {
		merged = merged[:limit]
	}
	return merged, nil
}

func (s *Selector) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) (models.Transaction, error) {
	if d := s.handle(ctx); d != nil {
		tx, err := d.UpdateStatus(ctx, id, status)
		switch {
		case err == nil:
			return tx, nil
		case errors.Is(err, ErrNotFound):
		default:
			s.markDown(err)
			return models.Transaction{}, err
		}
	}
	return s.eph.UpdateStatus(ctx, id, status)
}

func (s *Selector) DeleteOne(ctx context.Context, id string) error {
	found := s.eph.DeleteOne(ctx, id) == nil
	if d := s.handle(ctx); d != nil {
		err := d.DeleteOne(ctx, id)
		switch {
		case err == nil:
			found = true
		case errors.Is(err, ErrNotFound):
		default:
			s.markDown(err)
			return err
		}
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (s *Selector) DeleteAll(ctx context.Context) error {
	_ = s.eph.DeleteAll(ctx)
	if d := s.handle(ctx); d != nil {
		if err := d.DeleteAll(ctx); err != nil {
			s.markDown(err)
			return err
		}
	}
	return nil
}

// Probe re-evaluates durable reachability once. Called on a fixed cadence,
// never from a request path.
func (s *Selector) Probe(ctx context.Context) {
	s.mu.Lock()
	d, up, dial := s.durable, s.up, s.dial
	s.mu.Unlock()

	if up {
		if err := d.Ping(ctx); err != nil {
			s.markDown(err)
		}
		return
	}
	if d != nil {
		// keep the cached handle; reconnecting means a successful ping
		if err := d.Ping(ctx); err == nil {
			s.mu.Lock()
			s.setUpLocked(d)
			s.mu.Unlock()
		}
		return
	}
	if dial == nil {
		return
	}
	nd, err := dial(ctx)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.dialed = true
	s.setUpLocked(nd)
	s.mu.Unlock()
}

// StartProbe runs Probe every interval until ctx is cancelled.
func (s *Selector) StartProbe(ctx context.Context, interval time.Duration) {
	if s.dial == nil {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				pctx, cancel := context.WithTimeout(ctx, interval/2)
				s.Probe(pctx)
				cancel()
			}
		}
	}()
}
