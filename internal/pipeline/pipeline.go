// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates graph construction in three phases:
// seed (direct citations of the master paper), enrich (secondary-source
// metadata for the master), and extend (second-degree citations plus
// stub hydration). All mutation leaves this package as messages; the
// pipeline never touches the store directly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/citegraph/internal/fetch"
	"github.com/pdiddy/citegraph/internal/progress"
	"github.com/pdiddy/citegraph/internal/resolve"
	"github.com/pdiddy/citegraph/internal/store"
	"github.com/pdiddy/citegraph/pkg/types"
)

// State is the pipeline lifecycle. Failed is terminal for the session;
// a new seed restarts the whole graph.
type State int

const (
	StateIdle State = iota
	StateSeeding
	StateEnriching
	StateAwaitingExtend
	StateExtending
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeding:
		return "seeding"
	case StateEnriching:
		return "enriching"
	case StateAwaitingExtend:
		return "awaiting-extend"
	case StateExtending:
		return "extending"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pipeline drives one analysis session. It runs off the store's
// execution context and communicates exclusively through the outbound
// message channel; fetch issuance is fire-and-forget from the caller's
// perspective.
type Pipeline struct {
	client   fetch.Client
	enricher fetch.Enricher
	cfg      types.GraphConfig
	out      chan<- []types.Message
	snapshot func() *store.Snapshot
	log      *zap.Logger

	resolver *resolve.Resolver
	progress *progress.Calculator

	mu        sync.Mutex
	state     State
	masterID  string
	masterIDs []types.NamespacedID

	done chan struct{}
}

// New wires a pipeline. The snapshot func supplies the current store
// view for the extend phase, which works on live state rather than a
// fixed initial batch.
func New(
	client fetch.Client,
	enricher fetch.Enricher,
	cfg types.GraphConfig,
	out chan<- []types.Message,
	snapshot func() *store.Snapshot,
	log *zap.Logger,
) (*Pipeline, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Progress.Validate(); err != nil {
		return nil, fmt.Errorf("progress config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		client:   client,
		enricher: enricher,
		cfg:      cfg,
		out:      out,
		snapshot: snapshot,
		log:      log,
		resolver: resolve.New(nil, cfg.NamespacePriority),
		progress: progress.NewCalculator(cfg.Progress),
		done:     make(chan struct{}),
	}, nil
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// MasterID returns the master paper's internal id, once seeded.
func (p *Pipeline) MasterID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.masterID
}

// Done is closed when the session finishes, whether extended or failed.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Start validates the master record and launches seed and enrich in the
// background. A master above the configured citation bound is rejected
// here, before any fetch is issued. The call returns immediately; all
// outcomes surface as messages.
func (p *Pipeline) Start(ctx context.Context, master *fetch.RawRecord) error {
	if master == nil {
		return errors.New("no master record")
	}
	if master.CitedByCount > p.cfg.MaxMasterCitedBy {
		return fmt.Errorf("master paper has %d citations, above the %d bound: narrow the selection",
			master.CitedByCount, p.cfg.MaxMasterCitedBy)
	}

	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already started (state %s)", p.state)
	}
	p.state = StateSeeding
	p.mu.Unlock()

	go p.background(func() error {
		if err := p.seed(ctx, master); err != nil {
			return err
		}
		p.setState(StateEnriching)
		if err := p.enrich(ctx); err != nil {
			return err
		}
		p.setState(StateAwaitingExtend)
		// Emitted after the transition so the extend trigger, however
		// promptly it fires, finds the pipeline ready.
		p.emit(types.Message{Kind: types.KindPhaseComplete, Phase: &types.PhaseComplete{Phase: types.PhaseEnrich}})
		return nil
	})
	return nil
}

// StartExtend launches the extend phase. It is legal only after the
// enrich completion message has been observed; the bridge is the sole
// caller in production.
func (p *Pipeline) StartExtend(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateAwaitingExtend {
		p.mu.Unlock()
		return fmt.Errorf("extend not ready (state %s)", p.state)
	}
	p.state = StateExtending
	p.mu.Unlock()

	go p.background(func() error {
		if err := p.extend(ctx); err != nil {
			return err
		}
		p.setState(StateDone)
		close(p.done)
		return nil
	})
	return nil
}

// background runs fn in the pipeline's execution context. A panic here
// is the background context itself failing, which is a transport-level
// fault: surfaced as fatal, never silently swallowed.
func (p *Pipeline) background(fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(fmt.Sprintf("pipeline crashed: %v", r))
		}
	}()
	if err := fn(); err != nil {
		p.fail(err.Error())
	}
}

// fail emits the fatal message, marks the session failed, and releases
// waiters. Failed is terminal: the UI must restart the whole flow.
func (p *Pipeline) fail(detail string) {
	p.log.Error("pipeline failed", zap.String("detail", detail))

	p.mu.Lock()
	alreadyDone := p.state == StateDone || p.state == StateFailed
	p.state = StateFailed
	p.mu.Unlock()

	p.emit(types.Message{Kind: types.KindFatal, Text: detail})
	if !alreadyDone {
		close(p.done)
	}
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// emit hands one tick of messages to the synchronization channel.
func (p *Pipeline) emit(msgs ...types.Message) {
	if len(msgs) == 0 {
		return
	}
	p.out <- msgs
}

func (p *Pipeline) progressMsg(step progress.Step, fraction float64) types.Message {
	return types.Message{
		Kind:     types.KindProgress,
		Progress: &types.ProgressUpdate{Percent: p.progress.Update(step, fraction)},
	}
}

func statusMsg(state types.AppState, message string) types.Message {
	return types.Message{
		Kind:   types.KindStatus,
		Status: &types.StatusUpdate{State: state, Message: message},
	}
}

func warningMsg(format string, args ...any) types.Message {
	return types.Message{Kind: types.KindWarning, Text: fmt.Sprintf(format, args...)}
}

// boundedGroup returns an errgroup honoring the configured fetch
// concurrency, the worker pool for per-entity fetches.
func (p *Pipeline) boundedGroup(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.FetchConcurrency)
	return g, gctx
}
