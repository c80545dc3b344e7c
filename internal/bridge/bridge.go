// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bridge is the synchronization channel between the pipeline
// and the store. It is the only legal mutation path into the store:
// each tick's graph-mutation messages are folded into one atomic batch,
// then control messages are processed one at a time in arrival order.
package bridge

import (
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/citegraph/internal/store"
	"github.com/pdiddy/citegraph/pkg/types"
)

// Bridge consumes message ticks and applies them to the store. It
// processes one tick at a time, so readers always observe the store
// either before or after a batch, never partway through.
type Bridge struct {
	store *store.Store
	log   *zap.Logger

	mu               sync.Mutex
	halted           bool
	onEnrichComplete func()
}

// New creates a bridge over the given store.
func New(st *store.Store, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{store: st, log: log}
}

// OnEnrichComplete registers the sole trigger for the extend phase: it
// runs when an enrich phase-completion control message is observed.
func (b *Bridge) OnEnrichComplete(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onEnrichComplete = fn
}

// Halted reports whether a fatal fault stopped message processing.
func (b *Bridge) Halted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.halted
}

// Run consumes ticks until the channel closes. It is the consumer side
// of the producer/consumer split: the pipeline owns the sending end.
func (b *Bridge) Run(in <-chan []types.Message) {
	for msgs := range in {
		b.Tick(msgs)
	}
}

// Tick processes one tick's messages: the batchable subset is applied
// to the store in a single atomic step, then control messages run in
// arrival order. After a fatal message, all further ticks are dropped.
func (b *Bridge) Tick(msgs []types.Message) {
	if b.Halted() {
		b.log.Debug("tick dropped after fatal fault", zap.Int("messages", len(msgs)))
		return
	}

	delta, control := b.partition(msgs)
	if !delta.Empty() {
		if err := b.store.ApplyBatch(delta); err != nil {
			b.fatal("batch apply failed: " + err.Error())
			return
		}
	}

	for _, msg := range control {
		if b.Halted() {
			return
		}
		b.handleControl(msg)
	}
}

// partition splits a tick by the static kind classification, folding
// all batchable messages into one delta. Unknown kinds are logged and
// dropped, never fatal.
func (b *Bridge) partition(msgs []types.Message) (types.Delta, []types.Message) {
	var delta types.Delta
	var control []types.Message

	for _, msg := range msgs {
		if !types.KnownKind(msg.Kind) {
			b.log.Warn("unknown message kind", zap.String("kind", string(msg.Kind)))
			continue
		}
		if !types.Batchable(msg.Kind) {
			control = append(control, msg)
			continue
		}

		switch msg.Kind {
		case types.KindGraphReset:
			delta.Reset = true
		case types.KindPaperUpsert:
			if msg.Paper != nil {
				delta.Papers = append(delta.Papers, *msg.Paper)
			}
		case types.KindAuthorUpsert:
			if msg.Author != nil {
				delta.Authors = append(delta.Authors, *msg.Author)
			}
		case types.KindInstitutionUpsert:
			if msg.Institution != nil {
				delta.Institutions = append(delta.Institutions, *msg.Institution)
			}
		case types.KindAuthorshipUpsert:
			if msg.Authorship != nil {
				delta.Authorships = append(delta.Authorships, *msg.Authorship)
			}
		case types.KindRelationshipUpsert:
			if msg.Relationship != nil {
				delta.Relationships = append(delta.Relationships, *msg.Relationship)
			}
		case types.KindPaperPatch:
			if msg.Patch != nil {
				delta.Patches = append(delta.Patches, *msg.Patch)
			}
		case types.KindExternalID:
			if msg.ExternalID != nil {
				delta.ExternalIDs = append(delta.ExternalIDs, *msg.ExternalID)
			}
		case types.KindAuthorMerge:
			if msg.Merge != nil {
				delta.Merges = append(delta.Merges, *msg.Merge)
			}
		}
	}
	return delta, control
}

func (b *Bridge) handleControl(msg types.Message) {
	switch msg.Kind {
	case types.KindProgress:
		if msg.Progress != nil {
			b.store.SetProgress(msg.Progress.Percent)
		}
	case types.KindStatus:
		if msg.Status != nil {
			b.store.SetStatus(msg.Status.State, msg.Status.Message)
		}
	case types.KindPhaseComplete:
		if msg.Phase == nil {
			return
		}
		b.log.Info("phase complete", zap.String("phase", msg.Phase.Phase))
		if msg.Phase.Phase != types.PhaseEnrich {
			return
		}
		b.mu.Lock()
		trigger := b.onEnrichComplete
		b.mu.Unlock()
		if trigger != nil {
			// The extend phase produces onto the same channel this
			// bridge consumes, so the trigger must not block the tick.
			go trigger()
		}
	case types.KindWarning:
		b.log.Warn("pipeline warning", zap.String("detail", msg.Text))
	case types.KindFatal:
		b.fatal(msg.Text)
	}
}

// fatal transitions the session to the error state and stops all
// further message processing, including batches already queued.
func (b *Bridge) fatal(detail string) {
	b.log.Error("fatal pipeline fault", zap.String("detail", detail))
	b.mu.Lock()
	b.halted = true
	b.mu.Unlock()
	b.store.SetStatus(types.StateError, detail)
}
