package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/mezonai/zakat/events"
	"github.com/mezonai/zakat/exception"
	"github.com/mezonai/zakat/ledger"
	"github.com/mezonai/zakat/logx"
)

// SnapshotSaver persists ledger snapshots.
type SnapshotSaver interface {
	Save(snap ledger.Snapshot) error
}

// PersistService saves the ledger whenever its state changes. Bursts of
// events collapse into one save.
type PersistService struct {
	ledger *ledger.Ledger
	bus    *events.EventBus
	saver  SnapshotSaver

	mu     sync.Mutex
	subID  events.SubscriberID
	cancel context.CancelFunc
	done   chan struct{}
	saves  uint64
}

func NewPersistService(ld *ledger.Ledger, bus *events.EventBus, saver SnapshotSaver) *PersistService {
	return &PersistService{ledger: ld, bus: bus, saver: saver}
}

func (p *PersistService) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	id, ch := p.bus.Subscribe(
		events.EventParticipantRegistered,
		events.EventParticipantDeactivated,
		events.EventTransactionAdmitted,
		events.EventBlockCommitted,
	)
	ctx, p.cancel = context.WithCancel(ctx)
	p.subID = id
	p.done = make(chan struct{})
	done := p.done

	// a panic here exits the process
	exception.SafeGoWithPanic("PersistService", func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				drain(ch)
				if err := p.Flush(); err != nil {
					logx.Error("STORE", "Failed to persist ledger:", err.Error())
				}
			}
		}
	})
}

// Stop unsubscribes, waits for the loop and writes a final snapshot.
func (p *PersistService) Stop() error {
	p.mu.Lock()
	cancel, done, id := p.cancel, p.done, p.subID
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if p.bus.HasSubscriber(id) {
		p.bus.Unsubscribe(id)
	}
	<-done
	return p.Flush()
}

// Flush saves the current ledger state.
func (p *PersistService) Flush() error {
	if err := p.saver.Save(p.ledger.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	p.mu.Lock()
	p.saves++
	p.mu.Unlock()
	return nil
}

func (p *PersistService) Saves() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

func drain(ch <-chan events.LedgerEvent) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
