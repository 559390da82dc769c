// ==============================================
// File: internal/watcher/watcher.go
// ==============================================
// Package watcher observes a deposit address for an incoming SOL transfer
// and fires a callback exactly once when the watch threshold is crossed.
//
// De-duplication state is per watch instance and in-memory only: a watch's
// lifetime matches one expected payment, and a process restart drops every
// pending watch along with its disposable deposit keypair.
package watcher

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/nikola43/SPLTokenDeployer/internal/blockchain"
)

// ChainSource is the slice of the ledger client the watcher needs.
type ChainSource interface {
	GetLatestSignature(ctx context.Context, address solana.PublicKey) (solana.Signature, bool, error)
	GetTransfers(ctx context.Context, signature solana.Signature) ([]blockchain.Transfer, error)
	SubscribeAccount(ctx context.Context, pubkey solana.PublicKey, onChange func()) (blockchain.Subscription, error)
}

// DepositFunc receives the sender and the transferred lamports of the
// qualifying deposit.
type DepositFunc func(sender solana.PublicKey, lamports uint64)

// Watcher creates deposit watches against one ledger client.
type Watcher struct {
	client ChainSource
	logger *zap.Logger
}

func New(client ChainSource, logger *zap.Logger) *Watcher {
	return &Watcher{client: client, logger: logger.Named("watcher")}
}

// Watch subscribes to balance changes on address and invokes onDeposit at
// most once, for the first transfer to the address whose amount meets the
// threshold. No expiry is enforced; cancel ctx to stop a watch that never
// gets funded.
func (w *Watcher) Watch(
	ctx context.Context,
	address solana.PublicKey,
	thresholdLamports uint64,
	onDeposit DepositFunc,
) (*Watch, error) {
	watch := &Watch{
		address:   address,
		threshold: thresholdLamports,
		onDeposit: onDeposit,
		processed: make(map[solana.Signature]struct{}),
		client:    w.client,
		logger: w.logger.With(
			zap.String("address", address.String()),
			zap.Uint64("threshold_lamports", thresholdLamports)),
	}

	sub, err := w.client.SubscribeAccount(ctx, address, func() {
		watch.handleNotification(ctx)
	})
	if err != nil {
		return nil, err
	}

	// A notification can arrive before the handle is stored. attachSub
	// closes that window: a deposit that already fired Stop gets its
	// unsubscribe here.
	watch.attachSub(sub)

	watch.logger.Info("Watching for SOL deposit")
	return watch, nil
}

// Watch is one live deposit watch.
type Watch struct {
	address   solana.PublicKey
	threshold uint64
	onDeposit DepositFunc
	client    ChainSource
	logger    *zap.Logger

	mu        sync.Mutex
	sub       blockchain.Subscription
	processed map[solana.Signature]struct{}
	fired     bool
	stopped   bool
}

func (ws *Watch) attachSub(sub blockchain.Subscription) {
	ws.mu.Lock()
	ws.sub = sub
	stopped := ws.stopped
	ws.mu.Unlock()
	if stopped {
		sub.Unsubscribe()
	}
}

// Stop unsubscribes the watch. Safe to call repeatedly, after the deposit
// has fired, and before the subscription handle is attached.
func (ws *Watch) Stop() {
	ws.mu.Lock()
	sub := ws.sub
	alreadyStopped := ws.stopped
	ws.stopped = true
	ws.mu.Unlock()

	if sub != nil && !alreadyStopped {
		sub.Unsubscribe()
	}
}

func (ws *Watch) handleNotification(ctx context.Context) {
	sig, ok, err := ws.client.GetLatestSignature(ctx, ws.address)
	if err != nil {
		// Errors on a single notification are swallowed; the
		// subscription stays up for the next one.
		ws.logger.Warn("Failed to fetch latest signature", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	ws.mu.Lock()
	if ws.fired {
		ws.mu.Unlock()
		return
	}
	if _, seen := ws.processed[sig]; seen {
		ws.mu.Unlock()
		ws.logger.Debug("Duplicate signature suppressed", zap.String("signature", sig.String()))
		return
	}
	ws.processed[sig] = struct{}{}
	ws.mu.Unlock()

	transfers, err := ws.client.GetTransfers(ctx, sig)
	if err != nil {
		ws.logger.Warn("Failed to parse transaction", zap.String("signature", sig.String()), zap.Error(err))
		return
	}

	// Only the first transfer whose destination matches is considered;
	// further instructions in the same transaction are not scanned.
	for _, tr := range transfers {
		if !tr.Destination.Equals(ws.address) {
			continue
		}
		ws.observeTransfer(tr, sig)
		return
	}
}

func (ws *Watch) observeTransfer(tr blockchain.Transfer, sig solana.Signature) {
	if tr.Lamports < ws.threshold {
		ws.logger.Info("Deposit below threshold, still watching",
			zap.Uint64("lamports", tr.Lamports),
			zap.String("sender", tr.Source.String()))
		return
	}

	ws.mu.Lock()
	if ws.fired {
		ws.mu.Unlock()
		return
	}
	ws.fired = true
	ws.mu.Unlock()

	ws.Stop()
	ws.logger.Info("Deposit received",
		zap.Uint64("lamports", tr.Lamports),
		zap.String("sender", tr.Source.String()),
		zap.String("signature", sig.String()))
	ws.onDeposit(tr.Source, tr.Lamports)
}
