// ==============================================
// File: internal/blockchain/client.go
// ==============================================
// Package blockchain wraps the Solana RPC and WebSocket clients behind the
// Client interface consumed by the watcher and the deployment pipeline.
package blockchain

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"
)

const (
	confirmPollInterval = 500 * time.Millisecond
	submitMaxElapsed    = 30 * time.Second
)

// systemTransferIndex is the transfer instruction inside the system program.
const systemTransferIndex = 2

// RPCClient implements Client over one RPC endpoint plus its WebSocket
// counterpart.
type RPCClient struct {
	rpc    *rpc.Client
	logger *zap.Logger

	wsURL  string
	wsMu   sync.Mutex
	wsConn *ws.Client
}

var _ Client = (*RPCClient)(nil)

// NewRPCClient creates a client for one network. The WebSocket connection
// is established lazily on the first subscription.
func NewRPCClient(endpoint, wsEndpoint string, logger *zap.Logger) *RPCClient {
	return &RPCClient{
		rpc:    rpc.New(endpoint),
		wsURL:  wsEndpoint,
		logger: logger.Named("blockchain"),
	}
}

func (c *RPCClient) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, pubkey, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return out.Value, nil
}

func (c *RPCClient) GetLatestSignature(ctx context.Context, address solana.PublicKey) (solana.Signature, bool, error) {
	limit := 1
	sigs, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, address, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, false, fmt.Errorf("failed to get signatures: %w", err)
	}
	if len(sigs) == 0 {
		return solana.Signature{}, false, nil
	}
	return sigs[0].Signature, true, nil
}

func (c *RPCClient) GetTransfers(ctx context.Context, signature solana.Signature) ([]Transfer, error) {
	maxVersion := uint64(0)
	result, err := c.rpc.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if result == nil || result.Transaction == nil {
		return nil, errors.New("transaction not found")
	}
	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return TransfersFromTransaction(tx)
}

// TransfersFromTransaction extracts system-program transfers from a decoded
// transaction, preserving message order.
func TransfersFromTransaction(tx *solana.Transaction) ([]Transfer, error) {
	if tx == nil {
		return nil, errors.New("nil transaction")
	}
	msg := tx.Message

	var transfers []Transfer
	for _, ix := range msg.Instructions {
		program, err := msg.Program(ix.ProgramIDIndex)
		if err != nil {
			continue
		}
		if !program.Equals(solana.SystemProgramID) {
			continue
		}
		if len(ix.Data) < 12 || binary.LittleEndian.Uint32(ix.Data[0:4]) != systemTransferIndex {
			continue
		}
		if len(ix.Accounts) < 2 {
			continue
		}
		src := int(ix.Accounts[0])
		dst := int(ix.Accounts[1])
		if src >= len(msg.AccountKeys) || dst >= len(msg.AccountKeys) {
			continue
		}
		transfers = append(transfers, Transfer{
			Source:      msg.AccountKeys[src],
			Destination: msg.AccountKeys[dst],
			Lamports:    binary.LittleEndian.Uint64(ix.Data[4:12]),
		})
	}
	return transfers, nil
}

func (c *RPCClient) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get rent exemption: %w", err)
	}
	return lamports, nil
}

func (c *RPCClient) GetProgramAccountsByMint(ctx context.Context, programID, mint solana.PublicKey) ([]ProgramAccount, error) {
	result, err := c.rpc.GetProgramAccountsWithOpts(ctx, programID, &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Filters: []rpc.RPCFilter{
			{
				Memcmp: &rpc.RPCFilterMemcmp{
					Offset: 0,
					Bytes:  solana.Base58(mint.Bytes()),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get program accounts: %w", err)
	}

	accounts := make([]ProgramAccount, 0, len(result))
	for _, keyed := range result {
		if keyed == nil || keyed.Account == nil {
			continue
		}
		accounts = append(accounts, ProgramAccount{
			Pubkey: keyed.Pubkey,
			Data:   keyed.Account.Data.GetBinary(),
		})
	}
	return accounts, nil
}

// SendAndConfirm builds, signs, submits and confirms a transaction. The
// submit is retried with exponential backoff on transient errors (expired
// blockhash); signing failures and program rejections are permanent.
func (c *RPCClient) SendAndConfirm(
	ctx context.Context,
	instructions []solana.Instruction,
	payer solana.PublicKey,
	sign func(*solana.Transaction) error,
) (solana.Signature, error) {
	op := func() (solana.Signature, error) {
		blockhash, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
		if err != nil {
			return solana.Signature{}, fmt.Errorf("failed to get latest blockhash: %w", err)
		}

		tx, err := solana.NewTransaction(instructions, blockhash.Value.Blockhash, solana.TransactionPayer(payer))
		if err != nil {
			return solana.Signature{}, backoff.Permanent(fmt.Errorf("failed to create transaction: %w", err))
		}
		if err := sign(tx); err != nil {
			return solana.Signature{}, backoff.Permanent(fmt.Errorf("failed to sign transaction: %w", err))
		}

		sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			PreflightCommitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			if strings.Contains(err.Error(), "BlockhashNotFound") {
				return solana.Signature{}, err // transient, retried with a fresh blockhash
			}
			return solana.Signature{}, backoff.Permanent(fmt.Errorf("transaction rejected: %w", err))
		}

		if err := c.waitForConfirmation(ctx, sig); err != nil {
			return sig, backoff.Permanent(err)
		}
		return sig, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(submitMaxElapsed),
	)
}

func (c *RPCClient) waitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			statuses, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				c.logger.Debug("signature status poll failed", zap.Error(err))
				continue
			}
			if len(statuses.Value) == 0 || statuses.Value[0] == nil {
				continue
			}
			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on chain: %v", sig, status.Err)
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		}
	}
}

func (c *RPCClient) wsClient(ctx context.Context) (*ws.Client, error) {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.wsConn != nil {
		return c.wsConn, nil
	}
	conn, err := ws.Connect(ctx, c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect websocket: %w", err)
	}
	c.wsConn = conn
	return conn, nil
}

func (c *RPCClient) SubscribeAccount(ctx context.Context, pubkey solana.PublicKey, onChange func()) (Subscription, error) {
	conn, err := c.wsClient(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := conn.AccountSubscribe(pubkey, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to account: %w", err)
	}

	wrapped := &accountSubscription{sub: sub}

	// Recv blocks until a notification or until Unsubscribe/connection
	// close makes it fail, which ends the goroutine.
	go func() {
		for {
			if _, err := sub.Recv(); err != nil {
				if ctx.Err() == nil {
					c.logger.Debug("account subscription closed",
						zap.String("address", pubkey.String()),
						zap.Error(err))
				}
				return
			}
			onChange()
		}
	}()

	return wrapped, nil
}

// Close tears down the WebSocket connection, if one was opened.
func (c *RPCClient) Close() {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.wsConn != nil {
		c.wsConn.Close()
		c.wsConn = nil
	}
}

type accountSubscription struct {
	once sync.Once
	sub  *ws.AccountSubscription
}

// Unsubscribe closes the subscription; repeated calls are no-ops.
func (s *accountSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.sub.Unsubscribe()
	})
}
