package deploy_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nikola43/SPLTokenDeployer/internal/blockchain"
	"github.com/nikola43/SPLTokenDeployer/internal/deploy"
	"github.com/nikola43/SPLTokenDeployer/internal/token2022"
	"github.com/nikola43/SPLTokenDeployer/internal/wallet"
)

// packTokenAccount builds a Token-2022 token account with a transfer-fee
// TLV entry carrying the withheld amount.
func packTokenAccount(mint, owner solana.PublicKey, amount, withheld uint64) []byte {
	data := make([]byte, 165)
	copy(data[0:32], mint.Bytes())
	copy(data[32:64], owner.Bytes())
	binary.LittleEndian.PutUint64(data[64:72], amount)

	data = append(data, 2) // account-type discriminator
	data = binary.LittleEndian.AppendUint16(data, 2)
	data = binary.LittleEndian.AppendUint16(data, 8)
	data = binary.LittleEndian.AppendUint64(data, withheld)
	return data
}

func TestScanWithheldSumsAndSkips(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	holderA := solana.NewWallet().PublicKey()
	holderB := solana.NewWallet().PublicKey()
	holderC := solana.NewWallet().PublicKey()

	client := newMockClient()
	client.programAccounts = []blockchain.ProgramAccount{
		{Pubkey: holderA, Data: packTokenAccount(mint, holderA, 500, 120)},
		{Pubkey: holderB, Data: packTokenAccount(mint, holderB, 900, 0)},
		{Pubkey: holderC, Data: []byte{1, 2, 3}}, // undecodable, skipped
		{Pubkey: solana.NewWallet().PublicKey(), Data: packTokenAccount(mint, holderA, 0, 80)},
	}

	report, err := deploy.NewFees(client, zap.NewNop()).ScanWithheld(context.Background(), mint)
	require.NoError(t, err)

	require.Len(t, report.Accounts, 2)
	assert.Equal(t, holderA, report.Accounts[0].Address)
	assert.Equal(t, uint64(120), report.Accounts[0].Amount)
	assert.Equal(t, uint64(200), report.Total)
	assert.Equal(t, []solana.PublicKey{report.Accounts[0].Address, report.Accounts[1].Address}, report.Addresses())
}

func TestScanWithheldEmptyMint(t *testing.T) {
	client := newMockClient()

	report, err := deploy.NewFees(client, zap.NewNop()).ScanWithheld(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Empty(t, report.Accounts)
	assert.Zero(t, report.Total)
}

func TestClaimEmptyAccountsIsNoOp(t *testing.T) {
	client := newMockClient()
	authority, err := wallet.Generate()
	require.NoError(t, err)

	sig, err := deploy.NewFees(client, zap.NewNop()).Claim(
		context.Background(), solana.NewWallet().PublicKey(), authority, nil)
	require.NoError(t, err)
	assert.True(t, sig.IsZero())
	assert.Empty(t, client.sent, "nothing is submitted for an empty claim")
}

func TestClaimWithdrawsIntoAuthorityATA(t *testing.T) {
	client := newMockClient()
	authority, err := wallet.Generate()
	require.NoError(t, err)
	mint := solana.NewWallet().PublicKey()
	sources := []solana.PublicKey{
		solana.NewWallet().PublicKey(),
		solana.NewWallet().PublicKey(),
	}

	sig, err := deploy.NewFees(client, zap.NewNop()).Claim(context.Background(), mint, authority, sources)
	require.NoError(t, err)
	assert.False(t, sig.IsZero())

	require.Len(t, client.sent, 1)
	tx := client.sent[0]
	require.Len(t, tx, 2, "ATA create and withdraw share one transaction")

	assert.Equal(t, wallet.AssociatedTokenProgramID(), tx[0].ProgramID())
	assert.Equal(t, token2022.ProgramID, tx[1].ProgramID())

	withdrawData, err := tx[1].Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{26, 3, 2}, withdrawData, "withdraw names both source accounts")

	vault, err := authority.ATA(mint)
	require.NoError(t, err)
	accounts := tx[1].Accounts()
	require.Len(t, accounts, 3+len(sources))
	assert.Equal(t, mint, accounts[0].PublicKey)
	assert.Equal(t, vault, accounts[1].PublicKey)
	assert.Equal(t, authority.PublicKey, accounts[2].PublicKey)
	assert.True(t, accounts[2].IsSigner)
	assert.Equal(t, sources[0], accounts[3].PublicKey)
	assert.Equal(t, sources[1], accounts[4].PublicKey)
	assert.Equal(t, authority.PublicKey, client.payers[0])
}
