package token2022_test

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikola43/SPLTokenDeployer/internal/token2022"
	"github.com/nikola43/SPLTokenDeployer/internal/wallet"
)

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	w, err := wallet.Generate()
	require.NoError(t, err)
	return w.PublicKey
}

func TestInitializeTransferFeeConfigData(t *testing.T) {
	mint := newKey(t)
	authority := newKey(t)

	ix := token2022.InitializeTransferFeeConfig(mint, authority, authority, 250, 1_000_000_000)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 2+1+32+1+32+2+8)
	assert.Equal(t, byte(26), data[0], "transfer fee extension opcode")
	assert.Equal(t, byte(0), data[1], "initialize config sub-instruction")
	assert.Equal(t, byte(1), data[2], "config authority present")
	assert.Equal(t, authority.Bytes(), data[3:35])
	assert.Equal(t, byte(1), data[35], "withdraw authority present")
	assert.Equal(t, uint16(250), binary.LittleEndian.Uint16(data[68:70]))
	assert.Equal(t, uint64(1_000_000_000), binary.LittleEndian.Uint64(data[70:78]))

	accounts := ix.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, mint, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsWritable)
}

func TestInitializeMintData(t *testing.T) {
	mint := newKey(t)
	authority := newKey(t)

	ix := token2022.InitializeMint(mint, 9, authority)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 1+1+32+1)
	assert.Equal(t, byte(0), data[0])
	assert.Equal(t, byte(9), data[1])
	assert.Equal(t, authority.Bytes(), data[2:34])
	assert.Equal(t, byte(0), data[34], "no freeze authority")

	accounts := ix.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, solana.SysVarRentPubkey, accounts[1].PublicKey)
}

func TestMintToData(t *testing.T) {
	mint := newKey(t)
	dest := newKey(t)
	authority := newKey(t)

	ix := token2022.MintTo(mint, dest, authority, 1000_000_000_000)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 9)
	assert.Equal(t, byte(7), data[0])
	assert.Equal(t, uint64(1000_000_000_000), binary.LittleEndian.Uint64(data[1:9]))

	accounts := ix.Accounts()
	require.Len(t, accounts, 3)
	assert.True(t, accounts[2].IsSigner, "mint authority signs")
}

func TestCreateATAIdempotent(t *testing.T) {
	payer := newKey(t)
	owner := newKey(t)
	mint := newKey(t)

	ix, ata, err := token2022.CreateAssociatedTokenAccountIdempotent(payer, owner, mint)
	require.NoError(t, err)

	expected, err := wallet.AssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	assert.Equal(t, expected, ata)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data, "create-idempotent discriminator")

	accounts := ix.Accounts()
	require.Len(t, accounts, 6)
	assert.Equal(t, payer, accounts[0].PublicKey)
	assert.Equal(t, ata, accounts[1].PublicKey)
	assert.Equal(t, token2022.ProgramID, accounts[5].PublicKey)
}

func TestWithdrawWithheldFromAccounts(t *testing.T) {
	mint := newKey(t)
	vault := newKey(t)
	authority := newKey(t)
	sources := []solana.PublicKey{newKey(t), newKey(t)}

	ix, err := token2022.WithdrawWithheldTokensFromAccounts(mint, vault, authority, sources)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{26, 3, 2}, data)

	accounts := ix.Accounts()
	require.Len(t, accounts, 3+len(sources))
	assert.Equal(t, mint, accounts[0].PublicKey)
	assert.Equal(t, vault, accounts[1].PublicKey)
	assert.True(t, accounts[2].IsSigner)
	assert.Equal(t, sources[0], accounts[3].PublicKey)
	assert.True(t, accounts[3].IsWritable)
}

func buildAccountData(t *testing.T, mint, owner solana.PublicKey, amount uint64, extensions []byte) []byte {
	t.Helper()
	data := make([]byte, 165)
	copy(data[0:32], mint.Bytes())
	copy(data[32:64], owner.Bytes())
	binary.LittleEndian.PutUint64(data[64:72], amount)
	if extensions != nil {
		data = append(data, 2) // account type
		data = append(data, extensions...)
	}
	return data
}

func tlvEntry(extType uint16, value []byte) []byte {
	entry := make([]byte, 4, 4+len(value))
	binary.LittleEndian.PutUint16(entry[0:2], extType)
	binary.LittleEndian.PutUint16(entry[2:4], uint16(len(value)))
	return append(entry, value...)
}

func TestUnpackAccountWithWithheldFees(t *testing.T) {
	mint := newKey(t)
	owner := newKey(t)

	withheld := make([]byte, 8)
	binary.LittleEndian.PutUint64(withheld, 5555)

	// Another extension precedes the transfer-fee amount to exercise the
	// TLV walk.
	extensions := append(tlvEntry(7, []byte{1, 2, 3, 4}), tlvEntry(2, withheld)...)
	data := buildAccountData(t, mint, owner, 100, extensions)

	acc, err := token2022.UnpackAccount(data)
	require.NoError(t, err)
	assert.Equal(t, mint, acc.Mint)
	assert.Equal(t, owner, acc.Owner)
	assert.Equal(t, uint64(100), acc.Amount)
	assert.Equal(t, uint64(5555), acc.Withheld)
}

func TestUnpackAccountWithoutExtensions(t *testing.T) {
	acc, err := token2022.UnpackAccount(buildAccountData(t, newKey(t), newKey(t), 7, nil))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), acc.Withheld)
}

func TestUnpackAccountTruncated(t *testing.T) {
	_, err := token2022.UnpackAccount(make([]byte, 10))
	assert.Error(t, err)
}
