package metadata_test

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikola43/SPLTokenDeployer/internal/metadata"
	"github.com/nikola43/SPLTokenDeployer/internal/wallet"
)

var metadataProgram = solana.MustPublicKeyFromBase58("META4s4fSmpkTbZoUsgC1oBnWB31vQcmnN8giPw51Zu")

func TestFindMetadataPDAIsDeterministic(t *testing.T) {
	mintKey, err := wallet.Generate()
	require.NoError(t, err)

	first, err := metadata.FindMetadataPDA(metadataProgram, mintKey.PublicKey)
	require.NoError(t, err)
	second, err := metadata.FindMetadataPDA(metadataProgram, mintKey.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := wallet.Generate()
	require.NoError(t, err)
	different, err := metadata.FindMetadataPDA(metadataProgram, other.PublicKey)
	require.NoError(t, err)
	assert.NotEqual(t, first, different)
}

func TestCreateMetadataAccountV3Encoding(t *testing.T) {
	mintKey, err := wallet.Generate()
	require.NoError(t, err)
	payer, err := wallet.Generate()
	require.NoError(t, err)

	ix, err := metadata.CreateMetadataAccountV3(metadataProgram, mintKey.PublicKey, payer.PublicKey, metadata.DataV2{
		Name:                 "Test Token",
		Symbol:               "TT",
		URI:                  "https://example.ipfs.nftstorage.link/metadata.json",
		SellerFeeBasisPoints: 250,
	})
	require.NoError(t, err)

	assert.Equal(t, metadataProgram, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)

	// Borsh layout: u8 discriminator, then DataV2 starting with the
	// length-prefixed name.
	assert.Equal(t, byte(33), data[0])
	nameLen := binary.LittleEndian.Uint32(data[1:5])
	assert.Equal(t, uint32(len("Test Token")), nameLen)
	assert.Equal(t, "Test Token", string(data[5:5+nameLen]))

	// The three Option fields, is_mutable and collection_details trail the
	// fixed fields: ..., creators=0, collection=0, uses=0, mutable=1, details=0.
	assert.Equal(t, []byte{0, 0, 0, 1, 0}, data[len(data)-5:])

	accounts := ix.Accounts()
	require.Len(t, accounts, 7)
	pda, err := metadata.FindMetadataPDA(metadataProgram, mintKey.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, pda, accounts[0].PublicKey)
	assert.Equal(t, mintKey.PublicKey, accounts[1].PublicKey)
	assert.True(t, accounts[2].IsSigner, "mint authority signs")
	assert.True(t, accounts[3].IsWritable, "payer is writable")
}
