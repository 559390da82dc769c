// ==============================================
// File: internal/metadata/metadata.go
// ==============================================
// Package metadata builds the CreateMetadataAccountV3 instruction attaching
// on-chain name/symbol/URI to a mint. The metadata program id differs per
// network and is supplied by the caller from the network table.
package metadata

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// createMetadataAccountV3 instruction discriminator in the metadata program.
const ixCreateMetadataAccountV3 = 33

// Creator attributes a share of royalties to an address.
type Creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

// Collection links the token into an on-chain collection.
type Collection struct {
	Verified bool
	Key      solana.PublicKey
}

// Uses describes consumable-use semantics.
type Uses struct {
	UseMethod uint8
	Remaining uint64
	Total     uint64
}

// DataV2 is the on-chain metadata payload.
type DataV2 struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             *[]Creator  `bin:"optional"`
	Collection           *Collection `bin:"optional"`
	Uses                 *Uses       `bin:"optional"`
}

type collectionDetails struct {
	Kind uint8
	Size uint64
}

type createMetadataArgs struct {
	Instruction       uint8
	Data              DataV2
	IsMutable         bool
	CollectionDetails *collectionDetails `bin:"optional"`
}

// FindMetadataPDA derives the metadata account for a mint under the given
// metadata program.
func FindMetadataPDA(programID, mint solana.PublicKey) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("metadata"), programID.Bytes(), mint.Bytes()},
		programID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive metadata PDA: %w", err)
	}
	return pda, nil
}

// CreateMetadataAccountV3 builds the instruction writing mutable DataV2
// metadata for the mint, with the payer as both mint and update authority.
func CreateMetadataAccountV3(
	programID, mint, payer solana.PublicKey,
	data DataV2,
) (solana.Instruction, error) {
	pda, err := FindMetadataPDA(programID, mint)
	if err != nil {
		return nil, err
	}

	args := createMetadataArgs{
		Instruction: ixCreateMetadataAccountV3,
		Data:        data,
		IsMutable:   true,
	}

	var buf bytes.Buffer
	if err := bin.NewBorshEncoder(&buf).Encode(args); err != nil {
		return nil, fmt.Errorf("failed to encode metadata args: %w", err)
	}

	accounts := []*solana.AccountMeta{
		{PublicKey: pda, IsSigner: false, IsWritable: true},
		{PublicKey: mint, IsSigner: false, IsWritable: false},
		{PublicKey: payer, IsSigner: true, IsWritable: false},
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: payer, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
	}

	return solana.NewInstruction(programID, accounts, buf.Bytes()), nil
}
