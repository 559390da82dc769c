// ==============================================
// File: internal/token2022/account.go
// ==============================================
package token2022

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	accountBaseSize   = 165
	accountTypeOffset = accountBaseSize

	// Account-type discriminator stored right after the padded base layout.
	accountTypeAccount = 2

	// TLV extension types.
	extTransferFeeAmount = 2
)

// TokenAccount is the decoded slice of a Token-2022 token account this bot
// cares about.
type TokenAccount struct {
	Mint     solana.PublicKey
	Owner    solana.PublicKey
	Amount   uint64
	Withheld uint64
}

// UnpackAccount decodes a Token-2022 token account, including the withheld
// transfer-fee amount from its TLV extensions when present.
func UnpackAccount(data []byte) (*TokenAccount, error) {
	if len(data) < accountBaseSize {
		return nil, fmt.Errorf("account data too short: %d bytes", len(data))
	}

	acc := &TokenAccount{
		Mint:   solana.PublicKeyFromBytes(data[0:32]),
		Owner:  solana.PublicKeyFromBytes(data[32:64]),
		Amount: binary.LittleEndian.Uint64(data[64:72]),
	}

	// Legacy-sized accounts carry no extensions.
	if len(data) == accountBaseSize {
		return acc, nil
	}

	if data[accountTypeOffset] != accountTypeAccount {
		return nil, fmt.Errorf("unexpected account type %d", data[accountTypeOffset])
	}

	withheld, err := withheldFromTLV(data[accountTypeOffset+1:])
	if err != nil {
		return nil, err
	}
	acc.Withheld = withheld
	return acc, nil
}

// withheldFromTLV walks the extension TLV entries looking for the
// transfer-fee-amount extension. Absence is not an error; the account
// simply holds no withheld fees.
func withheldFromTLV(tlv []byte) (uint64, error) {
	for len(tlv) >= 4 {
		extType := binary.LittleEndian.Uint16(tlv[0:2])
		extLen := int(binary.LittleEndian.Uint16(tlv[2:4]))
		tlv = tlv[4:]
		if len(tlv) < extLen {
			return 0, fmt.Errorf("truncated extension %d: want %d bytes, have %d", extType, extLen, len(tlv))
		}
		if extType == extTransferFeeAmount {
			if extLen < 8 {
				return 0, fmt.Errorf("transfer fee amount extension too short: %d bytes", extLen)
			}
			return binary.LittleEndian.Uint64(tlv[0:8]), nil
		}
		tlv = tlv[extLen:]
	}
	return 0, nil
}
