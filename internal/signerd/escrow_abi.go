package signerd

import (
	"math/big"
	"strings"

	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// escrowTokenABIJSON holds the deposit entry points of the token escrow.
const escrowTokenABIJSON = `[
	{"type":"function","name":"depositETH","stateMutability":"payable","outputs":[],"inputs":[
		{"name":"transferId","type":"address"},
		{"name":"amount","type":"uint128"},
		{"name":"expiration","type":"uint120"},
		{"name":"feeAmount","type":"uint128"},
		{"name":"feeAuthorization","type":"bytes"},
		{"name":"encryptedSenderMessage","type":"bytes"}
	]},
	{"type":"function","name":"deposit","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"token","type":"address"},
		{"name":"transferId","type":"address"},
		{"name":"amount","type":"uint128"},
		{"name":"expiration","type":"uint120"},
		{"name":"feeToken","type":"address"},
		{"name":"feeAmount","type":"uint128"},
		{"name":"feeAuthorization","type":"bytes"},
		{"name":"encryptedSenderMessage","type":"bytes"}
	]}
]`

const (
	methodDepositETH = "depositETH"
	methodDeposit    = "deposit"
)

var escrowTokenABI = mustParseABI(escrowTokenABIJSON)

func mustParseABI(abiJSON string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic(err)
	}

	return parsed
}

// packDeposit encodes the escrow call for a descriptor and returns it together with the value to attach. Links are fee-less: the fee amount is zero and carries no authorization.
func packDeposit(transferID common.Address, descriptor *claimlink.ClaimLinkDescriptor) (data []byte, value *big.Int, err error) {
	if descriptor.Amount.BitLen() > 128 {
		return nil, nil, errors.Errorf("amount %v does not fit the escrow's uint128", descriptor.Amount)
	}
	expiration := big.NewInt(descriptor.Expiration)
	feeAmount := new(big.Int)
	feeAuthorization := []byte{}
	message := descriptor.EncryptedMessage
	if message == nil {
		message = []byte{}
	}

	switch descriptor.Token.Type {
	case claimlink.Native:
		data, err = escrowTokenABI.Pack(methodDepositETH, transferID, descriptor.Amount, expiration, feeAmount, feeAuthorization, message)
		value = new(big.Int).Set(descriptor.Amount)
	case claimlink.ERC20:
		data, err = escrowTokenABI.Pack(methodDeposit, descriptor.Token.Address, transferID, descriptor.Amount, expiration, descriptor.Token.Address, feeAmount, feeAuthorization, message)
		value = new(big.Int)
	default:
		return nil, nil, errors.Errorf("deposits of %v tokens are not supported by this signer", descriptor.Token.Type)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "无法编码押金调用")
	}

	return data, value, nil
}
