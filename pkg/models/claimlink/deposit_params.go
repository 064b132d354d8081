package claimlink

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DepositParams is the transaction the signer asks the sender to broadcast. It is submitted at most once per transfer.
type DepositParams struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// DepositParamsResult is the wire form returned by the signer for `getDepositParams`.
type DepositParamsResult struct {
	To    string `json:"to" mapstructure:"to"`
	Value string `json:"value" mapstructure:"value"`
	Data  string `json:"data" mapstructure:"data"`
}

// RegisterDepositResult is the wire form returned by the signer for `registerDeposit`.
type RegisterDepositResult struct {
	Registered bool   `json:"registered" mapstructure:"registered"`
	Duplicate  bool   `json:"duplicate,omitempty" mapstructure:"duplicate"`
	TxHash     string `json:"txHash,omitempty" mapstructure:"txHash"`
}
