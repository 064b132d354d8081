package chainsubmitter

import "github.com/ethereum/go-ethereum/common"

// Receipt 包含交易被打包后应该返回的信息
type Receipt struct {
	TxHash      common.Hash `json:"txHash"`
	BlockNumber uint64      `json:"blockNumber"`
	Success     bool        `json:"success"` // False when the transaction reverted
}
