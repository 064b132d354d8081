package chainsubmitter

import (
	"context"

	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
)

// ChainSubmitterInterface broadcasts deposit transactions and observes their outcome.
type ChainSubmitterInterface interface {
	// SenderAddress is the account deposits are sent from.
	SenderAddress() common.Address

	// Submit signs and broadcasts the deposit.
	//
	// Returns:
	//   the transaction hash
	//   a `*errorcode.ChainSubmissionError` telling whether the transaction may have left the process
	Submit(ctx context.Context, params *claimlink.DepositParams) (common.Hash, error)

	// WaitForConfirmation blocks until the transaction is mined or the context ends. A context error means the outcome is unknown.
	WaitForConfirmation(ctx context.Context, txHash common.Hash) (*Receipt, error)

	// GetReceipt reads the receipt once. Returns `errorcode.ErrorNotFound` while the transaction is pending or unknown.
	GetReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
}
