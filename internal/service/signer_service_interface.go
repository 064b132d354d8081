package service

import (
	"context"

	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"gitee.com/czyczk/claimlink/pkg/models/typeddata"
	"github.com/ethereum/go-ethereum/common"
)

// SignerServiceInterface is the gateway to the trusted signer. Every operation re-validates the descriptor before anything is sent, and is a single request/response exchange (plus retries while the signer is unreachable).
type SignerServiceInterface interface {
	// RequestDepositParams asks the signer for the deposit transaction.
	//
	// Parameters:
	//   transfer ID
	//   claim link descriptor
	//
	// Returns:
	//   deposit params with a non-empty `to` and a parsed `value`
	RequestDepositParams(ctx context.Context, transferID common.Address, descriptor *claimlink.ClaimLinkDescriptor) (*claimlink.DepositParams, error)

	// RequestRecoveryTypedData asks the signer for the typed data the sender signs to authorize a new link key.
	//
	// Parameters:
	//   transfer ID
	//   link key ID (the identifier of the new link key)
	//   claim link descriptor
	//
	// Returns:
	//   the typed data template as sent by the signer, not yet normalized
	RequestRecoveryTypedData(ctx context.Context, transferID common.Address, linkKeyID common.Address, descriptor *claimlink.ClaimLinkDescriptor) (*typeddata.TypedDataTemplate, error)

	// RegisterDeposit tells the signer the deposit is confirmed. Registering the same deposit twice succeeds.
	//
	// Parameters:
	//   transfer ID
	//   claim link descriptor
	//   confirmed deposit transaction hash
	RegisterDeposit(ctx context.Context, transferID common.Address, descriptor *claimlink.ClaimLinkDescriptor, txHash common.Hash) error
}
