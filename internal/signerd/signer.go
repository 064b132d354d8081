package signerd

import (
	"context"
	"time"

	"gitee.com/czyczk/claimlink/internal/blockchain/chainsubmitter"
	"gitee.com/czyczk/claimlink/internal/networkinfo"
	"gitee.com/czyczk/claimlink/internal/signerapi"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ReceiptReaderInterface reads deposit receipts. `chainsubmitter.ChainSubmitterInterface` implementations satisfy it.
type ReceiptReaderInterface interface {
	GetReceipt(ctx context.Context, txHash common.Hash) (*chainsubmitter.Receipt, error)
}

// Signer is a reference implementation of the signer protocol. It holds no private keys: it computes deposit calldata, builds recovery typed data and records registrations.
type Signer struct {
	Network  *networkinfo.EscrowNetworkConfig
	Store    RegistrationStoreInterface
	Receipts map[uint64]ReceiptReaderInterface // Chain ID -> reader. Registrations on chains without a reader are accepted unchecked.
	Now      func() time.Time
}

// NewSigner creates a signer. A nil network config means the built-in escrow deployments.
func NewSigner(network *networkinfo.EscrowNetworkConfig, store RegistrationStoreInterface) *Signer {
	if network == nil {
		network = networkinfo.DefaultEscrowNetworkConfig()
	}

	return &Signer{
		Network:  network,
		Store:    store,
		Receipts: make(map[uint64]ReceiptReaderInterface),
	}
}

func (s *Signer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}

	return s.Now()
}

// Handle implements `signerapi.Handler`. Every failure becomes an error envelope.
func (s *Signer) Handle(ctx context.Context, req *signerapi.Request) *signerapi.Response {
	result, err := s.Process(ctx, req)
	if err != nil {
		return signerapi.NewErrorResponse(req.RequestID, rejectionReason(err))
	}

	return signerapi.NewSuccessResponse(req.RequestID, result)
}

// Process answers one request. A `*errorcode.SignerError` of kind `SignerRejected` means the request was refused. Any other error is a failure of the signer itself and may go away on retry.
func (s *Signer) Process(ctx context.Context, req *signerapi.Request) (interface{}, error) {
	op := string(req.Command)
	if !req.Command.IsKnown() {
		return nil, errorcode.NewSignerRejected(op, "unknown command")
	}

	if !common.IsHexAddress(req.TransferID) {
		return nil, errorcode.NewSignerRejected(op, "transfer ID '"+req.TransferID+"' is not an address")
	}
	transferID := common.HexToAddress(req.TransferID)

	descriptor, err := req.ClaimLink.ToDescriptor()
	if err != nil {
		return nil, errorcode.NewSignerRejected(op, err.Error())
	}
	if err := descriptor.Validate(s.now()); err != nil {
		return nil, errorcode.NewSignerRejected(op, err.Error())
	}

	escrow, err := s.Network.EscrowAddressForToken(&descriptor.Token)
	if err != nil {
		return nil, errorcode.NewSignerRejected(op, err.Error())
	}

	switch req.Command {
	case signerapi.CommandGetDepositParams:
		return s.getDepositParams(op, transferID, descriptor, escrow)
	case signerapi.CommandGetRecoveredLinkTypedData:
		return s.getRecoveredLinkTypedData(op, transferID, req.LinkKeyID, descriptor, escrow)
	default:
		return s.registerDeposit(ctx, op, transferID, req.TxHash, descriptor)
	}
}

func (s *Signer) getDepositParams(op string, transferID common.Address, descriptor *claimlink.ClaimLinkDescriptor, escrow common.Address) (*claimlink.DepositParamsResult, error) {
	data, value, err := packDeposit(transferID, descriptor)
	if err != nil {
		return nil, errorcode.NewSignerRejected(op, err.Error())
	}

	log.Debugf("Prepared %v deposit of transfer %v into escrow %v", descriptor.Token.Type, transferID.Hex(), escrow.Hex())
	return &claimlink.DepositParamsResult{
		To:    escrow.Hex(),
		Value: value.String(),
		Data:  hexutil.Encode(data),
	}, nil
}

func (s *Signer) getRecoveredLinkTypedData(op string, transferID common.Address, linkKeyIDHex string, descriptor *claimlink.ClaimLinkDescriptor, escrow common.Address) (interface{}, error) {
	if !common.IsHexAddress(linkKeyIDHex) {
		return nil, errorcode.NewSignerRejected(op, "link key ID '"+linkKeyIDHex+"' is not an address")
	}
	linkKeyID := common.HexToAddress(linkKeyIDHex)
	if linkKeyID == transferID {
		return nil, errorcode.NewSignerRejected(op, "link key ID must differ from the transfer ID")
	}

	version, err := s.Network.EscrowVersion(escrow)
	if err != nil {
		return nil, errorcode.NewSignerRejected(op, err.Error())
	}

	return recoveredLinkTypedData(linkKeyID, transferID, descriptor.Token.ChainID, version, escrow), nil
}

func (s *Signer) registerDeposit(ctx context.Context, op string, transferID common.Address, txHashHex string, descriptor *claimlink.ClaimLinkDescriptor) (*claimlink.RegisterDepositResult, error) {
	txHashBytes, err := hexutil.Decode(txHashHex)
	if err != nil || len(txHashBytes) != common.HashLength {
		return nil, errorcode.NewSignerRejected(op, "transaction hash '"+txHashHex+"' is not a 32-byte hex string")
	}
	txHash := common.BytesToHash(txHashBytes)

	if reader := s.Receipts[descriptor.Token.ChainID]; reader != nil {
		receipt, err := reader.GetReceipt(ctx, txHash)
		if err != nil {
			if errors.Cause(err) == errorcode.ErrorNotFound {
				return nil, errorcode.NewSignerRejected(op, "deposit transaction "+txHash.Hex()+" is not mined")
			}
			return nil, errors.Wrapf(err, "cannot verify deposit transaction %v", txHash.Hex())
		}
		if !receipt.Success {
			return nil, errorcode.NewSignerRejected(op, "deposit transaction "+txHash.Hex()+" reverted")
		}
	}

	stored, duplicate, err := s.Store.SaveRegistration(&DepositRegistration{
		TransferID:   transferID,
		ChainID:      descriptor.Token.ChainID,
		Sender:       descriptor.Sender,
		TxHash:       txHash,
		RegisteredAt: s.now(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot record registration of transfer %v", transferID.Hex())
	}
	if duplicate && stored.TxHash != txHash {
		return nil, errorcode.NewSignerRejected(op, "transfer "+transferID.Hex()+" is already registered with transaction "+stored.TxHash.Hex())
	}

	if duplicate {
		log.Infof("押金 %v 已登记过，忽略重复登记", transferID.Hex())
	} else {
		log.Infof("已登记押金 %v，交易 %v", transferID.Hex(), txHash.Hex())
	}

	return &claimlink.RegisterDepositResult{
		Registered: true,
		Duplicate:  duplicate,
		TxHash:     stored.TxHash.Hex(),
	}, nil
}

// isRejection tells refusals apart from the signer's own failures.
func isRejection(err error) bool {
	signerErr, ok := errorcode.AsSignerError(err)
	return ok && signerErr.Kind == errorcode.SignerRejected
}

func rejectionReason(err error) string {
	if signerErr, ok := errorcode.AsSignerError(err); ok && signerErr.Kind == errorcode.SignerRejected {
		return signerErr.Reason
	}

	return err.Error()
}
