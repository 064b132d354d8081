package service

import (
	"context"
	"time"

	"gitee.com/czyczk/claimlink/internal/blockchain/chainsubmitter"
	"gitee.com/czyczk/claimlink/internal/linkmessage"
	"gitee.com/czyczk/claimlink/internal/typeddata"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"gitee.com/czyczk/claimlink/pkg/keyutils"
	"gitee.com/czyczk/claimlink/pkg/linkcodec"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultConfirmationTimeout bounds the wait for a deposit receipt.
const DefaultConfirmationTimeout = 5 * time.Minute

// TransferService 实现了 `TransferServiceInterface` 接口
type TransferService struct {
	ServiceInfo         *Info
	Signer              SignerServiceInterface
	Submitter           chainsubmitter.ChainSubmitterInterface
	Journal             JournalInterface
	Codec               *linkcodec.Codec
	ConfirmationTimeout time.Duration
	KeyGen              func() (*keyutils.KeyPair, error) // `keyutils.GenerateKeyPair` if nil
}

func (s *TransferService) generateKeyPair() (*keyutils.KeyPair, error) {
	if s.KeyGen != nil {
		return s.KeyGen()
	}

	return keyutils.GenerateKeyPair()
}

func (s *TransferService) confirmationTimeout() time.Duration {
	if s.ConfirmationTimeout <= 0 {
		return DefaultConfirmationTimeout
	}

	return s.ConfirmationTimeout
}

// record writes the transfer to the journal. A journal failure is logged and never stops a flow that has already reached the chain.
func (s *TransferService) record(transfer *claimlink.Transfer) {
	if s.Journal == nil {
		return
	}

	if err := s.Journal.Save(transfer); err != nil {
		log.Errorf("Cannot journal transfer %v in status %v: %v", transfer.TransferID.Hex(), transfer.Status, err)
	}
}

func (s *TransferService) advance(transfer *claimlink.Transfer, to claimlink.TransferStatus) error {
	if err := transfer.Transition(to, s.ServiceInfo.now()); err != nil {
		return err
	}

	log.Debugf("Transfer %v is now %v", transfer.TransferID.Hex(), to)
	s.record(transfer)
	return nil
}

// abort moves the transfer to `Aborted` and returns the failure that caused it.
func (s *TransferService) abort(transfer *claimlink.Transfer, cause error) error {
	transfer.LastError = cause.Error()
	if err := s.advance(transfer, claimlink.Aborted); err != nil {
		log.Warnf("Cannot abort transfer %v: %v", transfer.TransferID.Hex(), err)
	}

	return cause
}

// checkExpiry moves the transfer to `Expired` if its expiration has passed.
func (s *TransferService) checkExpiry(transfer *claimlink.Transfer) error {
	if !transfer.ExpireIfDue(s.ServiceInfo.now()) {
		return nil
	}

	log.Infof("Transfer %v expired while in progress", transfer.TransferID.Hex())
	s.record(transfer)
	return errors.Wrapf(errorcode.ErrorExpired, "transfer %v expired at %v", transfer.TransferID.Hex(), transfer.Descriptor.ExpirationTime())
}

// checkDescriptor validates the descriptor's structure and fails with `errorcode.ErrorExpired` when it has already expired.
func (s *TransferService) checkDescriptor(descriptor *claimlink.ClaimLinkDescriptor) error {
	if descriptor == nil {
		return errors.Wrap(errorcode.ErrorInvalidDescriptor, "descriptor is not provided")
	}
	if err := descriptor.ValidateStructure(); err != nil {
		return err
	}
	if descriptor.IsExpired(s.ServiceInfo.now()) {
		return errors.Wrapf(errorcode.ErrorExpired, "claim link expired at %v", descriptor.ExpirationTime())
	}

	return nil
}

func (s *TransferService) CreateDeposit(ctx context.Context, descriptor *claimlink.ClaimLinkDescriptor) (*DepositOutcome, error) {
	return s.CreateDepositWithMessage(ctx, descriptor, nil)
}

func (s *TransferService) CreateDepositWithMessage(ctx context.Context, descriptor *claimlink.ClaimLinkDescriptor, message *linkmessage.SenderMessage) (*DepositOutcome, error) {
	if err := s.checkDescriptor(descriptor); err != nil {
		return nil, err
	}
	if message != nil && (message.Signer == nil || message.Signer.Address() != descriptor.Sender) {
		return nil, errors.Wrap(errorcode.ErrorInvalidDescriptor, "message must be sealed by the transfer's sender")
	}

	linkKey, err := s.generateKeyPair()
	if err != nil {
		return nil, errors.Wrap(err, "cannot generate link key")
	}

	sealedDescriptor := *descriptor
	var messageKey []byte
	if message != nil {
		sealed, err := linkmessage.Encrypt(message, linkKey.PublicIdentifier, descriptor.Token.ChainID)
		if err != nil {
			return nil, errors.Wrap(errorcode.ErrorInvalidDescriptor, err.Error())
		}
		sealedDescriptor.EncryptedMessage = sealed.Data
		messageKey = sealed.InitialKey[:]
		if err := sealedDescriptor.ValidateStructure(); err != nil {
			return nil, err
		}
	}

	transfer := claimlink.NewTransfer(linkKey.PublicIdentifier, sealedDescriptor, s.ServiceInfo.now())
	outcome := &DepositOutcome{Transfer: transfer, LinkKey: linkKey, MessageKey: messageKey}
	if s.Journal != nil {
		if err := s.Journal.Save(transfer); err != nil {
			return nil, errors.Wrap(err, "cannot journal new transfer")
		}
	}
	log.Debugf("Created deposit transfer %v", transfer.TransferID.Hex())

	if err := s.advance(transfer, claimlink.DepositRequested); err != nil {
		return outcome, err
	}

	params, err := s.Signer.RequestDepositParams(ctx, transfer.TransferID, &transfer.Descriptor)
	if err != nil {
		return outcome, s.abort(transfer, err)
	}

	// Last point at which giving up leaves nothing behind
	if err := s.checkExpiry(transfer); err != nil {
		return outcome, err
	}
	if err := ctx.Err(); err != nil {
		return outcome, s.abort(transfer, errorcode.NewPreBroadcastError(err))
	}

	txHash, err := s.Submitter.Submit(ctx, params)
	if err != nil {
		if errorcode.IsOrphaned(err) {
			return outcome, s.orphan(transfer, txHash, err)
		}
		return outcome, s.abort(transfer, err)
	}

	transfer.DepositTxHash = &txHash
	if err := s.advance(transfer, claimlink.DepositSubmitted); err != nil {
		return outcome, err
	}

	// The deposit is out. Cancellation of the caller no longer stops the flow, only the confirmation timeout does.
	confirmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.confirmationTimeout())
	receipt, err := s.Submitter.WaitForConfirmation(confirmCtx, txHash)
	cancel()
	if err != nil {
		return outcome, s.orphan(transfer, txHash, err)
	}
	if !receipt.Success {
		return outcome, s.abort(transfer, &errorcode.ChainSubmissionError{
			Phase:    errorcode.PhasePostBroadcast,
			TxHash:   txHash.Hex(),
			Reverted: true,
			Err:      errors.Errorf("reverted in block %v", receipt.BlockNumber),
		})
	}

	if err := s.advance(transfer, claimlink.Deposited); err != nil {
		return outcome, err
	}

	return s.register(context.WithoutCancel(ctx), outcome)
}

// orphan records a broadcast deposit whose outcome could not be observed.
func (s *TransferService) orphan(transfer *claimlink.Transfer, txHash common.Hash, cause error) error {
	err := cause
	if !errorcode.IsOrphaned(cause) {
		err = errorcode.NewPostBroadcastError(txHash.Hex(), cause)
	}

	transfer.DepositTxHash = &txHash
	transfer.LastError = err.Error()
	if transfer.Status != claimlink.DepositSubmitted {
		if transitionErr := s.advance(transfer, claimlink.DepositSubmitted); transitionErr != nil {
			log.Warnf("Cannot mark transfer %v submitted: %v", transfer.TransferID.Hex(), transitionErr)
		}
	}
	if transitionErr := s.advance(transfer, claimlink.Orphaned); transitionErr != nil {
		log.Warnf("Cannot mark transfer %v orphaned: %v", transfer.TransferID.Hex(), transitionErr)
	}

	log.Errorf("Deposit %v of transfer %v is orphaned and needs reconciliation: %v", txHash.Hex(), transfer.TransferID.Hex(), cause)
	return err
}

// register completes `Deposited -> Registered` and encodes the claim link. A failed registration leaves the transfer `Deposited` so that it can be resumed.
func (s *TransferService) register(ctx context.Context, outcome *DepositOutcome) (*DepositOutcome, error) {
	transfer := outcome.Transfer
	if err := s.checkExpiry(transfer); err != nil {
		return outcome, err
	}

	if err := s.Signer.RegisterDeposit(ctx, transfer.TransferID, &transfer.Descriptor, *transfer.DepositTxHash); err != nil {
		transfer.LastError = err.Error()
		s.record(transfer)
		log.Warnf("Registration of transfer %v failed, it stays %v: %v", transfer.TransferID.Hex(), transfer.Status, err)
		return outcome, err
	}

	transfer.LastError = ""
	if err := s.advance(transfer, claimlink.Registered); err != nil {
		return outcome, err
	}

	outcome.Token = &claimlink.ClaimLinkToken{
		LinkKey:       outcome.LinkKey,
		TransferID:    transfer.TransferID,
		ChainID:       transfer.Descriptor.Token.ChainID,
		EncryptionKey: outcome.MessageKey,
	}
	claimURL, err := s.Codec.Encode(outcome.Token)
	if err != nil {
		return outcome, errors.Wrap(err, "cannot encode claim link")
	}
	outcome.ClaimURL = claimURL

	log.Infof("Transfer %v registered", transfer.TransferID.Hex())
	return outcome, nil
}

func (s *TransferService) ResumeRegistration(ctx context.Context, transferID common.Address, linkKey *keyutils.KeyPair) (*DepositOutcome, error) {
	if linkKey == nil || linkKey.PublicIdentifier != transferID {
		return nil, errors.Wrap(errorcode.ErrorInvalidDescriptor, "link key does not belong to the transfer")
	}
	if s.Journal == nil {
		return nil, errors.Wrap(errorcode.ErrorNotImplemented, "resuming requires a journal")
	}

	transfer, err := s.Journal.Get(transferID)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load transfer %v", transferID.Hex())
	}
	if transfer.Status != claimlink.Deposited || transfer.DepositTxHash == nil {
		return nil, errors.Wrapf(errorcode.ErrorInvalidTransition, "transfer %v is %v, only a confirmed deposit can be registered", transferID.Hex(), transfer.Status)
	}

	return s.register(ctx, &DepositOutcome{Transfer: transfer, LinkKey: linkKey})
}

func (s *TransferService) Recover(ctx context.Context, transferID common.Address, descriptor *claimlink.ClaimLinkDescriptor, sender typeddata.TypedDataSigner) (*RecoveryOutcome, error) {
	if err := s.checkDescriptor(descriptor); err != nil {
		return nil, err
	}
	if transferID == (common.Address{}) {
		return nil, errors.Wrap(errorcode.ErrorInvalidDescriptor, "transfer ID is not set")
	}
	if sender == nil || sender.Address() != descriptor.Sender {
		return nil, errors.Wrap(errorcode.ErrorInvalidDescriptor, "recovery must be signed by the transfer's sender")
	}

	linkKey, err := s.generateKeyPair()
	if err != nil {
		return nil, errors.Wrap(err, "cannot generate link key")
	}
	linkKeyID := linkKey.PublicIdentifier
	if linkKeyID == transferID {
		return nil, errors.New("new link key collides with the transfer ID")
	}

	transfer := claimlink.NewTransfer(transferID, *descriptor, s.ServiceInfo.now())
	transfer.LinkKeyID = &linkKeyID
	outcome := &RecoveryOutcome{Transfer: transfer}
	s.record(transfer)
	log.Debugf("Created recovery of transfer %v with link key %v", transferID.Hex(), linkKeyID.Hex())

	if err := s.advance(transfer, claimlink.RecoveryRequested); err != nil {
		return outcome, err
	}

	template, err := s.Signer.RequestRecoveryTypedData(ctx, transferID, linkKeyID, &transfer.Descriptor)
	if err != nil {
		return outcome, s.abort(transfer, err)
	}
	normalized := typeddata.Normalize(template)

	if err := s.checkExpiry(transfer); err != nil {
		return outcome, err
	}

	signature, err := sender.SignTypedData(normalized)
	if err != nil {
		return outcome, s.abort(transfer, errors.Wrap(err, "sender cannot sign recovery"))
	}
	if err := s.advance(transfer, claimlink.RecoverySigned); err != nil {
		return outcome, err
	}

	outcome.Token = &claimlink.ClaimLinkToken{
		LinkKey:    linkKey,
		TransferID: transferID,
		ChainID:    descriptor.Token.ChainID,
		Signature:  signature,
	}
	claimURL, err := s.Codec.Encode(outcome.Token)
	if err != nil {
		outcome.Token = nil
		return outcome, s.abort(transfer, errors.Wrap(err, "cannot encode recovery link"))
	}
	outcome.ClaimURL = claimURL

	if err := s.advance(transfer, claimlink.Recovered); err != nil {
		return outcome, err
	}

	log.Infof("Transfer %v recovered with link key %v", transferID.Hex(), linkKeyID.Hex())
	return outcome, nil
}
