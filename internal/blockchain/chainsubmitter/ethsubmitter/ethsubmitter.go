package ethsubmitter

import (
	"context"
	"math/big"
	"sync"
	"time"

	"gitee.com/czyczk/claimlink/internal/blockchain/chainsubmitter"
	"gitee.com/czyczk/claimlink/internal/utils/timingutils"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"gitee.com/czyczk/claimlink/pkg/keyutils"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const defaultPollInterval = 2 * time.Second

// Backend is the part of `*ethclient.Client` the submitter needs.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EthSubmitter 实现了 `chainsubmitter.ChainSubmitterInterface` 接口，通过 JSON-RPC 向 EVM 链发送押金交易
type EthSubmitter struct {
	backend      Backend
	sender       *keyutils.KeyPair
	chainID      *big.Int
	pollInterval time.Duration
	nonceLock    sync.Mutex // Submissions from one sender must not race for a nonce
}

// NewEthSubmitter creates a submitter sending from `sender` on the given chain.
func NewEthSubmitter(backend Backend, sender *keyutils.KeyPair, chainID uint64, pollInterval time.Duration) *EthSubmitter {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	return &EthSubmitter{
		backend:      backend,
		sender:       sender,
		chainID:      new(big.Int).SetUint64(chainID),
		pollInterval: pollInterval,
	}
}

// Dial connects to an RPC endpoint and creates a submitter on it.
func Dial(ctx context.Context, rpcURL string, sender *keyutils.KeyPair, chainID uint64, pollInterval time.Duration) (*EthSubmitter, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to RPC endpoint %v", rpcURL)
	}

	return NewEthSubmitter(client, sender, chainID, pollInterval), nil
}

func (s *EthSubmitter) SenderAddress() common.Address {
	return s.sender.PublicIdentifier
}

func (s *EthSubmitter) Submit(ctx context.Context, params *claimlink.DepositParams) (common.Hash, error) {
	s.nonceLock.Lock()
	defer s.nonceLock.Unlock()

	from := s.sender.PublicIdentifier
	value := params.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := s.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, errorcode.NewPreBroadcastError(errors.Wrap(err, "cannot get nonce"))
	}

	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errorcode.NewPreBroadcastError(errors.Wrap(err, "cannot get gas price"))
	}

	to := params.To
	gasLimit, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  params.Data,
	})
	if err != nil {
		return common.Hash{}, errorcode.NewPreBroadcastError(errors.Wrap(err, "cannot estimate gas"))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     params.Data,
	})
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.sender.PrivateKey)
	if err != nil {
		return common.Hash{}, errorcode.NewPreBroadcastError(errors.Wrap(err, "cannot sign deposit transaction"))
	}

	txHash := signedTx.Hash()
	if err := s.backend.SendTransaction(ctx, signedTx); err != nil {
		// Only an answer from the node proves the transaction was not taken. A cancelled or broken send may still have reached it.
		if ctx.Err() == nil && isNodeRefusal(err) {
			return common.Hash{}, errorcode.NewPreBroadcastError(errors.Wrap(err, "node refused deposit transaction"))
		}
		log.Warnf("Sending deposit transaction %v ended without an answer from the node: %v", txHash.Hex(), err)
		return txHash, errorcode.NewPostBroadcastError(txHash.Hex(), err)
	}

	log.Debugf("Deposit transaction %v broadcast from %v with nonce %v", txHash.Hex(), from.Hex(), nonce)
	return txHash, nil
}

// isNodeRefusal reports whether the send error is a JSON-RPC error or a 4xx HTTP status returned by the node. A 5xx status may come from a proxy that already forwarded the request.
func isNodeRefusal(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return true
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
	}

	return false
}

// WaitForConfirmation polls the receipt every poll interval. Transient RPC errors are logged and polling continues.
func (s *EthSubmitter) WaitForConfirmation(ctx context.Context, txHash common.Hash) (*chainsubmitter.Receipt, error) {
	defer timingutils.GetDeferrableTimingLogger("Confirmation wait for " + txHash.Hex())()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.GetReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if errors.Cause(err) != errorcode.ErrorNotFound {
			log.Warnf("Cannot read receipt of %v, will retry: %v", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "confirmation of %v not observed", txHash.Hex())
		case <-ticker.C:
		}
	}
}

func (s *EthSubmitter) GetReceipt(ctx context.Context, txHash common.Hash) (*chainsubmitter.Receipt, error) {
	receipt, err := s.backend.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, errorcode.ErrorNotFound
		}
		return nil, errors.Wrapf(err, "cannot get receipt of %v", txHash.Hex())
	}

	ret := &chainsubmitter.Receipt{
		TxHash:  txHash,
		Success: receipt.Status == types.ReceiptStatusSuccessful,
	}
	if receipt.BlockNumber != nil {
		ret.BlockNumber = receipt.BlockNumber.Uint64()
	}

	return ret, nil
}
