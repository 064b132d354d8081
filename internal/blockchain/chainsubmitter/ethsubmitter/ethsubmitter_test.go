package ethsubmitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"gitee.com/czyczk/claimlink/pkg/keyutils"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

var escrow = common.HexToAddress("0x5badb0143f69015c5c86cbd9373474a9c8ab713b")

func newSubmitter(t *testing.T, backend Backend) (*EthSubmitter, *keyutils.KeyPair) {
	sender, err := keyutils.GenerateKeyPair()
	require.NoError(t, err)

	return NewEthSubmitter(backend, sender, 8453, 10*time.Millisecond), sender
}

func depositParams() *claimlink.DepositParams {
	return &claimlink.DepositParams{To: escrow, Value: big.NewInt(1000), Data: []byte{0xde, 0xad}}
}

func TestSubmitSignsForChain(t *testing.T) {
	backend := new(MockBackend)
	submitter, sender := newSubmitter(t, backend)

	backend.On("PendingNonceAt", mock.Anything, sender.PublicIdentifier).Return(uint64(7), nil)
	backend.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1_000_000_000), nil)
	backend.On("EstimateGas", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		return msg.From == sender.PublicIdentifier && *msg.To == escrow && msg.Value.Int64() == 1000
	})).Return(uint64(90000), nil)

	var sent *types.Transaction
	backend.On("SendTransaction", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(*types.Transaction)
	}).Return(nil)

	txHash, err := submitter.Submit(context.Background(), depositParams())
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	require.NotNil(t, sent)
	assert.Equal(t, sent.Hash(), txHash)
	assert.Equal(t, uint64(7), sent.Nonce())
	assert.Equal(t, uint64(90000), sent.Gas())

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(8453)), sent)
	require.NoError(t, err)
	assert.Equal(t, sender.PublicIdentifier, from)
	backend.AssertExpectations(t)
}

func TestSubmitFailuresBeforeBroadcast(t *testing.T) {
	backend := new(MockBackend)
	submitter, _ := newSubmitter(t, backend)

	backend.On("PendingNonceAt", mock.Anything, mock.Anything).Return(uint64(0), nil)
	backend.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1), nil)
	backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(0), fmt.Errorf("execution reverted"))

	_, err := submitter.Submit(context.Background(), depositParams())
	var chainErr *errorcode.ChainSubmissionError
	require.True(t, errors.As(err, &chainErr))
	assert.Equal(t, errorcode.PhasePreBroadcast, chainErr.Phase)
	backend.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
}

func TestSubmitCancelledSendIsPostBroadcast(t *testing.T) {
	backend := new(MockBackend)
	submitter, _ := newSubmitter(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	backend.On("PendingNonceAt", mock.Anything, mock.Anything).Return(uint64(0), nil)
	backend.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1), nil)
	backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil)
	backend.On("SendTransaction", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		cancel()
	}).Return(context.Canceled)

	txHash, err := submitter.Submit(ctx, depositParams())
	assert.True(t, errorcode.IsOrphaned(err))
	assert.NotEqual(t, common.Hash{}, txHash)
}

type nodeRPCError struct {
	code    int
	message string
}

func (e *nodeRPCError) Error() string {
	return e.message
}

func (e *nodeRPCError) ErrorCode() int {
	return e.code
}

func mockUntilSend(backend *MockBackend) {
	backend.On("PendingNonceAt", mock.Anything, mock.Anything).Return(uint64(0), nil)
	backend.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1), nil)
	backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil)
}

func TestSubmitSendFailureClassification(t *testing.T) {
	testCases := []struct {
		name          string
		sendErr       error
		postBroadcast bool
	}{
		{"JSON-RPC error", &nodeRPCError{code: -32000, message: "insufficient funds for gas * price + value"}, false},
		{"wrapped JSON-RPC error", errors.Wrap(&nodeRPCError{code: -32000, message: "nonce too low"}, "send"), false},
		{"client error status", rpc.HTTPError{StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized"}, false},
		{"server error status", rpc.HTTPError{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}, true},
		{"connection lost", &url.Error{Op: "Post", URL: "http://node", Err: io.EOF}, true},
		{"client timeout", &url.Error{Op: "Post", URL: "http://node", Err: context.DeadlineExceeded}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := new(MockBackend)
			submitter, _ := newSubmitter(t, backend)
			mockUntilSend(backend)

			var sent *types.Transaction
			backend.On("SendTransaction", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
				sent = args.Get(1).(*types.Transaction)
			}).Return(tc.sendErr)

			txHash, err := submitter.Submit(context.Background(), depositParams())
			var chainErr *errorcode.ChainSubmissionError
			require.True(t, errors.As(err, &chainErr))

			if tc.postBroadcast {
				assert.True(t, errorcode.IsOrphaned(err))
				require.NotNil(t, sent)
				assert.Equal(t, sent.Hash(), txHash)
				assert.Equal(t, sent.Hash().Hex(), chainErr.TxHash)
			} else {
				assert.Equal(t, errorcode.PhasePreBroadcast, chainErr.Phase)
				assert.Equal(t, common.Hash{}, txHash)
			}
		})
	}
}

// newDroppingNode serves the calls made before a send and answers `eth_sendRawTransaction` according to `onSend`.
func newDroppingNode(t *testing.T, onSend func(w http.ResponseWriter, id json.RawMessage)) (*httptest.Server, *atomic.Bool) {
	received := new(atomic.Bool)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result string
		switch req.Method {
		case "eth_getTransactionCount":
			result = "0x0"
		case "eth_gasPrice":
			result = "0x3b9aca00"
		case "eth_estimateGas":
			result = "0x5208"
		case "eth_sendRawTransaction":
			received.Store(true)
			onSend(w, req.ID)
			return
		default:
			http.Error(w, "unexpected method "+req.Method, http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"%s"}`, req.ID, result)
	}))
	t.Cleanup(server.Close)

	return server, received
}

func TestSubmitDroppedConnectionAfterSendIsOrphaned(t *testing.T) {
	server, received := newDroppingNode(t, func(w http.ResponseWriter, id json.RawMessage) {
		hijacker, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		conn, _, err := hijacker.Hijack()
		if err == nil {
			conn.Close()
		}
	})

	sender, err := keyutils.GenerateKeyPair()
	require.NoError(t, err)
	submitter, err := Dial(context.Background(), server.URL, sender, 8453, 10*time.Millisecond)
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	txHash, err := submitter.Submit(context.Background(), depositParams())
	assert.True(t, received.Load())
	assert.True(t, errorcode.IsOrphaned(err))
	assert.NotEqual(t, common.Hash{}, txHash)
}

func TestSubmitNodeRejectionIsPreBroadcast(t *testing.T) {
	server, received := newDroppingNode(t, func(w http.ResponseWriter, id json.RawMessage) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32000,"message":"insufficient funds for gas * price + value"}}`, id)
	})

	sender, err := keyutils.GenerateKeyPair()
	require.NoError(t, err)
	submitter, err := Dial(context.Background(), server.URL, sender, 8453, 10*time.Millisecond)
	require.NoError(t, err)

	txHash, err := submitter.Submit(context.Background(), depositParams())
	assert.True(t, received.Load())
	assert.False(t, errorcode.IsOrphaned(err))
	assert.ErrorContains(t, err, "insufficient funds")
	assert.Equal(t, common.Hash{}, txHash)
}

func TestWaitForConfirmationPollsUntilMined(t *testing.T) {
	backend := new(MockBackend)
	submitter, _ := newSubmitter(t, backend)
	txHash := common.HexToHash("0x01")

	backend.On("TransactionReceipt", mock.Anything, txHash).Return(nil, ethereum.NotFound).Twice()
	backend.On("TransactionReceipt", mock.Anything, txHash).Return(nil, fmt.Errorf("rpc hiccup")).Once()
	backend.On("TransactionReceipt", mock.Anything, txHash).Return(&types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(42),
	}, nil).Once()

	receipt, err := submitter.WaitForConfirmation(context.Background(), txHash)
	require.NoError(t, err)
	assert.True(t, receipt.Success)
	assert.Equal(t, uint64(42), receipt.BlockNumber)
	backend.AssertNumberOfCalls(t, "TransactionReceipt", 4)
}

func TestWaitForConfirmationTimesOut(t *testing.T) {
	backend := new(MockBackend)
	submitter, _ := newSubmitter(t, backend)
	backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, ethereum.NotFound)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := submitter.WaitForConfirmation(ctx, common.HexToHash("0x01"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGetReceiptReportsRevert(t *testing.T) {
	backend := new(MockBackend)
	submitter, _ := newSubmitter(t, backend)
	backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(&types.Receipt{Status: types.ReceiptStatusFailed}, nil)

	receipt, err := submitter.GetReceipt(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.False(t, receipt.Success)
}
