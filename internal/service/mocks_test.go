package service

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"time"

	"gitee.com/czyczk/claimlink/internal/blockchain/chainsubmitter"
	"gitee.com/czyczk/claimlink/internal/signerapi"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

var (
	testSender = common.HexToAddress("0x5659A8557FdBA11AA04cfCfcc59EeF9FA412A7dD")
	testUSDC   = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	testEscrow = common.HexToAddress("0x5badb0143f69015c5c86cbd9373474a9c8ab713b")
	testStart  = time.Unix(1_700_000_000, 0)
)

// testClock is a settable clock for expiration checks.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func newTestDescriptor(sender common.Address) *claimlink.ClaimLinkDescriptor {
	return &claimlink.ClaimLinkDescriptor{
		Token:      claimlink.Token{Type: claimlink.ERC20, ChainID: 8453, Address: testUSDC},
		Sender:     sender,
		Amount:     big.NewInt(1_000_000),
		Expiration: testStart.Unix() + 3600,
	}
}

// MockTransport is a signer transport driven by testify expectations.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Call(ctx context.Context, req *signerapi.Request) (interface{}, error) {
	args := m.Called(ctx, req)
	return args.Get(0), args.Error(1)
}

func (m *MockTransport) Close() error {
	return nil
}

func forCommand(command signerapi.Command) interface{} {
	return mock.MatchedBy(func(req *signerapi.Request) bool {
		return req.Command == command
	})
}

func countCalls(m *mock.Mock, command signerapi.Command) int {
	count := 0
	for _, call := range m.Calls {
		if call.Method == "Call" && call.Arguments.Get(1).(*signerapi.Request).Command == command {
			count++
		}
	}

	return count
}

// MockSubmitter is a chain submitter driven by testify expectations.
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) SenderAddress() common.Address {
	return testSender
}

func (m *MockSubmitter) Submit(ctx context.Context, params *claimlink.DepositParams) (common.Hash, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockSubmitter) WaitForConfirmation(ctx context.Context, txHash common.Hash) (*chainsubmitter.Receipt, error) {
	args := m.Called(ctx, txHash)
	receipt, _ := args.Get(0).(*chainsubmitter.Receipt)
	return receipt, args.Error(1)
}

func (m *MockSubmitter) GetReceipt(ctx context.Context, txHash common.Hash) (*chainsubmitter.Receipt, error) {
	args := m.Called(ctx, txHash)
	receipt, _ := args.Get(0).(*chainsubmitter.Receipt)
	return receipt, args.Error(1)
}

func depositParamsResult() map[string]interface{} {
	return map[string]interface{}{
		"to":    testEscrow.Hex(),
		"value": json.Number("0"),
		"data":  "0xa9059cbb",
	}
}

// recoveryTypedDataResult is the typed data a signer answers with, explicit domain type and empty salt included.
func recoveryTypedDataResult(transferID, linkKeyID common.Address) map[string]interface{} {
	return map[string]interface{}{
		"domain": map[string]interface{}{
			"name":              "LinkdropEscrow",
			"version":           "3",
			"chainId":           json.Number("8453"),
			"verifyingContract": testEscrow.Hex(),
			"salt":              "",
		},
		"types": map[string]interface{}{
			"EIP712Domain": []interface{}{
				map[string]interface{}{"name": "name", "type": "string"},
				map[string]interface{}{"name": "version", "type": "string"},
				map[string]interface{}{"name": "chainId", "type": "uint256"},
				map[string]interface{}{"name": "verifyingContract", "type": "address"},
				map[string]interface{}{"name": "salt", "type": "bytes32"},
			},
			"Transfer": []interface{}{
				map[string]interface{}{"name": "linkKeyId", "type": "address"},
				map[string]interface{}{"name": "transferId", "type": "address"},
			},
		},
		"primaryType": "Transfer",
		"message": map[string]interface{}{
			"linkKeyId":  linkKeyID.Hex(),
			"transferId": transferID.Hex(),
		},
	}
}

var noRetryDelay = RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
