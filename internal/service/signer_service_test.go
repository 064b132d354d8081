package service

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"gitee.com/czyczk/claimlink/internal/signerapi"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testTransferID = common.HexToAddress("0x2222222222222222222222222222222222222222")

func newTestSignerService(transport signerapi.Transport) *SignerService {
	clock := &testClock{now: testStart}
	return NewSignerService(&Info{Now: clock.Now}, transport, noRetryDelay)
}

func TestRequestDepositParams(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Call", mock.Anything, mock.MatchedBy(func(req *signerapi.Request) bool {
		return req.Command == signerapi.CommandGetDepositParams &&
			req.TransferID == testTransferID.Hex() &&
			req.ClaimLink.Amount == "1000000" &&
			req.ClaimLink.Token.Type == "ERC20"
	})).Return(map[string]interface{}{
		"to":    testEscrow.Hex(),
		"value": "0x3e8",
		"data":  "0xdeadbeef",
	}, nil).Once()

	params, err := newTestSignerService(transport).RequestDepositParams(context.Background(), testTransferID, newTestDescriptor(testSender))
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	assert.Equal(t, testEscrow, params.To)
	assert.Equal(t, big.NewInt(1000), params.Value)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, params.Data)
	transport.AssertExpectations(t)
}

func TestRequestDepositParamsRejectsMalformedResults(t *testing.T) {
	cases := []struct {
		name   string
		result interface{}
	}{
		{"empty to", map[string]interface{}{"to": "", "value": "1"}},
		{"bad to", map[string]interface{}{"to": "0x1234", "value": "1"}},
		{"bad value", map[string]interface{}{"to": testEscrow.Hex(), "value": "lots"}},
		{"negative value", map[string]interface{}{"to": testEscrow.Hex(), "value": "-5"}},
		{"bad data", map[string]interface{}{"to": testEscrow.Hex(), "value": "1", "data": "0xzz"}},
		{"not an object", "0xdeadbeef"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			transport := new(MockTransport)
			transport.On("Call", mock.Anything, mock.Anything).Return(c.result, nil)

			_, err := newTestSignerService(transport).RequestDepositParams(context.Background(), testTransferID, newTestDescriptor(testSender))
			signerErr, ok := errorcode.AsSignerError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, errorcode.SignerMalformedResponse, signerErr.Kind)
			transport.AssertNumberOfCalls(t, "Call", 1)
		})
	}
}

func TestGatewayValidatesBeforeSending(t *testing.T) {
	transport := new(MockTransport)
	service := newTestSignerService(transport)

	expired := newTestDescriptor(testSender)
	expired.Expiration = testStart.Unix()
	_, err := service.RequestDepositParams(context.Background(), testTransferID, expired)
	assert.Equal(t, errorcode.ErrorInvalidDescriptor, errors.Cause(err))

	noSender := newTestDescriptor(common.Address{})
	err = service.RegisterDeposit(context.Background(), testTransferID, noSender, common.HexToHash("0x01"))
	assert.Equal(t, errorcode.ErrorInvalidDescriptor, errors.Cause(err))

	_, err = service.RequestRecoveryTypedData(context.Background(), testTransferID, testTransferID, newTestDescriptor(testSender))
	assert.Equal(t, errorcode.ErrorInvalidDescriptor, errors.Cause(err))

	transport.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}

func TestUnreachableSignerIsRetried(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Call", mock.Anything, forCommand(signerapi.CommandGetDepositParams)).
		Return(nil, errorcode.NewSignerUnreachable("getDepositParams", fmt.Errorf("connection refused"))).Once()
	transport.On("Call", mock.Anything, forCommand(signerapi.CommandGetDepositParams)).
		Return(depositParamsResult(), nil).Once()

	_, err := newTestSignerService(transport).RequestDepositParams(context.Background(), testTransferID, newTestDescriptor(testSender))
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	transport.AssertNumberOfCalls(t, "Call", 2)
}

func TestUnreachableSignerGivesUpAfterMaxAttempts(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Call", mock.Anything, mock.Anything).
		Return(nil, errorcode.NewSignerUnreachable("getDepositParams", fmt.Errorf("connection refused")))

	_, err := newTestSignerService(transport).RequestDepositParams(context.Background(), testTransferID, newTestDescriptor(testSender))
	assert.True(t, errorcode.IsRetryable(err))
	transport.AssertNumberOfCalls(t, "Call", noRetryDelay.MaxAttempts)
}

func TestRejectedSignerIsNotRetried(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Call", mock.Anything, mock.Anything).
		Return(nil, errorcode.NewSignerRejected("getDepositParams", "unsupported token"))

	_, err := newTestSignerService(transport).RequestDepositParams(context.Background(), testTransferID, newTestDescriptor(testSender))
	signerErr, ok := errorcode.AsSignerError(err)
	require.True(t, ok)
	assert.Equal(t, errorcode.SignerRejected, signerErr.Kind)
	assert.Equal(t, "unsupported token", signerErr.Reason)
	transport.AssertNumberOfCalls(t, "Call", 1)
}

func TestRequestRecoveryTypedData(t *testing.T) {
	linkKeyID := common.HexToAddress("0x1111111111111111111111111111111111111111")

	transport := new(MockTransport)
	transport.On("Call", mock.Anything, mock.MatchedBy(func(req *signerapi.Request) bool {
		return req.Command == signerapi.CommandGetRecoveredLinkTypedData && req.LinkKeyID == linkKeyID.Hex()
	})).Return(recoveryTypedDataResult(testTransferID, linkKeyID), nil)

	template, err := newTestSignerService(transport).RequestRecoveryTypedData(context.Background(), testTransferID, linkKeyID, newTestDescriptor(testSender))
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	assert.Equal(t, "Transfer", template.PrimaryType)
	assert.Len(t, template.Types["Transfer"], 2)
	assert.Equal(t, "linkKeyId", template.Types["Transfer"][0].Name)
	assert.Equal(t, testTransferID.Hex(), template.Message["transferId"])
}

func TestRegisterDeposit(t *testing.T) {
	txHash := common.HexToHash("0xabc")

	cases := []struct {
		name    string
		result  interface{}
		wantErr bool
	}{
		{"registered", map[string]interface{}{"registered": true}, false},
		{"duplicate", map[string]interface{}{"registered": true, "duplicate": true}, false},
		{"bare true", true, false},
		{"bare false", false, true},
		{"not registered", map[string]interface{}{"registered": false}, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			transport := new(MockTransport)
			transport.On("Call", mock.Anything, mock.MatchedBy(func(req *signerapi.Request) bool {
				return req.Command == signerapi.CommandRegisterDeposit && req.TxHash == txHash.Hex()
			})).Return(c.result, nil)

			err := newTestSignerService(transport).RegisterDeposit(context.Background(), testTransferID, newTestDescriptor(testSender), txHash)
			if !c.wantErr {
				assert.NoError(t, err)
				return
			}

			signerErr, ok := errorcode.AsSignerError(err)
			require.True(t, ok)
			assert.Equal(t, errorcode.SignerRejected, signerErr.Kind)
		})
	}
}
