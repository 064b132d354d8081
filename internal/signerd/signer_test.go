package signerd

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"gitee.com/czyczk/claimlink/internal/blockchain/chainsubmitter"
	"gitee.com/czyczk/claimlink/internal/networkinfo"
	"gitee.com/czyczk/claimlink/internal/service"
	"gitee.com/czyczk/claimlink/internal/signerapi"
	"gitee.com/czyczk/claimlink/internal/signerapi/inprocsignerapi"
	"gitee.com/czyczk/claimlink/internal/typeddata"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"gitee.com/czyczk/claimlink/pkg/keyutils"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testStart      = time.Unix(1_700_000_000, 0)
	testSender     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testUSDC       = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	testTransferID = common.HexToAddress("0x2222222222222222222222222222222222222222")
	baseEscrow     = common.HexToAddress("0x5badb0143f69015c5c86cbd9373474a9c8ab713b")
	fastRetry      = service.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
)

type MockReceiptReader struct {
	mock.Mock
}

func (m *MockReceiptReader) GetReceipt(ctx context.Context, txHash common.Hash) (*chainsubmitter.Receipt, error) {
	args := m.Called(ctx, txHash)
	receipt, _ := args.Get(0).(*chainsubmitter.Receipt)
	return receipt, args.Error(1)
}

func newTestSigner() *Signer {
	signer := NewSigner(nil, NewMemoryRegistrationStore())
	signer.Now = func() time.Time { return testStart }
	return signer
}

func newGateway(signer *Signer) *service.SignerService {
	return service.NewSignerService(&service.Info{Now: signer.Now}, inprocsignerapi.NewTransport(signer), fastRetry)
}

func erc20Descriptor() *claimlink.ClaimLinkDescriptor {
	return &claimlink.ClaimLinkDescriptor{
		Token:      claimlink.Token{Type: claimlink.ERC20, ChainID: networkinfo.ChainIDBase, Address: testUSDC},
		Sender:     testSender,
		Amount:     big.NewInt(1_000_000),
		Expiration: testStart.Unix() + 3600,
	}
}

func nativeDescriptor() *claimlink.ClaimLinkDescriptor {
	return &claimlink.ClaimLinkDescriptor{
		Token:      claimlink.Token{Type: claimlink.Native, ChainID: networkinfo.ChainIDPolygon},
		Sender:     testSender,
		Amount:     big.NewInt(5_000_000_000),
		Expiration: testStart.Unix() + 3600,
	}
}

func TestDepositParamsForERC20(t *testing.T) {
	gateway := newGateway(newTestSigner())

	params, err := gateway.RequestDepositParams(context.Background(), testTransferID, erc20Descriptor())
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	assert.Equal(t, baseEscrow, params.To)
	assert.Equal(t, 0, params.Value.Sign())

	method := escrowTokenABI.Methods[methodDeposit]
	assert.Equal(t, method.ID, params.Data[:4])
	values, err := method.Inputs.Unpack(params.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, testUSDC, values[0])
	assert.Equal(t, testTransferID, values[1])
	assert.Equal(t, big.NewInt(1_000_000), values[2])
	assert.Equal(t, big.NewInt(testStart.Unix()+3600), values[3])
	assert.Equal(t, 0, values[5].(*big.Int).Sign())
}

func TestDepositParamsForNative(t *testing.T) {
	gateway := newGateway(newTestSigner())

	params, err := gateway.RequestDepositParams(context.Background(), testTransferID, nativeDescriptor())
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress("0xbe7b40eb3a9d85d3a76142cb637ab824f0d35ead"), params.To)
	assert.Equal(t, big.NewInt(5_000_000_000), params.Value)

	method := escrowTokenABI.Methods[methodDepositETH]
	assert.Equal(t, method.ID, params.Data[:4])
	values, err := method.Inputs.Unpack(params.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, testTransferID, values[0])
	assert.Equal(t, big.NewInt(5_000_000_000), values[1])
}

func TestDepositParamsCarrySenderMessage(t *testing.T) {
	gateway := newGateway(newTestSigner())

	descriptor := erc20Descriptor()
	descriptor.EncryptedMessage = []byte{0, 12, 0, 0xaa, 0xbb, 0xcc}
	params, err := gateway.RequestDepositParams(context.Background(), testTransferID, descriptor)
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	values, err := escrowTokenABI.Methods[methodDeposit].Inputs.Unpack(params.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, descriptor.EncryptedMessage, values[len(values)-1])

	// Without a message the escrow gets empty bytes
	params, err = gateway.RequestDepositParams(context.Background(), testTransferID, nativeDescriptor())
	require.NoError(t, err)
	values, err = escrowTokenABI.Methods[methodDepositETH].Inputs.Unpack(params.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, []byte{}, values[len(values)-1])
}

func TestDepositParamsRejections(t *testing.T) {
	gateway := newGateway(newTestSigner())

	nft := erc20Descriptor()
	nft.Token.Type = claimlink.ERC721
	nft.Token.ID = big.NewInt(7)
	nft.Amount = big.NewInt(1)

	unknownChain := erc20Descriptor()
	unknownChain.Token.ChainID = 1

	tooLarge := erc20Descriptor()
	tooLarge.Amount = new(big.Int).Lsh(big.NewInt(1), 130)

	for name, descriptor := range map[string]*claimlink.ClaimLinkDescriptor{
		"nft":           nft,
		"unknown chain": unknownChain,
		"too large":     tooLarge,
	} {
		_, err := gateway.RequestDepositParams(context.Background(), testTransferID, descriptor)
		signerErr, ok := errorcode.AsSignerError(err)
		if assert.True(t, ok, name) {
			assert.Equal(t, errorcode.SignerRejected, signerErr.Kind, name)
		}
	}
}

func TestProcessRejectsBadRequests(t *testing.T) {
	signer := newTestSigner()
	params := claimlink.NewClaimLinkParams(erc20Descriptor())

	expired := params
	expired.Expiration = testStart.Unix()

	cases := map[string]*signerapi.Request{
		"unknown command":  {Command: "redeem", TransferID: testTransferID.Hex(), ClaimLink: params},
		"bad transfer ID":  {Command: signerapi.CommandGetDepositParams, TransferID: "0x12", ClaimLink: params},
		"expired":          {Command: signerapi.CommandGetDepositParams, TransferID: testTransferID.Hex(), ClaimLink: expired},
		"missing link key": {Command: signerapi.CommandGetRecoveredLinkTypedData, TransferID: testTransferID.Hex(), ClaimLink: params},
		"bad tx hash":      {Command: signerapi.CommandRegisterDeposit, TransferID: testTransferID.Hex(), ClaimLink: params, TxHash: "0xabc"},
	}

	for name, req := range cases {
		_, err := signer.Process(context.Background(), req)
		assert.True(t, isRejection(err), name)

		resp := signer.Handle(context.Background(), req)
		assert.False(t, resp.Success, name)
		assert.NotEmpty(t, resp.Error, name)
	}
}

func TestRecoveredLinkTypedDataUsesEscrowDomain(t *testing.T) {
	gateway := newGateway(newTestSigner())
	linkKeyID := common.HexToAddress("0x3333333333333333333333333333333333333333")

	template, err := gateway.RequestRecoveryTypedData(context.Background(), testTransferID, linkKeyID, erc20Descriptor())
	require.NoError(t, err)

	normalized := typeddata.Normalize(template)
	digest, err := typeddata.Hash(normalized)
	require.NoError(t, err)

	expected, _, err := apitypes.TypedDataAndHash(apitypes.TypedData{
		Domain: apitypes.TypedDataDomain{
			Name:              "LinkdropEscrow",
			Version:           "3.2",
			ChainId:           math.NewHexOrDecimal256(int64(networkinfo.ChainIDBase)),
			VerifyingContract: baseEscrow.Hex(),
		},
		PrimaryType: "Transfer",
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Transfer": {
				{Name: "linkKeyId", Type: "address"},
				{Name: "transferId", Type: "address"},
			},
		},
		Message: apitypes.TypedDataMessage{
			"linkKeyId":  linkKeyID.Hex(),
			"transferId": testTransferID.Hex(),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, expected, digest)

	sender, err := keyutils.GenerateKeyPair()
	require.NoError(t, err)
	sig, err := typeddata.NewKeySigner(sender).SignTypedData(normalized)
	require.NoError(t, err)
	recovered, err := typeddata.RecoverTypedDataSigner(normalized, sig)
	require.NoError(t, err)
	assert.Equal(t, sender.PublicIdentifier, recovered)
}

func TestRegisterDepositIsIdempotent(t *testing.T) {
	signer := newTestSigner()
	gateway := newGateway(signer)
	txHash := common.HexToHash("0xaaaa")

	require.NoError(t, gateway.RegisterDeposit(context.Background(), testTransferID, erc20Descriptor(), txHash))
	require.NoError(t, gateway.RegisterDeposit(context.Background(), testTransferID, erc20Descriptor(), txHash))

	err := gateway.RegisterDeposit(context.Background(), testTransferID, erc20Descriptor(), common.HexToHash("0xbbbb"))
	signerErr, ok := errorcode.AsSignerError(err)
	require.True(t, ok)
	assert.Equal(t, errorcode.SignerRejected, signerErr.Kind)

	stored, err := signer.Store.GetRegistration(testTransferID)
	require.NoError(t, err)
	assert.Equal(t, txHash, stored.TxHash)
	assert.Equal(t, testSender, stored.Sender)
	assert.Equal(t, testStart, stored.RegisteredAt)
}

func TestRegisterDepositChecksReceipt(t *testing.T) {
	signer := newTestSigner()
	reader := new(MockReceiptReader)
	signer.Receipts[networkinfo.ChainIDBase] = reader

	pending := common.HexToHash("0x01")
	reverted := common.HexToHash("0x02")
	flaky := common.HexToHash("0x03")
	mined := common.HexToHash("0x04")
	reader.On("GetReceipt", mock.Anything, pending).Return(nil, errorcode.ErrorNotFound)
	reader.On("GetReceipt", mock.Anything, reverted).Return(&chainsubmitter.Receipt{TxHash: reverted}, nil)
	reader.On("GetReceipt", mock.Anything, flaky).Return(nil, fmt.Errorf("connection reset"))
	reader.On("GetReceipt", mock.Anything, mined).Return(&chainsubmitter.Receipt{TxHash: mined, Success: true}, nil)

	register := func(txHash common.Hash) error {
		_, err := signer.Process(context.Background(), &signerapi.Request{
			Command:    signerapi.CommandRegisterDeposit,
			TransferID: testTransferID.Hex(),
			ClaimLink:  claimlink.NewClaimLinkParams(erc20Descriptor()),
			TxHash:     txHash.Hex(),
		})
		return err
	}

	assert.True(t, isRejection(register(pending)))
	assert.True(t, isRejection(register(reverted)))

	err := register(flaky)
	assert.Error(t, err)
	assert.False(t, isRejection(err))

	assert.NoError(t, register(mined))
	_, err = signer.Store.GetRegistration(testTransferID)
	assert.NoError(t, err)
}
