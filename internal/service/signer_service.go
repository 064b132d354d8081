package service

import (
	"context"
	"math/big"
	"strings"

	"gitee.com/czyczk/claimlink/internal/signerapi"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"gitee.com/czyczk/claimlink/pkg/models/typeddata"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SignerService 实现了 `SignerServiceInterface` 接口，通过可替换的传输层与签名服务交互
type SignerService struct {
	ServiceInfo *Info
	Transport   signerapi.Transport
	RetryPolicy RetryPolicy
}

// NewSignerService creates a signer gateway over the given transport.
func NewSignerService(info *Info, transport signerapi.Transport, policy RetryPolicy) *SignerService {
	return &SignerService{
		ServiceInfo: info,
		Transport:   transport,
		RetryPolicy: policy,
	}
}

func (s *SignerService) newRequest(command signerapi.Command, transferID common.Address, descriptor *claimlink.ClaimLinkDescriptor) (*signerapi.Request, error) {
	if descriptor == nil {
		return nil, errors.Wrap(errorcode.ErrorInvalidDescriptor, "descriptor is not provided")
	}
	if err := descriptor.Validate(s.ServiceInfo.now()); err != nil {
		return nil, err
	}
	if transferID == (common.Address{}) {
		return nil, errors.Wrap(errorcode.ErrorInvalidDescriptor, "transfer ID is not set")
	}

	return signerapi.NewRequest(command, transferID.Hex(), claimlink.NewClaimLinkParams(descriptor)), nil
}

func (s *SignerService) RequestDepositParams(ctx context.Context, transferID common.Address, descriptor *claimlink.ClaimLinkDescriptor) (*claimlink.DepositParams, error) {
	req, err := s.newRequest(signerapi.CommandGetDepositParams, transferID, descriptor)
	if err != nil {
		return nil, err
	}

	result, err := callWithRetry(ctx, s.Transport, s.RetryPolicy, req)
	if err != nil {
		return nil, err
	}

	op := string(req.Command)
	var raw claimlink.DepositParamsResult
	if err := decodeResult(result, &raw); err != nil {
		return nil, errorcode.NewSignerMalformedResponse(op, "deposit params do not match the expected shape", err)
	}

	if strings.TrimSpace(raw.To) == "" {
		return nil, errorcode.NewSignerMalformedResponse(op, "deposit params have an empty 'to'", nil)
	}
	if !common.IsHexAddress(raw.To) {
		return nil, errorcode.NewSignerMalformedResponse(op, "deposit params 'to' is not an address: "+raw.To, nil)
	}

	value, err := parseValue(raw.Value)
	if err != nil {
		return nil, errorcode.NewSignerMalformedResponse(op, "deposit params 'value' cannot be parsed", err)
	}

	var data []byte
	if raw.Data != "" && raw.Data != "0x" {
		data, err = hexutil.Decode(raw.Data)
		if err != nil {
			return nil, errorcode.NewSignerMalformedResponse(op, "deposit params 'data' is not hex", err)
		}
	}

	log.Debugf("Received deposit params for transfer %v", transferID.Hex())
	return &claimlink.DepositParams{
		To:    common.HexToAddress(raw.To),
		Value: value,
		Data:  data,
	}, nil
}

func (s *SignerService) RequestRecoveryTypedData(ctx context.Context, transferID common.Address, linkKeyID common.Address, descriptor *claimlink.ClaimLinkDescriptor) (*typeddata.TypedDataTemplate, error) {
	req, err := s.newRequest(signerapi.CommandGetRecoveredLinkTypedData, transferID, descriptor)
	if err != nil {
		return nil, err
	}
	if linkKeyID == (common.Address{}) || linkKeyID == transferID {
		return nil, errors.Wrap(errorcode.ErrorInvalidDescriptor, "link key ID must be set and differ from the transfer ID")
	}
	req.LinkKeyID = linkKeyID.Hex()

	result, err := callWithRetry(ctx, s.Transport, s.RetryPolicy, req)
	if err != nil {
		return nil, err
	}

	op := string(req.Command)
	var template typeddata.TypedDataTemplate
	if err := decodeResult(result, &template); err != nil {
		return nil, errorcode.NewSignerMalformedResponse(op, "typed data does not match the expected shape", err)
	}
	if template.Domain == nil || len(template.Types) == 0 || template.Message == nil {
		return nil, errorcode.NewSignerMalformedResponse(op, "typed data lacks domain, types or message", nil)
	}

	return &template, nil
}

func (s *SignerService) RegisterDeposit(ctx context.Context, transferID common.Address, descriptor *claimlink.ClaimLinkDescriptor, txHash common.Hash) error {
	req, err := s.newRequest(signerapi.CommandRegisterDeposit, transferID, descriptor)
	if err != nil {
		return err
	}
	if txHash == (common.Hash{}) {
		return errors.Wrap(errorcode.ErrorInvalidDescriptor, "deposit transaction hash is not set")
	}
	req.TxHash = txHash.Hex()

	result, err := callWithRetry(ctx, s.Transport, s.RetryPolicy, req)
	if err != nil {
		return err
	}

	op := string(req.Command)
	// Some signers answer a bare `true`
	if registered, ok := result.(bool); ok {
		if !registered {
			return errorcode.NewSignerRejected(op, "signer did not register the deposit")
		}
		return nil
	}

	var ack claimlink.RegisterDepositResult
	if err := decodeResult(result, &ack); err != nil {
		return errorcode.NewSignerMalformedResponse(op, "registration answer does not match the expected shape", err)
	}
	if !ack.Registered {
		return errorcode.NewSignerRejected(op, "signer did not register the deposit")
	}
	if ack.Duplicate {
		log.Infof("Deposit of transfer %v was already registered", transferID.Hex())
	}

	return nil
}

// decodeResult maps a loosely typed result onto a struct. Numbers and strings are converted into each other as needed.
func decodeResult(result interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
		TagName:          "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "无法创建解码器")
	}

	return decoder.Decode(result)
}

// parseValue accepts decimal or 0x-prefixed hex. An empty value is zero.
func parseValue(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(big.Int), nil
	}

	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return hexutil.DecodeBig(value)
	}

	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, errors.Errorf("'%v' is not a non-negative integer", value)
	}

	return parsed, nil
}
