package controller

import (
	"net/http"
	"strings"

	"gitee.com/czyczk/claimlink/internal/linkmessage"
	"gitee.com/czyczk/claimlink/internal/service"
	"gitee.com/czyczk/claimlink/internal/typeddata"
	"gitee.com/czyczk/claimlink/pkg/keyutils"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// A TransferController drives deposit and recovery flows for the server's sender account. It implements the interface `Controller`.
type TransferController struct {
	GroupName   string
	TransferSvc service.TransferServiceInterface
	Journal     service.JournalInterface
	Sender      typeddata.TypedDataSigner // The account deposits are sent from and recoveries are signed by
}

// GetGroupName returns the group name.
func (c *TransferController) GetGroupName() string {
	return c.GroupName
}

// GetEndpointMap implements part of the interface `Controller`. It returns the API endpoints and handlers which are defined and managed by TransferController.
func (c *TransferController) GetEndpointMap() EndpointMap {
	return EndpointMap{
		urlMethodPair{"", "POST"}:                  []gin.HandlerFunc{c.handleCreateDeposit},
		urlMethodPair{":id", "GET"}:                []gin.HandlerFunc{c.handleGetTransfer},
		urlMethodPair{":id/recovery", "POST"}:      []gin.HandlerFunc{c.handleRecover},
		urlMethodPair{":id/registration", "POST"}: []gin.HandlerFunc{c.handleResumeRegistration},
	}
}

// transferBody is the body of deposit and recovery requests. The message fields only apply to deposits.
type transferBody struct {
	claimlink.ClaimLinkParams
	Message          string `json:"message,omitempty"`
	MessageKeyLength int    `json:"messageKeyLength,omitempty"`
}

// parseDescriptor reads claim link params from the body. An empty sender means the server's own account.
func (tc *TransferController) parseDescriptor(c *gin.Context, pel *ParameterErrorList) (*claimlink.ClaimLinkDescriptor, *transferBody) {
	var body transferBody
	if err := c.ShouldBindJSON(&body); err != nil {
		*pel = append(*pel, "请求体不是合法的 claim link 参数。")
		return nil, nil
	}

	params := body.ClaimLinkParams
	if strings.TrimSpace(params.Sender) == "" {
		params.Sender = tc.Sender.Address().Hex()
	}

	descriptor, err := params.ToDescriptor()
	if err != nil {
		*pel = append(*pel, err.Error())
		return nil, nil
	}
	if descriptor.Sender != tc.Sender.Address() {
		*pel = append(*pel, "发送者必须是本服务的账户。")
		return nil, nil
	}

	return descriptor, &body
}

func parseTransferID(c *gin.Context, pel *ParameterErrorList) common.Address {
	id := pel.AppendIfEmptyOrBlankSpaces(c.Param("id"), "转账 ID 不能为空。")
	return pel.AppendIfNotHexAddress(id, "转账 ID 不合法。")
}

func (tc *TransferController) handleCreateDeposit(c *gin.Context) {
	pel := &ParameterErrorList{}
	descriptor, body := tc.parseDescriptor(c, pel)
	if body != nil && body.Message != "" && len(descriptor.EncryptedMessage) > 0 {
		*pel = append(*pel, "message 与 encryptedMessage 不能同时提供。")
	}
	if len(*pel) > 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, pel)
		return
	}

	var outcome *service.DepositOutcome
	var err error
	if body.Message != "" {
		outcome, err = tc.TransferSvc.CreateDepositWithMessage(c.Request.Context(), descriptor, &linkmessage.SenderMessage{
			Text:                body.Message,
			EncryptionKeyLength: body.MessageKeyLength,
			Signer:              tc.Sender,
		})
	} else {
		outcome, err = tc.TransferSvc.CreateDeposit(c.Request.Context(), descriptor)
	}
	if err == nil {
		c.JSON(http.StatusCreated, &FlowResult{
			Transfer: NewTransferInfo(outcome.Transfer),
			ClaimURL: outcome.ClaimURL,
		})
		return
	}

	log.Warnf("Deposit failed: %v", err)
	result := &FlowResult{Error: err.Error()}
	if outcome != nil {
		result.Transfer = NewTransferInfo(outcome.Transfer)
		// The deposit may be on chain. Without the link key it could never be claimed.
		if outcome.Transfer.DepositTxHash != nil && outcome.LinkKey != nil {
			result.LinkKey = keyutils.EncodePrivateKey(outcome.LinkKey)
		}
	}
	c.JSON(statusFromError(err), result)
}

func (tc *TransferController) handleGetTransfer(c *gin.Context) {
	pel := &ParameterErrorList{}
	transferID := parseTransferID(c, pel)
	if len(*pel) > 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, pel)
		return
	}

	transfer, err := tc.Journal.Get(transferID)
	if err != nil {
		c.String(statusFromError(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, NewTransferInfo(transfer))
}

func (tc *TransferController) handleRecover(c *gin.Context) {
	pel := &ParameterErrorList{}
	transferID := parseTransferID(c, pel)
	descriptor, _ := tc.parseDescriptor(c, pel)
	if len(*pel) > 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, pel)
		return
	}

	outcome, err := tc.TransferSvc.Recover(c.Request.Context(), transferID, descriptor, tc.Sender)
	if err == nil {
		c.JSON(http.StatusCreated, &FlowResult{
			Transfer: NewTransferInfo(outcome.Transfer),
			ClaimURL: outcome.ClaimURL,
		})
		return
	}

	result := &FlowResult{Error: err.Error()}
	if outcome != nil {
		result.Transfer = NewTransferInfo(outcome.Transfer)
	}
	c.JSON(statusFromError(err), result)
}

type resumeRegistrationBody struct {
	LinkKey string `json:"linkKey"`
}

func (tc *TransferController) handleResumeRegistration(c *gin.Context) {
	pel := &ParameterErrorList{}
	transferID := parseTransferID(c, pel)

	var body resumeRegistrationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		*pel = append(*pel, "请求体不合法。")
	}
	encodedKey := pel.AppendIfEmptyOrBlankSpaces(body.LinkKey, "link key 不能为空。")

	var linkKey *keyutils.KeyPair
	if encodedKey != "" {
		var err error
		if linkKey, err = keyutils.DecodePrivateKey(encodedKey); err != nil {
			*pel = append(*pel, "link key 不合法。")
		}
	}

	if len(*pel) > 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, pel)
		return
	}

	outcome, err := tc.TransferSvc.ResumeRegistration(c.Request.Context(), transferID, linkKey)
	if err == nil {
		c.JSON(http.StatusOK, &FlowResult{
			Transfer: NewTransferInfo(outcome.Transfer),
			ClaimURL: outcome.ClaimURL,
		})
		return
	}

	result := &FlowResult{Error: err.Error()}
	if outcome != nil {
		result.Transfer = NewTransferInfo(outcome.Transfer)
	}
	c.JSON(statusFromError(err), result)
}
