package controller

import (
	"net/http"

	"gitee.com/czyczk/claimlink/internal/linkmessage"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"gitee.com/czyczk/claimlink/pkg/linkcodec"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// A LinkController decodes claim URLs. It implements the interface `Controller`.
type LinkController struct {
	GroupName string
}

// GetGroupName returns the group name.
func (c *LinkController) GetGroupName() string {
	return c.GroupName
}

// GetEndpointMap implements part of the interface `Controller`. It returns the API endpoints and handlers which are defined and managed by LinkController.
func (c *LinkController) GetEndpointMap() EndpointMap {
	return EndpointMap{
		urlMethodPair{"decode", "POST"}: []gin.HandlerFunc{c.handleDecode},
	}
}

type decodeBody struct {
	URL              string `json:"url"`
	EncryptedMessage string `json:"encryptedMessage,omitempty"` // Hex, as read from the escrow
}

// handleDecode answers with the public part of a claim URL. The link key never leaves the handler. Given the sealed sender message, it is opened with the key the link carries.
func (lc *LinkController) handleDecode(c *gin.Context) {
	pel := &ParameterErrorList{}

	var body decodeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		*pel = append(*pel, "请求体不合法。")
	}
	claimURL := pel.AppendIfEmptyOrBlankSpaces(body.URL, "URL 不能为空。")

	if len(*pel) > 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, pel)
		return
	}

	token, err := linkcodec.Decode(claimURL)
	if err != nil {
		c.JSON(statusFromError(err), &FlowResult{Error: err.Error()})
		return
	}
	version, _ := linkcodec.VersionFromURL(claimURL)
	source, _ := linkcodec.SourceFromURL(claimURL)

	var message string
	if body.EncryptedMessage != "" {
		if message, err = openSenderMessage(token, body.EncryptedMessage); err != nil {
			c.JSON(statusFromError(err), &FlowResult{Error: err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, &DecodedLinkInfo{
		TransferID:      token.TransferID.Hex(),
		ChainID:         token.ChainID,
		LinkKeyID:       token.LinkKey.PublicIdentifier.Hex(),
		IsRecovery:      token.IsRecovery(),
		SignatureLength: token.SignatureLength(),
		Version:         version,
		Source:          source,
		HasMessage:      token.HasMessage(),
		Message:         message,
	})
}

func openSenderMessage(token *claimlink.ClaimLinkToken, encodedMessage string) (string, error) {
	if !token.HasMessage() {
		return "", errors.Wrap(errorcode.ErrorDecode, "claim URL carries no message key")
	}
	data, err := hexutil.Decode(encodedMessage)
	if err != nil {
		return "", errors.Wrap(errorcode.ErrorDecode, "encrypted message is not hex")
	}

	var initialKey [linkmessage.InitialKeyLength]byte
	copy(initialKey[:], token.EncryptionKey)
	message, err := linkmessage.Decrypt(data, initialKey)
	if err != nil {
		return "", errors.Wrap(errorcode.ErrorDecode, err.Error())
	}

	return message, nil
}
