package signerd

import (
	"net/http"

	"gitee.com/czyczk/claimlink/internal/signerapi"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RegisterHTTPHandlers mounts the signer at `path`: POST for single requests and GET `path/ws` for a WebSocket session.
//
// HTTP answers are 200 with a success envelope, 422 with an error envelope for rejections and 500 for the signer's own failures, so that HTTP clients retry only the latter.
func RegisterHTTPHandlers(r gin.IRoutes, path string, signer *Signer) {
	r.POST(path, newHTTPHandler(signer))
	r.GET(path+"/ws", gin.WrapF(NewWSHandler(signer)))
}

func newHTTPHandler(signer *Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signerapi.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, signerapi.NewErrorResponse("", "请求体不合法："+err.Error()))
			return
		}

		result, err := signer.Process(c.Request.Context(), &req)
		if err != nil {
			if isRejection(err) {
				log.Debugf("Rejected '%v' for transfer %v: %v", req.Command, req.TransferID, err)
				c.JSON(http.StatusUnprocessableEntity, signerapi.NewErrorResponse(req.RequestID, rejectionReason(err)))
				return
			}

			log.Errorf("Cannot answer '%v' for transfer %v: %v", req.Command, req.TransferID, err)
			c.JSON(http.StatusInternalServerError, signerapi.NewErrorResponse(req.RequestID, err.Error()))
			return
		}

		c.JSON(http.StatusOK, signerapi.NewSuccessResponse(req.RequestID, result))
	}
}
