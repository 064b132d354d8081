package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthInfo is answered on `GET /health`.
type HealthInfo struct {
	ChainID    uint64      `json:"chainId"`
	Sender     string      `json:"sender"`
	Transport  string      `json:"signerTransport"`
	Reconciler interface{} `json:"reconciler,omitempty"`
}

// A PingPongController implements the interface `Controller`. It answers liveness checks and, if `Health` is set, a health summary of the service.
type PingPongController struct {
	GroupName string
	Health    func() *HealthInfo
}

// GetGroupName returns the group name
func (ppc *PingPongController) GetGroupName() string {
	return ppc.GroupName
}

// GetEndpointMap implements the interface `Controller` and returns the API endpoints and handlers defined and managed by PingPongController.
func (ppc *PingPongController) GetEndpointMap() EndpointMap {
	em := EndpointMap{
		urlMethodPair{"/ping", http.MethodGet}:  []gin.HandlerFunc{ppc.handlePing},
		urlMethodPair{"/ping", http.MethodPost}: []gin.HandlerFunc{ppc.handlePing},
	}
	if ppc.Health != nil {
		em[urlMethodPair{"/health", http.MethodGet}] = []gin.HandlerFunc{ppc.handleHealth}
	}

	return em
}

func (ppc *PingPongController) handlePing(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (ppc *PingPongController) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, ppc.Health())
}
