package controller

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type urlMethodPair struct {
	urlSuffix, method string
}

// EndpointMap is a map containing endpoints and the corresponding handlers that are defined and managed by a controller.
//
// Each entry in the map is organized in the following manner.
//   (urlSuffix, method): handler_function_list
type EndpointMap map[urlMethodPair][]gin.HandlerFunc

// A Controller must contain an endpoint map.
type Controller interface {
	GetGroupName() string
	GetEndpointMap() EndpointMap
}

var supportedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodPatch:   true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// RegisterHandlers registers the endpoint handlers in the controller to the router group. Endpoints are registered in URL order and nothing is registered if any entry is invalid.
func RegisterHandlers(r *gin.RouterGroup, c Controller) error {
	em := c.GetEndpointMap()

	type endpoint struct {
		urlMethodPair
		handlers []gin.HandlerFunc
	}

	endpoints := make([]endpoint, 0, len(em))
	for pair, handlers := range em {
		pair.method = strings.ToUpper(pair.method)
		if !supportedMethods[pair.method] {
			return fmt.Errorf("unsupported HTTP method '%v' for '%v%v'", pair.method, c.GetGroupName(), pair.urlSuffix)
		}
		if len(handlers) == 0 {
			return fmt.Errorf("no handler for %v '%v%v'", pair.method, c.GetGroupName(), pair.urlSuffix)
		}
		endpoints = append(endpoints, endpoint{pair, handlers})
	}
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].urlSuffix != endpoints[j].urlSuffix {
			return endpoints[i].urlSuffix < endpoints[j].urlSuffix
		}
		return endpoints[i].method < endpoints[j].method
	})

	group := r.Group(c.GetGroupName())
	for _, e := range endpoints {
		group.Handle(e.method, e.urlSuffix, e.handlers...)
		log.Debugf("已注册端点 %v %v", e.method, group.BasePath()+e.urlSuffix)
	}

	return nil
}
