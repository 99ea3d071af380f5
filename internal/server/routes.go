package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danmuck/smsctl/internal/compose"
	"github.com/danmuck/smsctl/internal/connector"
	"github.com/danmuck/smsctl/internal/notify"
	"github.com/danmuck/smsctl/internal/observability"
	"github.com/danmuck/smsctl/internal/registry"
	"github.com/danmuck/smsctl/internal/store"
)

// ConnectorInfo is one registry entry as served by the API.
type ConnectorInfo struct {
	connector.SpecView
	UpdatedAt time.Time `json:"updated_at"`
}

func connectorInfo(e registry.Entry) ConnectorInfo {
	return ConnectorInfo{SpecView: e.Spec.View(), UpdatedAt: e.UpdatedAt}
}

func (a *Admin) RegisterRoutes() {
	r := a.router
	r.GET("/health", a.health)
	r.GET("/ready", a.ready)
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	r.GET("/connectors", a.listConnectors)
	r.GET("/connectors/:id", a.getConnector)
	r.GET("/alerts", a.listAlerts)
	r.GET("/captcha", a.listCaptcha)
	r.GET("/messages", a.listMessages)

	r.POST("/commands/bootstrap", a.postBootstrap)
	r.POST("/commands/update", a.postUpdate)
	r.POST("/commands/send", a.postSend)
}

func (a *Admin) health(c *gin.Context) {
	body := gin.H{
		"status":     "ok",
		"uptime":     time.Since(a.Appeared).String(),
		"node":       a.ID,
		"version":    Version,
		"connectors": a.deps.Registry.Len(),
	}
	if a.deps.Peers != nil {
		body["peers"] = a.deps.Peers()
	}
	c.JSON(http.StatusOK, body)
}

func (a *Admin) ready(c *gin.Context) {
	if a.deps.Ready != nil {
		if err := a.deps.Ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ready": true, "node": a.ID})
}

func (a *Admin) listConnectors(c *gin.Context) {
	entries := a.deps.Registry.List()
	list := make([]ConnectorInfo, 0, len(entries))
	for _, e := range entries {
		list = append(list, connectorInfo(e))
	}
	c.JSON(http.StatusOK, gin.H{"connectors": list})
}

func (a *Admin) getConnector(c *gin.Context) {
	e, ok := a.deps.Registry.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "connector not found"})
		return
	}
	c.JSON(http.StatusOK, connectorInfo(e))
}

func (a *Admin) listAlerts(c *gin.Context) {
	alerts := []notify.Alert{}
	if a.deps.Alerts != nil {
		alerts = append(alerts, a.deps.Alerts.Recent()...)
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (a *Admin) listCaptcha(c *gin.Context) {
	reqs := []notify.CaptchaRequest{}
	if a.deps.Captcha != nil {
		reqs = append(reqs, a.deps.Captcha.Recent()...)
	}
	c.JSON(http.StatusOK, gin.H{"captcha": reqs})
}

func (a *Admin) listMessages(c *gin.Context) {
	if a.deps.Messages == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "message store not configured"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	msgs, err := a.deps.Messages.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (a *Admin) postBootstrap(c *gin.Context) {
	if !a.requireComposer(c) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"command": "bootstrap", "delivered": a.deps.Composer.Bootstrap()})
}

func (a *Admin) postUpdate(c *gin.Context) {
	if !a.requireComposer(c) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"command": "update", "delivered": a.deps.Composer.Update()})
}

func (a *Admin) postSend(c *gin.Context) {
	if !a.requireComposer(c) {
		return
	}
	var req compose.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd, err := a.deps.Composer.Send(req)
	if err != nil {
		c.JSON(sendStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"command":    "send",
		"connector":  req.Connector,
		"recipients": cmd.RecipientCount(),
		"deferred":   cmd.Deferred(),
	})
}

func (a *Admin) requireComposer(c *gin.Context) bool {
	if a.deps.Composer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "composer not configured"})
		return false
	}
	return true
}

func sendStatus(err error) int {
	switch {
	case errors.Is(err, compose.ErrUnknownConnector):
		return http.StatusNotFound
	case errors.Is(err, compose.ErrUnsupported), errors.Is(err, compose.ErrNoRecipients):
		return http.StatusUnprocessableEntity
	case errors.Is(err, compose.ErrNotDelivered):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
