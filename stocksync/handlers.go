package stocksync

import (
	"net/http"

	"bitbucket.org/mmdatafocus/stockverify_backend/syncerr"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type SetIntervalRequest struct {
	SyncType string `json:"syncType" validate:"required,oneof=sql_qty_sync change_detection_sync"`
	Seconds  int    `json:"seconds" validate:"required,min=10,max=86400"`
}

type ToggleRequest struct {
	SyncType string `json:"syncType" validate:"required,oneof=sql_qty_sync change_detection_sync"`
}

func StatusHandler(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, e.GetStatus())
	}
}

func SyncNowHandler(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := e.SyncNow(c.Request.Context())
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "stats": stats})
			return
		}
		c.JSON(http.StatusOK, gin.H{"stats": stats})
	}
}

func SyncChangesNowHandler(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := e.SyncChangesNow(c.Request.Context())
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "stats": stats})
			return
		}
		c.JSON(http.StatusOK, gin.H{"stats": stats})
	}
}

func SetIntervalHandler(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetIntervalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := validate.Struct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := e.SetInterval(req.SyncType, req.Seconds); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"syncType": req.SyncType, "intervalSeconds": req.Seconds})
	}
}

func EnableHandler(e *Engine) gin.HandlerFunc {
	return toggleHandler(e, true)
}

func DisableHandler(e *Engine) gin.HandlerFunc {
	return toggleHandler(e, false)
}

func toggleHandler(e *Engine, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ToggleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := validate.Struct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var err error
		if enabled {
			err = e.Enable(req.SyncType)
		} else {
			err = e.Disable(req.SyncType)
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"syncType": req.SyncType, "enabled": enabled})
	}
}

// RealtimeQuantityHandler serves the count-line creation flow: checks one item
// against the ERP and reports where the returned quantity came from.
func RealtimeQuantityHandler(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		itemCode := c.Param("itemCode")
		res, err := e.CheckItemQuantityRealtime(c.Request.Context(), itemCode)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func statusFor(err error) int {
	switch syncerr.Kind(err) {
	case syncerr.ErrValidation:
		return http.StatusNotFound
	case syncerr.ErrSyncConfig:
		return http.StatusConflict
	case syncerr.ErrConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
