package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"backpack-volume/internal/account"
	"backpack-volume/internal/monitor"
)

const (
	requestIDHeader     = "X-Request-ID"
	requestIDContextKey = "request_id"
)

type eventStore interface {
	ListEvents(ctx context.Context, eventType monitor.EventType, limit int) ([]monitor.Event, error)
	AccountStats(ctx context.Context) ([]monitor.AccountStats, error)
}

type stateView interface {
	QuoteState() quoteState
	AccountSnapshots() []account.Snapshot
}

// monitorAPI 提供运行状态查询接口。
type monitorAPI struct {
	events eventStore
	state  stateView
	logger *zap.Logger
}

func newMonitorAPI(events eventStore, state stateView, logger *zap.Logger) *monitorAPI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &monitorAPI{events: events, state: state, logger: logger}
}

func (m *monitorAPI) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(gin.Recovery())

	router.GET("/health", m.health)
	router.GET("/events", m.listEvents)
	router.GET("/quote", m.quote)
	router.GET("/accounts", m.accounts)
	return router
}

func (m *monitorAPI) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (m *monitorAPI) listEvents(c *gin.Context) {
	limit := 200
	if qs := c.Query("limit"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil && v > 0 {
			if v > 1000 {
				v = 1000
			}
			limit = v
		}
	}

	eventType := monitor.EventType("")
	if typ := strings.TrimSpace(c.Query("type")); typ != "" {
		eventType = monitor.EventType(strings.ToLower(typ))
	}

	events, err := m.events.ListEvents(c.Request.Context(), eventType, limit)
	if err != nil {
		m.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (m *monitorAPI) quote(c *gin.Context) {
	c.JSON(http.StatusOK, m.state.QuoteState())
}

func (m *monitorAPI) accounts(c *gin.Context) {
	stats, err := m.events.AccountStats(c.Request.Context())
	if err != nil {
		m.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accounts": m.state.AccountSnapshots(),
		"orders":   stats,
	})
}

func (m *monitorAPI) handleError(c *gin.Context, err error) {
	requestID := c.GetString(requestIDContextKey)
	m.logger.Error("监控接口异常",
		zap.String("request_id", requestID),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":      err.Error(),
		"request_id": requestID,
	})
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Set(requestIDContextKey, requestID)
		c.Next()
	}
}

func startMonitorServer(ctx context.Context, api *monitorAPI, port int, logger *zap.Logger) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: api.routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("关闭监控服务失败", zap.Error(err))
		}
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("监控服务异常", zap.Error(err))
		}
	}()

	logger.Info("监控接口已启动", zap.String("addr", addr))
	return nil
}
