package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/incident-comms/bot/internal/model"
)

// Version - GET / 응답에 노출되는 서비스 버전
const Version = "0.1.0"

// 헬스체크 엔드포인트
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, model.PingResponse{Message: "pong"})
}

// 루트 엔드포인트
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, model.RootResponse{
		Message: "Slack Incident Communication Bot",
		Status:  "running",
		Version: Version,
	})
}

// Health - 프로세스가 요청을 받을 수 있으면 healthy
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		Status:   "healthy",
		SlackBot: "running",
	})
}
