package handlers

import (
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"waterlog/assistant"
)

type predictAuthorityRequest struct {
	Description string `json:"description" binding:"required"`
	Location    string `json:"location"`
}

func (h *Handlers) PredictAuthority(c *gin.Context) {
	var req predictAuthorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "description is required"})
		return
	}
	prediction, err := h.Assistant.PredictAuthority(c.Request.Context(), req.Description, req.Location)
	if err != nil {
		log.Errorf("AI prediction error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI Prediction failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"prediction": prediction})
}

type chatRequest struct {
	Message string               `json:"message" binding:"required"`
	History []assistant.ChatTurn `json:"history"`
}

func (h *Handlers) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	reply, err := h.Assistant.Chat(c.Request.Context(), req.Message, req.History)
	if err != nil {
		log.Errorf("AI chat error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Chat failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (h *Handlers) RainfallWarnings(c *gin.Context) {
	c.JSON(http.StatusOK, assistant.RainfallWarnings())
}
