package handlers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/onelens/backend/internal/ingestion"
	"github.com/onelens/backend/pkg/logger"
)

// WebSocketHandler streams RFP processing progress. The client sends one
// document message; the server replies with a progress event per Q&A pair
// followed by a complete message with the summary.
type WebSocketHandler struct {
	processor *ingestion.Processor
}

func NewWebSocketHandler(processor *ingestion.Processor) *WebSocketHandler {
	return &WebSocketHandler{processor: processor}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type     string             `json:"type"`
			Document ingestion.Document `json:"document"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "process_rfp" {
			h.sendError(c, "Unknown message type")
			continue
		}

		logger.Info("Processing RFP over WebSocket",
			zap.String("name", msg.Document.Name),
			zap.Int("qa_pairs", len(msg.Document.QAPairs)),
		)

		result, err := h.processor.Process(context.Background(), msg.Document, func(event ingestion.ProgressEvent) {
			h.send(c, "progress", event)
		})

		if err != nil {
			logger.Error("WebSocket RFP processing failed", zap.Error(err))
			h.sendError(c, err.Error())
			continue
		}

		h.send(c, "complete", result)
	}
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal WebSocket payload", zap.Error(err))
		return
	}

	msg := map[string]interface{}{
		"type": msgType,
		"data": json.RawMessage(data),
	}

	if err := c.WriteJSON(msg); err != nil {
		logger.Debug("WebSocket write failed", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
