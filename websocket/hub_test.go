package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterlog/models"
)

func TestHubBroadcastsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", hub.ServeWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	evt := models.ReportEvent{
		Type:      models.EventReportCreated,
		Report:    &models.Report{ID: 42, Title: "Flooded underpass"},
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, hub.Send(evt))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got models.ReportEvent
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, models.EventReportCreated, got.Type)
	assert.Equal(t, int64(42), got.Report.ID)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubSendWithoutClients(t *testing.T) {
	hub := NewHub()
	assert.NoError(t, hub.Send(models.ReportEvent{Type: models.EventReportResolved}))
}
