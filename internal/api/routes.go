// Package api exposes the read-only dashboard HTTP/WS surface (spec
// §4.8): a gin router for status/queue/solutions snapshots plus a
// gorilla/websocket Hub for live round events, adapted from the
// teacher's SetupRouter/APIHandler pattern. Every handler only reads
// state the main fuzz loop already published; none of them
// participate in scheduling, execution, or solving.
package api

import (
	"encoding/hex"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/greybox/eclipser/internal/db"
	"github.com/greybox/eclipser/internal/dict"
	"github.com/greybox/eclipser/internal/stats"
)

// QueueDepths is a closure the main fuzz loop supplies so the API
// never touches the live SeedQueue directly from another goroutine.
type QueueDepths func() (favored, normal int)

// APIHandler serves the dashboard's read-only endpoints.
type APIHandler struct {
	publisher *stats.Publisher
	depths    QueueDepths
	dbStore   *db.PostgresStore
	dict      *dict.Dict
	runID     string
}

// SetupRouter builds the gin engine, mirroring the teacher's
// CORS-then-group-routes shape.
func SetupRouter(publisher *stats.Publisher, depths QueueDepths, dbStore *db.PostgresStore, tokens *dict.Dict, wsHub *Hub, runID string) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept-Encoding, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h := &APIHandler{publisher: publisher, depths: depths, dbStore: dbStore, dict: tokens, runID: runID}

	r.GET("/status", h.handleStatus)
	r.GET("/queue", h.handleQueue)
	r.GET("/solutions", h.handleSolutions)
	r.GET("/dictionary", h.handleDictionary)
	r.GET("/ws", wsHub.Subscribe)

	return r
}

func (h *APIHandler) handleStatus(c *gin.Context) {
	snap := h.publisher.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"runId":      snap.RunID,
		"rounds":     snap.Rounds,
		"execs":      snap.Execs,
		"testcases":  snap.TestCases,
		"favored":    snap.Favored,
		"normal":     snap.Normal,
		"crashes":    snap.Crashes,
		"hangs":      snap.Hangs,
		"efficiency": snap.Efficiency,
		"lastSync":   snap.LastSync,
	})
}

func (h *APIHandler) handleQueue(c *gin.Context) {
	favored, normal := h.depths()
	c.JSON(http.StatusOK, gin.H{
		"favored": favored,
		"normal":  normal,
		"total":   favored + normal,
	})
}

func (h *APIHandler) handleSolutions(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not connected"})
		return
	}
	tcs, err := h.dbStore.RecentTestCases(c.Request.Context(), h.runID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"solutions": tcs})
}

// handleDictionary lists every solved byte-chunk token, shortest
// first, hex-encoded.
func (h *APIHandler) handleDictionary(c *gin.Context) {
	if h.dict == nil {
		c.JSON(http.StatusOK, gin.H{"tokens": []string{}})
		return
	}
	sorted := dict.SortDictByLength(h.dict.Tokens())
	tokens := make([]string, len(sorted))
	for i, tok := range sorted {
		tokens[i] = hex.EncodeToString(tok)
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// EventType tags a broadcast message's shape on the /ws feed.
type EventType string

const (
	EventRoundComplete EventType = "round_complete"
	EventNewFavored    EventType = "new_favored"
	EventCrash         EventType = "crash"
	EventHang          EventType = "hang"
	EventSyncImported  EventType = "sync_imported"
)

// Event is one JSON message broadcast over the websocket Hub.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}
