// Package dashboard: event handling and message formatting.
package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/stridefit/stride/internal/connectivity"
	"github.com/stridefit/stride/internal/precache"
	syncengine "github.com/stridefit/stride/internal/sync"
)

// SyncResultData summarizes one reconciliation pass for clients.
type SyncResultData struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
	Duration  string   `json:"duration"`
	PassError string   `json:"pass_error,omitempty"`
}

// QueueUpdateData reports the current queue depth.
type QueueUpdateData struct {
	PendingCount int `json:"pending_count"`
	FailedCount  int `json:"failed_count"`
}

// PrecacheData reports warm progress or the final warm summary.
type PrecacheData struct {
	Task        string   `json:"task,omitempty"`
	Done        int      `json:"done"`
	Total       int      `json:"total"`
	Complete    bool     `json:"complete"`
	CachedCount int      `json:"cached_count,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

// Handler formats core events as dashboard messages. It bridges the
// connectivity controller and precache warmer to the WebSocket server.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{server: server, logger: logger}
}

// OnSyncPass broadcasts the outcome of one reconciliation pass. It
// satisfies connectivity.SyncListener.
func (h *Handler) OnSyncPass(result *syncengine.Result, err error) {
	data := SyncResultData{}
	if err != nil {
		data.PassError = err.Error()
	}
	if result != nil {
		data.Processed = result.Processed
		data.Failed = result.Failed
		data.Duration = result.Duration.String()
		for _, opErr := range result.Errors {
			data.Errors = append(data.Errors, opErr.Error)
		}
	}
	h.send(MessageTypeSyncResult, data)
}

// OnStatusChange broadcasts a fresh status snapshot.
func (h *Handler) OnStatusChange(status connectivity.Status) {
	h.send(MessageTypeStatus, status)
}

// OnQueueChange broadcasts the new queue depth after an enqueue,
// dequeue or clear.
func (h *Handler) OnQueueChange(pending, failed int) {
	h.send(MessageTypeQueueUpdate, QueueUpdateData{
		PendingCount: pending,
		FailedCount:  failed,
	})
}

// OnPrecacheProgress broadcasts one task completion during a warm. It
// satisfies precache.ProgressFunc.
func (h *Handler) OnPrecacheProgress(task string, done, total int) {
	h.send(MessageTypePrecache, PrecacheData{Task: task, Done: done, Total: total})
}

// OnPrecacheComplete broadcasts the final warm summary.
func (h *Handler) OnPrecacheComplete(result precache.Result) {
	h.send(MessageTypePrecache, PrecacheData{
		Complete:    true,
		CachedCount: result.CachedCount,
		Errors:      result.Errors,
	})
}

func (h *Handler) send(typ MessageType, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s message: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}
