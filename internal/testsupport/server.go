package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// FakeServer imitates the generation server's HTTP and WebSocket API.
// After each accepted prompt it replays an execution script to every
// connected stream client.
type FakeServer struct {
	server *httptest.Server

	mu          sync.Mutex
	nextNumber  int64
	prompts     []SubmittedPrompt
	running     [][2]any
	pending     [][2]any
	history     map[string]json.RawMessage
	deleted     []string
	cleared     int
	interrupted int
	uploads     []string
	rejectNext  string
	streams     map[*websocket.Conn]chan []byte
}

// SubmittedPrompt is a prompt received by the fake server.
type SubmittedPrompt struct {
	PromptID string
	ClientID string
	Graph    map[string]any
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewFakeServer starts a fake server that shuts down with the test.
func NewFakeServer(t testing.TB) *FakeServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &FakeServer{
		nextNumber: 1,
		history:    make(map[string]json.RawMessage),
		streams:    make(map[*websocket.Conn]chan []byte),
	}
	router := gin.New()
	router.POST("/prompt", f.handleSubmit)
	router.GET("/prompt", f.handlePromptInfo)
	router.GET("/queue", f.handleQueue)
	router.POST("/queue", f.handleQueueUpdate)
	router.POST("/interrupt", f.handleInterrupt)
	router.GET("/history", f.handleHistory)
	router.GET("/history/:id", f.handleHistory)
	router.GET("/system_stats", f.handleSystemStats)
	router.GET("/object_info", f.handleObjectInfo)
	router.GET("/object_info/:class", f.handleObjectInfo)
	router.GET("/embeddings", func(c *gin.Context) { c.JSON(http.StatusOK, []string{"easynegative"}) })
	router.GET("/extensions", func(c *gin.Context) { c.JSON(http.StatusOK, []string{"/extensions/core/widgetInputs.js"}) })
	router.POST("/upload/image", f.handleUpload)
	router.POST("/upload/mask", f.handleUpload)
	router.GET("/view", f.handleView)
	router.GET("/ws", f.handleStream)

	f.server = httptest.NewServer(router)
	t.Cleanup(f.Close)
	return f
}

// Address returns the host:port the server listens on.
func (f *FakeServer) Address() string {
	return strings.TrimPrefix(f.server.URL, "http://")
}

// Close stops the server and every stream.
func (f *FakeServer) Close() {
	f.mu.Lock()
	for conn, ch := range f.streams {
		close(ch)
		delete(f.streams, conn)
	}
	f.mu.Unlock()
	f.server.Close()
}

// Prompts returns every accepted prompt.
func (f *FakeServer) Prompts() []SubmittedPrompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SubmittedPrompt(nil), f.prompts...)
}

// SetQueue replaces the queue snapshot. Entries are number, prompt id pairs.
func (f *FakeServer) SetQueue(running, pending [][2]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = running
	f.pending = pending
}

// AddHistory stores a raw history record under promptID.
func (f *FakeServer) AddHistory(promptID, record string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[promptID] = json.RawMessage(record)
}

// RejectNext makes the next POST /prompt fail with reason.
func (f *FakeServer) RejectNext(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectNext = reason
}

// Deleted returns prompt ids removed via POST /queue.
func (f *FakeServer) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// Cleared returns how often the queue was cleared.
func (f *FakeServer) Cleared() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared
}

// Interrupted returns how often /interrupt was called.
func (f *FakeServer) Interrupted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interrupted
}

// Uploads returns the filenames received by the upload endpoints.
func (f *FakeServer) Uploads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

// Broadcast sends a text frame to every connected stream.
func (f *FakeServer) Broadcast(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.streams {
		ch <- []byte(msg)
	}
}

// ExecutionScript returns the frames a short successful run produces.
func ExecutionScript(promptID string) []string {
	return []string{
		`{"type":"status","data":{"status":{"exec_info":{"queue_remaining":1}}}}`,
		fmt.Sprintf(`{"type":"execution_start","data":{"prompt_id":%q}}`, promptID),
		fmt.Sprintf(`{"type":"executing","data":{"node":"3","prompt_id":%q}}`, promptID),
		fmt.Sprintf(`{"type":"progress","data":{"value":10,"max":20,"prompt_id":%q,"node":"3"}}`, promptID),
		fmt.Sprintf(`{"type":"progress","data":{"value":20,"max":20,"prompt_id":%q,"node":"3"}}`, promptID),
		fmt.Sprintf(`{"type":"executing","data":{"node":"9","prompt_id":%q}}`, promptID),
		fmt.Sprintf(`{"type":"executing","data":{"node":null,"prompt_id":%q}}`, promptID),
		`{"type":"status","data":{"status":{"exec_info":{"queue_remaining":0}}}}`,
	}
}

// HistoryRecord renders a successful history entry with one output image
// from node 9 and one temp preview.
func HistoryRecord(number int64, promptID, clientID, filename string) string {
	return fmt.Sprintf(`{
  "prompt": [%d, %q, {}, {"client_id": %q}, ["9"]],
  "outputs": {
    "9": {"images": [{"filename": %q, "subfolder": "", "type": "output"}]},
    "12": {"images": [{"filename": "preview_%d.png", "subfolder": "previews", "type": "temp"}]}
  },
  "status": {"status_str": "success", "completed": true, "messages": []}
}`, number, promptID, clientID, filename, number)
}

func (f *FakeServer) handleSubmit(c *gin.Context) {
	var body struct {
		Prompt   map[string]any `json:"prompt"`
		ClientID string         `json:"client_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}, "node_errors": gin.H{}})
		return
	}

	f.mu.Lock()
	if reason := f.rejectNext; reason != "" {
		f.rejectNext = ""
		f.mu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": reason}, "node_errors": gin.H{}})
		return
	}
	number := f.nextNumber
	f.nextNumber++
	promptID := fmt.Sprintf("prompt-%d", number)
	f.prompts = append(f.prompts, SubmittedPrompt{PromptID: promptID, ClientID: body.ClientID, Graph: body.Prompt})
	f.history[promptID] = json.RawMessage(HistoryRecord(number, promptID, body.ClientID, fmt.Sprintf("ComfyUI_%05d_.png", number)))
	f.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"prompt_id": promptID, "number": number, "node_errors": gin.H{}})
	for _, msg := range ExecutionScript(promptID) {
		f.Broadcast(msg)
	}
}

func (f *FakeServer) handlePromptInfo(c *gin.Context) {
	f.mu.Lock()
	remaining := len(f.running) + len(f.pending)
	f.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"exec_info": gin.H{"queue_remaining": remaining}})
}

func (f *FakeServer) handleQueue(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	encode := func(entries [][2]any) []any {
		out := make([]any, 0, len(entries))
		for _, e := range entries {
			out = append(out, []any{e[0], e[1], gin.H{}, gin.H{"client_id": "fake"}, []string{"9"}})
		}
		return out
	}
	c.JSON(http.StatusOK, gin.H{"queue_running": encode(f.running), "queue_pending": encode(f.pending)})
}

func (f *FakeServer) handleQueueUpdate(c *gin.Context) {
	var body struct {
		Clear  bool     `json:"clear"`
		Delete []string `json:"delete"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if body.Clear {
		f.cleared++
		f.pending = nil
	}
	for _, id := range body.Delete {
		f.deleted = append(f.deleted, id)
		kept := f.pending[:0]
		for _, e := range f.pending {
			if e[1] != id {
				kept = append(kept, e)
			}
		}
		f.pending = kept
	}
	c.Status(http.StatusOK)
}

func (f *FakeServer) handleInterrupt(c *gin.Context) {
	f.mu.Lock()
	f.interrupted++
	f.mu.Unlock()
	c.Status(http.StatusOK)
}

func (f *FakeServer) handleHistory(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id := c.Param("id"); id != "" {
		out := gin.H{}
		if rec, ok := f.history[id]; ok {
			out[id] = rec
		}
		c.JSON(http.StatusOK, out)
		return
	}
	c.JSON(http.StatusOK, f.history)
}

func (f *FakeServer) handleSystemStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"system": gin.H{"os": "posix", "python_version": "3.11.9", "embedded_python": false, "ram_total": 34359738368, "ram_free": 17179869184},
		"devices": []gin.H{{
			"name": "cuda:0 NVIDIA GeForce RTX 4090", "type": "cuda", "index": 0,
			"vram_total": 25757220864, "vram_free": 24000000000,
			"torch_vram_total": 0, "torch_vram_free": 0,
		}},
	})
}

func (f *FakeServer) handleObjectInfo(c *gin.Context) {
	class := c.Param("class")
	if class == "" {
		class = "KSampler"
	}
	c.JSON(http.StatusOK, gin.H{class: gin.H{"input": gin.H{"required": gin.H{}}, "output": []string{"LATENT"}, "category": "sampling"}})
}

func (f *FakeServer) handleUpload(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	f.mu.Lock()
	f.uploads = append(f.uploads, file.Filename)
	f.mu.Unlock()
	uploadType := c.PostForm("type")
	if uploadType == "" {
		uploadType = "input"
	}
	c.JSON(http.StatusOK, gin.H{"name": file.Filename, "subfolder": c.PostForm("subfolder"), "type": uploadType})
}

func (f *FakeServer) handleView(c *gin.Context) {
	name := c.Query("filename")
	if name == "" || name == "missing.png" {
		c.String(http.StatusNotFound, "file not found")
		return
	}
	c.Data(http.StatusOK, "image/png", []byte("\x89PNG\r\n\x1a\n"+name))
}

func (f *FakeServer) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := make(chan []byte, 64)
	f.mu.Lock()
	f.streams[conn] = ch
	f.mu.Unlock()

	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				f.mu.Lock()
				if existing, ok := f.streams[conn]; ok {
					close(existing)
					delete(f.streams, conn)
				}
				f.mu.Unlock()
				return
			}
		}
	}()

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"status","data":{"status":{"exec_info":{"queue_remaining":0}},"sid":"fake"}}`))
	for msg := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
