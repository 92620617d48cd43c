package executor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/codex-k8s/tool-batch-server/internal/maputil"
	"github.com/codex-k8s/tool-batch-server/internal/protocol"
)

// PendingStore keeps async execution results keyed by execution id.
type PendingStore struct {
	mu      sync.Mutex
	pending map[string]chan Result
}

// NewPendingStore creates a new async execution store.
func NewPendingStore() *PendingStore {
	return &PendingStore{pending: make(map[string]chan Result)}
}

// Register allocates a pending slot for executionID.
func (s *PendingStore) Register(executionID string) (<-chan Result, error) {
	ch := make(chan Result, 1)
	if !maputil.Insert(&s.mu, s.pending, executionID, ch) {
		return nil, errExecutionAlreadyPending
	}
	return ch, nil
}

// Resolve delivers an async execution result for executionID.
func (s *PendingStore) Resolve(executionID string, result Result) bool {
	ch, ok := maputil.Pop(&s.mu, s.pending, executionID)
	if !ok {
		return false
	}
	ch <- result
	close(ch)
	return true
}

// Cancel removes a pending execution without a result.
func (s *PendingStore) Cancel(executionID string) {
	if ch, ok := maputil.Pop(&s.mu, s.pending, executionID); ok {
		close(ch)
	}
}

// Len returns the number of executions waiting for a callback.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// WebhookHandler handles async executor callbacks.
type WebhookHandler struct {
	Store  *PendingStore
	Logger *slog.Logger
}

// ServeHTTP processes webhook callbacks from async executors.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.Store == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var payload protocol.ExecutorDecision
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := decoder.Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	executionID := strings.TrimSpace(payload.ExecutionID)
	status := strings.ToLower(strings.TrimSpace(payload.Status))
	if executionID == "" || status == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	output := stringifyResult(payload.Result)
	var result Result
	switch status {
	case protocol.StatusSuccess:
		if output == "" {
			output = "ok"
		}
		result = Result{Output: output}
	case protocol.StatusError:
		if output == "" {
			output = "executor error"
		}
		result = Result{Output: output, Err: errors.New(output)}
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !h.Store.Resolve(executionID, result) {
		if h.Logger != nil {
			h.Logger.Warn("executor webhook not found", "execution_id", executionID)
		}
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

var errExecutionAlreadyPending = errors.New("execution already pending")
