package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/medch24/distribution-annuelle/internal/adapter/metrics"
	"github.com/medch24/distribution-annuelle/internal/usecase"
)

// Request event names, mirrored by the browser client.
const (
	EventGeneratePDF       = "generate-pdf"
	EventSaveTable         = "save-table"
	EventLoadLatestCopy    = "load-latest-copy"
	EventLoadAllSelections = "load-all-selections"
	EventDeleteSubjectData = "delete-subject-data"
	eventAppVersion        = "app-version"
)

// envelope is an inbound client request.
type envelope struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outMessage is anything the server sends: an unsolicited push (Event set) or
// an acknowledgement addressed to one request (ID set).
type outMessage struct {
	ID    string `json:"id,omitempty"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data"`
}

type saveTableRequest struct {
	ClassName string `json:"className"`
	SheetName string `json:"sheetName"`
	Data      any    `json:"data"`
}

type classRequest struct {
	ClassName string `json:"className"`
}

type deleteSubjectRequest struct {
	ClassName string `json:"className"`
	SheetName string `json:"sheetName"`
}

type generatePDFRequest struct {
	DocBuffer []byte `json:"docBuffer"`
	FileName  string `json:"fileName"`
}

// Gateway upgrades client connections and dispatches their named requests to
// the gradebook and pdf services. Acknowledgements go only to the session
// that issued the request; nothing is broadcast.
type Gateway struct {
	gradebook  *usecase.GradebookService
	pdf        *usecase.PDFService
	logger     *slog.Logger
	metrics    *metrics.GatewayMetrics
	appVersion int64
	upgrader   websocket.Upgrader
	maxMsgSize int64
}

// NewGateway creates a Gateway. appVersion is fixed at process start so
// clients can detect a stale cached frontend. m may be nil.
func NewGateway(gradebook *usecase.GradebookService, pdf *usecase.PDFService, logger *slog.Logger, m *metrics.GatewayMetrics, appVersion int64, maxMsgSize int64) *Gateway {
	return &Gateway{
		gradebook:  gradebook,
		pdf:        pdf,
		logger:     logger.With("component", "gateway"),
		metrics:    m,
		appVersion: appVersion,
		maxMsgSize: maxMsgSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The grade sheets are served and edited from arbitrary school
			// networks; origin checking is not part of this surface.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and runs the session until the client
// disconnects.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	sessionID := uuid.NewString()
	sess := &session{
		id:     sessionID,
		conn:   conn,
		gw:     g,
		logger: g.logger.With("session_id", sessionID),
	}

	if g.metrics != nil {
		g.metrics.ActiveSessions.Inc()
		defer g.metrics.ActiveSessions.Dec()
	}
	sess.logger.Info("client connected", "remote_addr", r.RemoteAddr)

	// In-flight work outlives a dropped session: the client losing its
	// connection mid-save must not abort the committed half of the save.
	sess.run(context.WithoutCancel(r.Context()))

	sess.logger.Info("client disconnected")
}

// session is one long-lived client connection. Reads happen on the session
// goroutine; every request is dispatched on its own goroutine so a slow
// conversion never blocks the session's other traffic. Writes are serialized
// by writeMu.
type session struct {
	id      string
	conn    *websocket.Conn
	gw      *Gateway
	logger  *slog.Logger
	writeMu sync.Mutex
}

func (s *session) run(ctx context.Context) {
	defer s.conn.Close()

	if s.gw.maxMsgSize > 0 {
		s.conn.SetReadLimit(s.gw.maxMsgSize)
	}

	// Unsolicited version push so a stale cached client can reload itself.
	s.send(outMessage{Event: eventAppVersion, Data: map[string]any{"appVersion": s.gw.appVersion}})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("session read failed", "error", err)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.logger.Warn("malformed request envelope", "error", err)
			s.send(outMessage{Data: map[string]any{"error": "malformed request"}})
			continue
		}

		go s.dispatch(ctx, env)
	}
}

func (s *session) dispatch(ctx context.Context, env envelope) {
	var (
		ack any
		ok  bool
	)

	switch env.Event {
	case EventGeneratePDF:
		start := time.Now()
		ack, ok = s.handleGeneratePDF(ctx, env.Data)
		if s.gw.metrics != nil {
			s.gw.metrics.ConversionSeconds.Observe(time.Since(start).Seconds())
		}
	case EventSaveTable:
		ack, ok = s.handleSaveTable(ctx, env.Data)
	case EventLoadLatestCopy:
		ack, ok = s.handleLoadLatestCopy(ctx, env.Data)
	case EventLoadAllSelections:
		ack, ok = s.handleLoadAllSelections(ctx, env.Data)
	case EventDeleteSubjectData:
		ack, ok = s.handleDeleteSubjectData(ctx, env.Data)
	default:
		s.logger.Warn("unknown event", "event", env.Event)
		ack, ok = map[string]any{"error": "unknown event: " + env.Event}, false
	}

	if s.gw.metrics != nil {
		status := "ok"
		if !ok {
			status = "error"
		}
		s.gw.metrics.RequestsTotal.WithLabelValues(env.Event, status).Inc()
	}

	s.send(outMessage{ID: env.ID, Data: ack})
}

func (s *session) handleGeneratePDF(ctx context.Context, data json.RawMessage) (any, bool) {
	var req generatePDFRequest
	if err := json.Unmarshal(data, &req); err != nil || len(req.DocBuffer) == 0 {
		return map[string]any{"error": "document payload is missing"}, false
	}
	pdf, err := s.gw.pdf.GeneratePDF(ctx, req.DocBuffer, req.FileName)
	if err != nil {
		return map[string]any{"error": err.Error()}, false
	}
	return map[string]any{"pdfData": pdf}, true
}

func (s *session) handleSaveTable(ctx context.Context, data json.RawMessage) (any, bool) {
	var req saveTableRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return map[string]any{"error": "invalid payload"}, false
	}
	if err := s.gw.gradebook.SaveTable(ctx, req.ClassName, req.SheetName, req.Data); err != nil {
		return map[string]any{"error": err.Error()}, false
	}
	return map[string]any{"success": true}, true
}

func (s *session) handleLoadLatestCopy(ctx context.Context, data json.RawMessage) (any, bool) {
	var req classRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return map[string]any{"success": false, "error": "invalid payload"}, false
	}
	tables, err := s.gw.gradebook.LoadLatestCopy(ctx, req.ClassName)
	if err != nil {
		return map[string]any{"success": false, "error": err.Error()}, false
	}
	return map[string]any{"success": true, "tables": tables}, true
}

func (s *session) handleLoadAllSelections(ctx context.Context, data json.RawMessage) (any, bool) {
	var req classRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return map[string]any{"success": false, "error": "invalid payload"}, false
	}
	all, err := s.gw.gradebook.LoadAllSelections(ctx, req.ClassName)
	if err != nil {
		return map[string]any{"success": false, "error": err.Error()}, false
	}
	return map[string]any{"success": true, "allSelections": all}, true
}

func (s *session) handleDeleteSubjectData(ctx context.Context, data json.RawMessage) (any, bool) {
	var req deleteSubjectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return map[string]any{"error": "invalid payload"}, false
	}
	if err := s.gw.gradebook.DeleteSubjectData(ctx, req.ClassName, req.SheetName); err != nil {
		return map[string]any{"error": err.Error()}, false
	}
	return map[string]any{"success": true}, true
}

func (s *session) send(msg outMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		s.logger.Debug("failed to write to session", "error", err)
	}
}
