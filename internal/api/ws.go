package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"advchart/internal/draw"
	"advchart/internal/logger"
	"advchart/internal/session"
	"advchart/internal/viewport"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = 30 * time.Second
	maxMessage    = 4096
	sendBuffer    = 16
	frameInterval = 33 * time.Millisecond // ~30 fps cap
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// outMsg is one queued websocket write.
type outMsg struct {
	kind int // websocket.TextMessage or BinaryMessage
	data []byte
}

// client is one websocket chart session. readPump decodes gestures, run owns
// the viewer and paints, writePump owns the connection writes.
type client struct {
	conn  *websocket.Conn
	chart *session.Chart
	obs   Observer
	log   *slog.Logger

	in   chan clientMsg
	send chan outMsg

	viewer  *session.Viewer
	lastLen int
}

// ServeWS upgrades to a websocket chart session. Query parameters width,
// height and theme set the initial viewer.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", slog.Any("error", err))
		return
	}
	conn.EnableWriteCompression(true)

	ctx := logger.WithTraceID(context.Background(), logger.NewTraceID("ws"))
	q := r.URL.Query()
	total := h.chart.Len()
	c := &client{
		conn:    conn,
		chart:   h.chart,
		obs:     h.obs,
		log:     h.log.With(logger.LogWithTrace(ctx)...),
		in:      make(chan clientMsg, 64),
		send:    make(chan outMsg, sendBuffer),
		viewer:  session.NewViewer(total, queryFloat(q.Get("width"), 0), queryFloat(q.Get("height"), 0), draw.ParseTheme(q.Get("theme"))),
		lastLen: total,
	}

	h.obs.SessionOpened()
	c.log.Info("ws session opened", slog.String("remote", r.RemoteAddr))

	ctx, cancel := context.WithCancel(ctx)
	go c.writePump()
	go func() {
		c.run(ctx)
		close(c.send)
	}()
	go func() {
		c.readPump()
		cancel()
		h.obs.SessionClosed()
		c.log.Info("ws session closed")
	}()
}

func (c *client) readPump() {
	defer func() {
		close(c.in)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("ws read failed", slog.Any("error", err))
			}
			return
		}
		var msg clientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			c.queueJSON(errorMsg{Type: "error", Message: "invalid message: " + err.Error()})
			continue
		}
		c.in <- msg
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
				return
			}
			if msg.kind == websocket.BinaryMessage {
				c.obs.FrameSent()
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// run applies gestures and repaints at most once per frameInterval.
func (c *client) run(ctx context.Context) {
	changes, unsubscribe := c.chart.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	dirty, listDirty := true, true
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.in:
			if !ok {
				return
			}
			repaint, err := c.handle(msg)
			if err != nil {
				c.queueJSON(errorMsg{Type: "error", Message: err.Error()})
			}
			dirty = dirty || repaint
		case <-changes:
			total := c.chart.Len()
			c.viewer.Follow(c.lastLen, total)
			c.lastLen = total
			dirty, listDirty = true, true
		case <-ticker.C:
			if listDirty {
				c.queueJSON(indicatorsMsg{Type: "indicators", Indicators: toIndicatorList(c.chart.Indicators())})
				listDirty = false
			}
			if dirty {
				dirty = !c.paint()
			}
		}
	}
}

// handle applies one client message and reports whether a repaint is needed.
func (c *client) handle(msg clientMsg) (bool, error) {
	total := c.chart.Len()
	v := c.viewer
	switch msg.Type {
	case "viewport":
		v.Resize(msg.Width, msg.Height)
		if msg.End > msg.Start {
			v.SetRange(viewport.Range{Start: msg.Start, End: msg.End}, total)
		}
	case "drag_start":
		v.DragStart(msg.X)
	case "drag_move":
		v.DragMove(msg.X, total)
	case "drag_end":
		v.DragEnd()
	case "zoom":
		v.Zoom(msg.Factor, msg.X, total)
	case "theme":
		v.Theme = draw.ParseTheme(msg.Theme)
	case "click":
		hit, ok, err := c.chart.Click(v, msg.X, msg.Y)
		if ok {
			c.queueJSON(hitMsg{Type: "hit", Hit: hit})
		}
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			return false, err
		}
		return ok, nil
	default:
		return false, errors.New("unknown message type " + msg.Type)
	}
	return true, nil
}

// paint renders and queues one frame. It reports false when the frame was
// dropped because the client is not keeping up.
func (c *client) paint() (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			c.log.Error("frame render panicked", slog.Any("panic", rec))
			ok = true
		}
	}()
	png, _, err := c.chart.RenderPNG(c.viewer)
	if err != nil {
		c.log.Error("frame render failed", slog.Any("error", err))
		return true
	}
	select {
	case c.send <- outMsg{kind: websocket.BinaryMessage, data: png}:
		return true
	default:
		c.log.Debug("frame dropped")
		return false
	}
}

func (c *client) queueJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- outMsg{kind: websocket.TextMessage, data: data}:
	default:
	}
}
