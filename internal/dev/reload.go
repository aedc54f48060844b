package dev

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// MessageType is the type of a notification sent to browsers.
type MessageType string

const (
	MessageBuildSuccess MessageType = "build-success"
	MessageBuildError   MessageType = "build-error"
)

// Message is sent to browsers via WebSocket.
type Message struct {
	Type MessageType `json:"type"`

	// Hash identifies the compilation now being served.
	Hash string `json:"hash,omitempty"`

	// Errors lists every error of a failed build.
	Errors []string `json:"errors,omitempty"`
}

// client is one browser connection. gorilla/websocket allows a single
// concurrent writer per connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ReloadServer manages WebSocket connections for live reload.
type ReloadServer struct {
	clients  map[*client]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader

	// hello returns the message sent to a client as soon as it connects.
	hello func() *Message
}

// NewReloadServer creates a new reload server. hello may be nil.
func NewReloadServer(hello func() *Message) *ReloadServer {
	return &ReloadServer{
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in dev
			},
		},
		hello: hello,
	}
}

// HandleWebSocket handles WebSocket upgrade and connection.
func (r *ReloadServer) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}

	r.mu.Lock()
	r.clients[c] = true
	r.mu.Unlock()

	if r.hello != nil {
		if msg := r.hello(); msg != nil {
			if data, err := json.Marshal(msg); err == nil {
				c.send(data)
			}
		}
	}

	// Keep connection alive until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
	conn.Close()
}

// NotifySuccess tells every client that a new compilation is served.
func (r *ReloadServer) NotifySuccess(hash string) {
	r.broadcast(Message{Type: MessageBuildSuccess, Hash: hash})
}

// NotifyErrors sends the errors of a failed build to every client.
func (r *ReloadServer) NotifyErrors(errs []string) {
	r.broadcast(Message{Type: MessageBuildError, Errors: errs})
}

// broadcast sends a message to all connected clients.
func (r *ReloadServer) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	r.mu.RLock()
	clients := make([]*client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(data); err != nil {
			r.mu.Lock()
			delete(r.clients, c)
			r.mu.Unlock()
			c.conn.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (r *ReloadServer) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Close closes all client connections.
func (r *ReloadServer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.clients {
		c.conn.Close()
		delete(r.clients, c)
	}
}

// ClientScript returns the live reload script injected into HTML pages.
// hash is the compilation the page was served from.
func ClientScript(hash string, overlay bool) string {
	return strings.NewReplacer(
		"__VPACK_HASH__", strconv.Quote(hash),
		"__VPACK_OVERLAY__", strconv.FormatBool(overlay),
		"__VPACK_WS__", strconv.Quote(WebSocketPath),
	).Replace(devClientScript)
}

const devClientScript = `
<script>
(function() {
    'use strict';

    var hash = __VPACK_HASH__;
    var overlayEnabled = __VPACK_OVERLAY__;
    var reconnectDelay = 1000;
    var maxReconnectDelay = 30000;

    function connect() {
        var protocol = location.protocol === 'https:' ? 'wss:' : 'ws:';
        var ws = new WebSocket(protocol + '//' + location.host + __VPACK_WS__);

        ws.onopen = function() {
            console.log('[vpack] Live reload connected');
            reconnectDelay = 1000;
        };

        ws.onmessage = function(e) {
            var msg;
            try {
                msg = JSON.parse(e.data);
            } catch (err) {
                return;
            }

            switch (msg.type) {
                case 'build-success':
                    clearErrorOverlay();
                    if (msg.hash && msg.hash !== hash) {
                        console.log('[vpack] Reloading...');
                        location.reload();
                    }
                    break;

                case 'build-error':
                    var errors = msg.errors || [];
                    errors.forEach(function(err) {
                        console.error('[vpack] Build error:', err);
                    });
                    if (overlayEnabled) {
                        showErrorOverlay(errors);
                    }
                    break;
            }
        };

        ws.onclose = function() {
            console.log('[vpack] Connection lost, reconnecting in', reconnectDelay + 'ms');
            setTimeout(function() {
                reconnectDelay = Math.min(reconnectDelay * 2, maxReconnectDelay);
                connect();
            }, reconnectDelay);
        };

        ws.onerror = function() {
            ws.close();
        };
    }

    function showErrorOverlay(errors) {
        clearErrorOverlay();

        var overlay = document.createElement('div');
        overlay.id = 'vpack-error-overlay';
        overlay.style.cssText = 'position:fixed;top:0;left:0;right:0;bottom:0;background:rgba(0,0,0,0.9);color:#fff;font-family:monospace;font-size:14px;padding:20px;overflow:auto;z-index:999999;';

        var content = document.createElement('div');
        content.style.cssText = 'max-width:800px;margin:0 auto;';

        var title = document.createElement('h2');
        title.style.cssText = 'color:#ff5555;margin:0 0 20px;';
        title.textContent = errors.length === 1 ? 'Build Error' : errors.length + ' Build Errors';
        content.appendChild(title);

        errors.forEach(function(err) {
            var pre = document.createElement('pre');
            pre.style.cssText = 'white-space:pre-wrap;word-wrap:break-word;background:#1a1a1a;padding:20px;border-radius:8px;border:1px solid #333;';
            pre.textContent = err;
            content.appendChild(pre);
        });

        var hint = document.createElement('p');
        hint.style.cssText = 'margin-top:20px;color:#888;';
        hint.textContent = 'Fix the error and save to reload.';
        content.appendChild(hint);

        overlay.appendChild(content);
        document.body.appendChild(overlay);
    }

    function clearErrorOverlay() {
        var overlay = document.getElementById('vpack-error-overlay');
        if (overlay) {
            overlay.remove();
        }
    }

    if (document.readyState === 'loading') {
        document.addEventListener('DOMContentLoaded', connect);
    } else {
        connect();
    }
})();
</script>
`
