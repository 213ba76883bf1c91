package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/alexismendozaa/chat/internal/auth"
	"github.com/alexismendozaa/chat/internal/core"
	"github.com/alexismendozaa/chat/internal/metrics"
	"github.com/alexismendozaa/chat/internal/proto"
)

// errClientClosed means the gateway closed the client, either because its
// queue overflowed or because the server is shutting down.
var errClientClosed = errors.New("client closed by gateway")

// WSHandler authenticates the handshake, upgrades the connection and
// bridges it to a core.Client.
type WSHandler struct {
	baseCtx        context.Context
	gateway        *core.Gateway
	validator      auth.Validator
	originPatterns []string
	readLimit      int64
	log            *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. Connections are closed when
// baseCtx is cancelled.
func NewWSHandler(baseCtx context.Context, gateway *core.Gateway, validator auth.Validator, originPatterns []string, readLimit int64, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		baseCtx:        baseCtx,
		gateway:        gateway,
		validator:      validator,
		originPatterns: originPatterns,
		readLimit:      readLimit,
		log:            logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	// Authentication happens before the upgrade so a rejected client never
	// gets a connection, let alone a subscription.
	identity, err := auth.Authenticate(h.validator, r)
	if err != nil {
		reason := auth.Reason(err)
		metrics.HandshakeRejectedTotal.WithLabelValues(reason).Inc()
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("ws handshake rejected")
		writeJSON(w, stdhttp.StatusUnauthorized, ErrorResponse{Error: reason})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.baseCtx, cancel)
	defer stop()

	client := h.gateway.Connect(ctx, identity)
	defer h.gateway.Disconnect(client)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch {
	case h.baseCtx.Err() != nil:
		status, reason = websocket.StatusGoingAway, "server shutting down"
	case errors.Is(err, errClientClosed):
		status, reason = websocket.StatusPolicyViolation, "event queue overflow"
	case err != nil && !errors.Is(err, context.Canceled):
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			if err := h.writeError(ctx, conn, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "text frames only"}); err != nil {
				return err
			}
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("malformed inbound frame")
			if err := h.writeError(ctx, conn, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed frame"}); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			if err := h.writeError(ctx, conn, protoErr); err != nil {
				return err
			}
			continue
		}
		if !client.Submit(cmd) {
			return errClientClosed
		}
	}
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, protoErr *proto.Error) error {
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: protoErr,
	})
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events():
			if !ok {
				return errClientClosed
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeJSON(w stdhttp.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
