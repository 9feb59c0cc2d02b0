// wurtcd — a minimal WebRTC data-channel echo server.
//
// It signals over a single WebSocket connection (send an SDP offer as a
// text message, receive the SDP answer back the same way) and then
// drives the data-channel association over plain UDP. Every inbound
// text or binary message is logged and echoed back to the peer that
// sent it.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pterm/pterm"

	"github.com/suzu-dev/wurtc"
	"github.com/suzu-dev/wurtc/internal/hostconfig"
	"github.com/suzu-dev/wurtc/internal/logx"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	host := flag.String("host", "127.0.0.1", "public IPv4 address advertised in SDP answers")
	udpPort := flag.Int("udpPort", 5000, "UDP port the data channel traffic arrives on")
	wsPort := flag.Int("wsPort", 8080, "WebSocket signaling port")
	maxClients := flag.Int("maxClients", 256, "maximum number of simultaneous peers")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		logx.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("wurtcd — v%s", version))
	pterm.Println()

	h, err := wurtc.NewHost(hostconfig.Config{
		Host:       *host,
		Port:       uint16(*udpPort),
		MaxClients: *maxClients,
	})
	if err != nil {
		logx.Error("failed to start: %v", err)
		os.Exit(1)
	}
	h.SetErrorFunc(func(description string) { logx.Error("%s", description) })

	udpConn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: *udpPort})
	if err != nil {
		logx.Error("failed to bind UDP %d: %v", *udpPort, err)
		os.Exit(1)
	}
	defer udpConn.Close()

	h.SetUDPWriteFunc(func(data []byte, peer *wurtc.Peer) {
		addr := peer.Address()
		if _, err := udpConn.WriteToUDPAddrPort(data, addr); err != nil {
			logx.Debug("udp write to %s failed: %v", addr, err)
		}
	})

	sdpRequests := make(chan sdpRequest)
	go runDispatchLoop(ctx, udpConn, h, sdpRequests)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(sdpRequests))

	server := &http.Server{Addr: fmt.Sprintf(":%d", *wsPort), Handler: mux}
	go func() {
		<-ctx.Done()
		server.Close()
	}()

	logx.Info("signaling on ws://0.0.0.0:%d/ws, data channel on udp %s:%d", *wsPort, *host, *udpPort)
	if err := server.ListenAndServe(); err != nil && ctx.Err() == nil {
		logx.Error("websocket server: %v", err)
		os.Exit(1)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// sdpRequest carries an offer from a WebSocket handler goroutine to
// the single dispatch goroutine that owns the Host, and the channel
// the answer comes back on — ExchangeSDP is one of the entry points
// that must only ever run on that one goroutine, the same as HandleUDP
// and Update.
type sdpRequest struct {
	offer []byte
	resp  chan sdpResult
}

type sdpResult struct {
	answer []byte
	peer   *wurtc.Peer
	status wurtc.Status
	err    error
}

// wsHandler accepts exactly one SDP offer per WebSocket connection and
// replies with the answer, then closes the connection — signaling is
// strictly offer/answer, with no renegotiation.
func wsHandler(sdpRequests chan<- sdpRequest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, offer, err := conn.ReadMessage()
		if err != nil {
			return
		}

		req := sdpRequest{offer: offer, resp: make(chan sdpResult, 1)}
		sdpRequests <- req
		result := <-req.resp

		if result.err != nil {
			logx.Warn("sdp exchange failed: %v", result.err)
			conn.WriteMessage(websocket.TextMessage, []byte(result.status.String()))
			return
		}
		if result.status != wurtc.StatusSuccess {
			conn.WriteMessage(websocket.TextMessage, []byte(result.status.String()))
			return
		}

		logx.Peer(result.peer.ID).Info("offered, sending answer")
		_ = conn.WriteMessage(websocket.TextMessage, result.answer)
	}
}

// runDispatchLoop is the single goroutine that ever touches Host/Peer
// state: it reads UDP datagrams, services pending SDP exchanges, and
// ticks Update, calling HandleUDP/ExchangeSDP/Update only from here so
// none of them ever race with each other.
func runDispatchLoop(ctx context.Context, conn *net.UDPConn, h *wurtc.Host, sdpRequests <-chan sdpRequest) {
	buf := make([]byte, 8192)
	for {
		if ctx.Err() != nil {
			return
		}

		select {
		case req := <-sdpRequests:
			answer, peer, status, err := h.ExchangeSDP(req.offer)
			req.resp <- sdpResult{answer: answer, peer: peer, status: status, err: err}
		default:
		}

		conn.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
		n, remote, err := conn.ReadFromUDPAddrPort(buf)
		if err == nil {
			datagram := make([]byte, n)
			copy(datagram, buf[:n])
			h.HandleUDP(remote, datagram)
		}

		for {
			evt, ok := h.Update()
			if !ok {
				break
			}
			handleEvent(h, evt)
		}
	}
}

func handleEvent(h *wurtc.Host, evt wurtc.Event) {
	switch evt.Type {
	case wurtc.EventClientJoin:
		logx.Peer(evt.Peer.ID).Info("data channel open (%s)", evt.Peer.Address())

	case wurtc.EventClientLeave:
		logx.Peer(evt.Peer.ID).Info("left")
		h.RemoveClient(evt.Peer)

	case wurtc.EventTextData:
		logx.Peer(evt.Peer.ID).Debug("%q", evt.Data)
		if err := h.SendText(evt.Peer, evt.Data); err != nil {
			logx.Peer(evt.Peer.ID).Debug("echo failed: %v", err)
		}

	case wurtc.EventBinaryData:
		logx.Peer(evt.Peer.ID).Debug("%d binary bytes", len(evt.Data))
		if err := h.SendBinary(evt.Peer, evt.Data); err != nil {
			logx.Peer(evt.Peer.ID).Debug("echo failed: %v", err)
		}
	}
}
