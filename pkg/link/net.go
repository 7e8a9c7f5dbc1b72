package link

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// DialTimeout bounds connection setup of network links.
const DialTimeout = 5 * time.Second

// DialTCP connects to a raw TCP serial server (e.g. ser2net).
func DialTCP(addr string) (*Stream, error) {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("connected tcp %s", addr)
	return NewStream(conn), nil
}

// DialWebsocket connects to a websocket serial server. Link bytes are
// carried in binary frames.
func DialWebsocket(rawURL string) (*Stream, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	origin := "http://" + u.Host
	if u.Scheme == "wss" {
		origin = "https://" + u.Host
	}
	conf, err := websocket.NewConfig(rawURL, origin)
	if err != nil {
		return nil, err
	}
	conf.Dialer = &net.Dialer{Timeout: DialTimeout}
	conn, err := websocket.DialConfig(conf)
	if err != nil {
		return nil, fmt.Errorf("websocket %s: %w", rawURL, err)
	}
	conn.PayloadType = websocket.BinaryFrame
	glog.V(1).Infof("connected websocket %s", rawURL)
	return NewStream(conn), nil
}

// WebsocketStream wraps a server side websocket connection.
func WebsocketStream(conn *websocket.Conn) *Stream {
	conn.PayloadType = websocket.BinaryFrame
	return NewStream(conn)
}
