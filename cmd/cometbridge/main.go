package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/cometload/pkg/config"
	"github.com/robotalks/cometload/pkg/framework"
	"github.com/robotalks/cometload/pkg/link"
	"github.com/robotalks/cometload/pkg/link/mqtt"
	"github.com/robotalks/cometload/pkg/loader"
)

var (
	mqttURL    string
	wsAddr     string
	tcpAddr    string
	wsPath     = "/"
	sessionMux sync.Mutex
)

func init() {
	config.SetupFlags()
	flag.StringVar(&mqttURL, "mqtt", "", "Bridge the serial port to an MQTT broker, e.g. mqtt://broker:1883/comet.")
	flag.StringVar(&wsAddr, "ws", "", "Serve the serial port over websocket on this address, e.g. :8068.")
	flag.StringVar(&wsPath, "ws-path", wsPath, "Websocket URL path.")
	flag.StringVar(&tcpAddr, "tcp", "", "Serve the serial port over raw TCP on this address.")
}

// bridge pumps bytes both ways until either side fails or ctx is canceled.
func bridge(ctx context.Context, serial, remote loader.Port, conf *config.Config) error {
	up := &link.Pump{Label: "up", Src: serial, Dst: remote, Poll: conf.RelayPoll}
	down := &link.Pump{Label: "down", Src: remote, Dst: serial, Poll: conf.RelayPoll}
	return framework.NewRunnerWith(ctx).Go(up, down).Wait()
}

// session serves one remote client at a time.
func session(ctx context.Context, serial, remote loader.Port, conf *config.Config) {
	sessionMux.Lock()
	defer sessionMux.Unlock()
	defer remote.Close()
	err := bridge(ctx, serial, remote, conf)
	glog.Infof("session ended: %v", err)
}

func serveTCP(ctx context.Context, serial loader.Port, conf *config.Config) error {
	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		return err
	}
	glog.Infof("serving tcp on %s", ln.Addr())
	return framework.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			glog.Infof("tcp session from %s", conn.RemoteAddr())
			go session(ctx, serial, link.NewStream(conn), conf)
		}
	})
}

func serveWebsocket(ctx context.Context, serial loader.Port, conf *config.Config) error {
	mux := http.NewServeMux()
	mux.Handle(wsPath, websocket.Handler(func(conn *websocket.Conn) {
		glog.Infof("websocket session from %s", conn.Request().RemoteAddr)
		session(ctx, serial, link.WebsocketStream(conn), conf)
	}))
	server := &http.Server{Addr: wsAddr, Handler: mux}
	glog.Infof("serving websocket on %s%s", wsAddr, wsPath)
	return framework.RunWithContextCloser(ctx, server, server.ListenAndServe)
}

func run() error {
	conf, err := config.Load()
	if err != nil {
		return err
	}
	if mqttURL == "" && wsAddr == "" && tcpAddr == "" {
		return fmt.Errorf("at least one of -mqtt, -ws or -tcp is required")
	}
	if mqttURL != "" && (wsAddr != "" || tcpAddr != "") {
		return fmt.Errorf("-mqtt can't be combined with -ws or -tcp")
	}
	serial, err := link.Open(conf.Port, link.Options{Baud: conf.Baud, Timeout: conf.ByteTimeout})
	if err != nil {
		return err
	}
	defer serial.Close()

	runner := framework.NewRunner().HandleSignals()
	if mqttURL != "" {
		remote, err := mqtt.Dial(mqttURL, mqtt.Target)
		if err != nil {
			return err
		}
		defer remote.Close()
		runner.Go(framework.NamedRun("mqtt", framework.RunFunc(func(ctx context.Context) error {
			return bridge(ctx, serial, remote, conf)
		})))
	}
	if tcpAddr != "" {
		runner.Go(framework.NamedRun("tcp", framework.RunFunc(func(ctx context.Context) error {
			return serveTCP(ctx, serial, conf)
		})))
	}
	if wsAddr != "" {
		runner.Go(framework.NamedRun("websocket", framework.RunFunc(func(ctx context.Context) error {
			return serveWebsocket(ctx, serial, conf)
		})))
	}
	return runner.Wait()
}

func main() {
	flag.Parse()
	err := run()
	glog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
