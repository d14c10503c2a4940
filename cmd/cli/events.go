package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

func (a *app) events(ctx context.Context, sub string, args []string) error {
	switch sub {
	case "listen":
		fs := flag.NewFlagSet("events listen", flag.ExitOnError)
		addr := fs.String("addr", "127.0.0.1:7070", "TCP event stream address")
		pretty := fs.Bool("pretty", true, "pretty print run events")
		retry := fs.Duration("retry", time.Second, "reconnect delay")
		_ = fs.Parse(args)

		for {
			err := a.streamTCP(ctx, *addr, *pretty)
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[events] disconnected: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(*retry):
			}
		}
	case "subscribe":
		fs := flag.NewFlagSet("events subscribe", flag.ExitOnError)
		wsURL := fs.String("ws", "", "WebSocket URL (defaults to /ws on the API host)")
		pretty := fs.Bool("pretty", true, "pretty print run events")
		_ = fs.Parse(args)

		endpoint := *wsURL
		if endpoint == "" {
			var err error
			if endpoint, err = websocketURL(a.baseURL, "/ws"); err != nil {
				return fmt.Errorf("ws url: %w", err)
			}
		}
		err := a.streamWS(ctx, endpoint, *pretty)
		if ctx.Err() != nil {
			return nil
		}
		return err
	default:
		return usage("dealctl events <listen|subscribe>")
	}
}

func (a *app) streamTCP(ctx context.Context, addr string, pretty bool) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	log.Printf("[events] connected to %s", addr)
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		printEvent(a.out, sc.Bytes(), pretty)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (a *app) streamWS(ctx context.Context, endpoint string, pretty bool) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	log.Printf("[events] connected to %s", endpoint)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		printEvent(a.out, msg, pretty)
	}
}

// printEvent writes one run event. Lines that are not JSON, such as the TCP
// welcome banner, pass through untouched.
func printEvent(w io.Writer, msg []byte, pretty bool) {
	msg = bytes.TrimRight(msg, "\r\n")
	var obj map[string]any
	if !pretty || json.Unmarshal(msg, &obj) != nil {
		fmt.Fprintln(w, string(msg))
		return
	}
	b, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Fprintln(w, string(b))
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{Scheme: scheme, Host: u.Host, Path: path}).String(), nil
}
