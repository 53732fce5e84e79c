// Command search_client is the interactive terminal client for the
// search server.
//
// Usage:
//
//	search_client [host] [port]
//
// Commands inside the loop: recommend <query> [k], search <query> [topN],
// help, status, clear, quit.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/qianzhou/goso/internal/protocol"
	"github.com/qianzhou/goso/pkg/resilience"
)

const (
	defaultHost = "127.0.0.1"
	defaultPort = 8080

	defaultRecommendK = 10
	defaultSearchTopN = 5
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	good    = color.New(color.FgGreen)
	bad     = color.New(color.FgRed)
	dim     = color.New(color.Faint)
)

type session struct {
	conn        net.Conn
	buf         []byte
	addr        string
	connectedAt time.Time
	sent        int
	failed      int
}

func main() {
	host := defaultHost
	port := defaultPort
	if len(os.Args) >= 2 {
		host = os.Args[1]
	}
	if len(os.Args) >= 3 {
		p, err := strconv.Atoi(os.Args[2])
		if err != nil {
			bad.Fprintf(os.Stderr, "invalid port %q\n", os.Args[2])
			os.Exit(1)
		}
		port = p
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var conn net.Conn
	err := resilience.Do(context.Background(), addr, resilience.Backoff{Attempts: 5}, func(context.Context) error {
		var dialErr error
		conn, dialErr = net.DialTimeout("tcp", addr, 5*time.Second)
		return dialErr
	})
	if err != nil {
		bad.Fprintf(os.Stderr, "cannot connect to %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	s := &session{conn: conn, addr: addr, connectedAt: time.Now()}
	good.Printf("connected to %s\n", addr)
	printHelp()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("goso> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "quit", "exit":
			dim.Println("bye")
			return
		case "help":
			printHelp()
		case "clear":
			fmt.Print("\033[2J\033[H")
		case "status":
			s.printStatus()
		case "recommend":
			query, k, ok := parseQueryArgs(fields[1:], defaultRecommendK)
			if !ok {
				bad.Println("usage: recommend <query> [k]")
				continue
			}
			s.doRecommend(query, k)
		case "search":
			query, topN, ok := parseQueryArgs(fields[1:], defaultSearchTopN)
			if !ok {
				bad.Println("usage: search <query> [topN]")
				continue
			}
			s.doSearch(query, topN)
		default:
			bad.Printf("unknown command %q, try help\n", fields[0])
		}
	}
}

// parseQueryArgs joins the arguments into the query; a trailing integer
// becomes the count parameter.
func parseQueryArgs(args []string, defaultN int) (query string, n int, ok bool) {
	if len(args) == 0 {
		return "", 0, false
	}
	n = defaultN
	if len(args) > 1 {
		if parsed, err := strconv.Atoi(args[len(args)-1]); err == nil {
			n = parsed
			args = args[:len(args)-1]
		}
	}
	return strings.Join(args, " "), n, true
}

func (s *session) doRecommend(query string, k int) {
	frame, err := s.roundTrip(protocol.TypeRecommendRequest, protocol.RecommendRequest{
		Query:     query,
		K:         k,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		s.failed++
		bad.Printf("request failed: %v\n", err)
		return
	}
	if frame.Type == protocol.TypeError {
		s.failed++
		printError(frame.Payload)
		return
	}
	var resp protocol.RecommendResponse
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		s.failed++
		bad.Printf("malformed response: %v\n", err)
		return
	}
	heading.Printf("%d candidate(s) for %q\n", len(resp.Candidates), resp.Query)
	for i, c := range resp.Candidates {
		fmt.Printf("  %2d. %s", i+1, c.Word)
		dim.Printf("  (distance %d, frequency %d)\n", c.EditDistance, c.Frequency)
	}
}

func (s *session) doSearch(query string, topN int) {
	frame, err := s.roundTrip(protocol.TypeSearchRequest, protocol.SearchRequest{
		Query:     query,
		TopN:      topN,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		s.failed++
		bad.Printf("request failed: %v\n", err)
		return
	}
	if frame.Type == protocol.TypeError {
		s.failed++
		printError(frame.Payload)
		return
	}
	var resp protocol.SearchResponse
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		s.failed++
		bad.Printf("malformed response: %v\n", err)
		return
	}
	heading.Printf("%d result(s) for %q\n", resp.Total, resp.Query)
	for i, r := range resp.Results {
		fmt.Printf("  %d. ", i+1)
		good.Printf("%s", r.Title)
		dim.Printf("  [docid %d, score %.4f]\n", r.DocID, r.Score)
		dim.Printf("     %s\n", r.URL)
		fmt.Printf("     %s\n", r.Summary)
	}
}

// roundTrip sends one request frame and blocks until a complete response
// frame arrives. The client issues one request at a time, so responses
// arrive in order.
func (s *session) roundTrip(t protocol.MessageType, payload any) (protocol.Frame, error) {
	data, err := protocol.EncodeJSON(t, payload)
	if err != nil {
		return protocol.Frame{}, err
	}
	if _, err := s.conn.Write(data); err != nil {
		return protocol.Frame{}, fmt.Errorf("sending request: %w", err)
	}
	s.sent++

	readBuf := make([]byte, 4096)
	for {
		if frames, consumed := protocol.Decode(s.buf); len(frames) > 0 {
			s.buf = append(s.buf[:0:0], s.buf[consumed:]...)
			return frames[0], nil
		}
		s.conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		n, err := s.conn.Read(readBuf)
		if err != nil {
			return protocol.Frame{}, fmt.Errorf("reading response: %w", err)
		}
		s.buf = append(s.buf, readBuf[:n]...)
	}
}

func (s *session) printStatus() {
	heading.Println("connection status")
	fmt.Printf("  server:    %s\n", s.addr)
	fmt.Printf("  connected: %s ago\n", time.Since(s.connectedAt).Round(time.Second))
	fmt.Printf("  requests:  %d sent, %d failed\n", s.sent, s.failed)
}

func printError(payload []byte) {
	var resp protocol.ErrorResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		bad.Println("server returned an unreadable error frame")
		return
	}
	bad.Printf("server error %d: %s\n", resp.Code, resp.Error)
}

func printHelp() {
	heading.Println("commands")
	fmt.Println("  recommend <query> [k]     keyword recommendations (default k 10)")
	fmt.Println("  search <query> [topN]     full-text page search (default topN 5)")
	fmt.Println("  status                    show connection status")
	fmt.Println("  clear                     clear the screen")
	fmt.Println("  help                      show this help")
	fmt.Println("  quit                      exit")
}
