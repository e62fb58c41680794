package baostock

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
)

// request is one frame as seen by the fake server.
type request struct {
	msgType string
	fields  []string
}

// handlerFunc answers a request with a response type and body fields.
type handlerFunc func(req request) (msgType string, fields []string)

// fakeServer is an in-process Baostock endpoint.
type fakeServer struct {
	ln      net.Listener
	handler handlerFunc

	mu       sync.Mutex
	requests []request
	conns    int
}

func newFakeServer(t *testing.T, h handlerFunc) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fs := &fakeServer{ln: ln, handler: h}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			fs.mu.Lock()
			fs.conns++
			fs.mu.Unlock()
			go fs.serve(conn)
		}
	}()
	return fs
}

func (fs *fakeServer) addr() string { return fs.ln.Addr().String() }

func (fs *fakeServer) serve(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		req := parseRequest(line)

		fs.mu.Lock()
		fs.requests = append(fs.requests, req)
		fs.mu.Unlock()

		msgType, fields := fs.handler(req)
		if _, err := conn.Write(encodeResponse(msgType, fields)); err != nil {
			return
		}
	}
}

func (fs *fakeServer) received() []request {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]request(nil), fs.requests...)
}

func (fs *fakeServer) connections() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.conns
}

func parseRequest(line string) request {
	line = strings.TrimSuffix(line, frameTerminator)
	header := strings.Split(line[:headerLength], fieldSep)
	body := line[headerLength:]
	if i := strings.LastIndex(body, fieldSep); i >= 0 {
		body = body[:i] // drop CRC
	}
	return request{msgType: header[1], fields: strings.Split(body, fieldSep)}
}

func encodeResponse(msgType string, fields []string) []byte {
	body := []byte(strings.Join(fields, fieldSep))
	if compressedTypes[msgType] {
		var zb bytes.Buffer
		zw := zlib.NewWriter(&zb)
		_, _ = zw.Write(body)
		_ = zw.Close()
		body = zb.Bytes()
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s%s%s%s%0*d", clientVersion, fieldSep, msgType, fieldSep, bodyLengthDigits, len(body))
	b.Write(body)
	b.WriteString(responseTerminator)
	return b.Bytes()
}

// defaultHandler accepts login/logout and answers queries with pages.
func defaultHandler(pages map[string][][]string, fields string) handlerFunc {
	return func(req request) (string, []string) {
		switch req.msgType {
		case msgLoginRequest:
			return msgLoginResponse, []string{"0", "success", "login", req.fields[1]}
		case msgLogoutRequest:
			return msgLogoutResponse, []string{"0", "success", "logout", req.fields[1]}
		case msgKDataPlusRequest:
			page := req.fields[2]
			return msgKDataPlusResponse, []string{
				"0", "success", "query_history_k_data_plus", req.fields[1],
				page, req.fields[3], recordsJSON(pages[page]),
				req.fields[4], fields, req.fields[6], req.fields[7], req.fields[8], req.fields[9],
			}
		}
		return "99", []string{"10000001", "unknown message"}
	}
}

func recordsJSON(rows [][]string) string {
	var b strings.Builder
	b.WriteString(`{"record":[`)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("[")
		for j, c := range r {
			if j > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "%q", c)
		}
		b.WriteString("]")
	}
	b.WriteString("]}")
	return b.String()
}
