package baostock

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"hash/crc32"
	"io"
	"strconv"
	"strings"
)

const (
	clientVersion = "00.9.10"

	fieldSep           = "\x01"
	headerLength       = 21
	bodyLengthDigits   = 10
	frameTerminator    = "\n"
	responseTerminator = "<![CDATA[]]>\n"

	msgLoginRequest      = "00"
	msgLoginResponse     = "01"
	msgLogoutRequest     = "02"
	msgLogoutResponse    = "03"
	msgKDataPlusRequest  = "95"
	msgKDataPlusResponse = "96"

	successCode = "0"
)

// compressedTypes lists response types whose body is zlib-compressed.
var compressedTypes = map[string]bool{
	msgKDataPlusResponse: true,
}

// encodeFrame builds a request frame: header, body, CRC32 of both, newline.
func encodeFrame(msgType string, fields ...string) []byte {
	body := strings.Join(fields, fieldSep)
	header := fmt.Sprintf("%s%s%s%s%0*d", clientVersion, fieldSep, msgType, fieldSep, bodyLengthDigits, len(body))
	headBody := header + body
	crc := crc32.ChecksumIEEE([]byte(headBody))

	var b bytes.Buffer
	b.WriteString(headBody)
	b.WriteString(fieldSep)
	b.WriteString(strconv.FormatUint(uint64(crc), 10))
	b.WriteString(frameTerminator)
	return b.Bytes()
}

// response is a decoded server message.
type response struct {
	msgType string
	fields  []string
}

func (r *response) field(i int) string {
	if i < len(r.fields) {
		return r.fields[i]
	}
	return ""
}

func (r *response) errorCode() string { return r.field(0) }
func (r *response) errorMsg() string  { return r.field(1) }

// decodeResponse parses one complete server message, including the trailing
// response terminator.
func decodeResponse(raw []byte) (*response, error) {
	raw = bytes.TrimSuffix(raw, []byte(responseTerminator))
	if len(raw) < headerLength {
		return nil, fmt.Errorf("baostock: short response (%d bytes)", len(raw))
	}

	header := strings.Split(string(raw[:headerLength]), fieldSep)
	if len(header) != 3 {
		return nil, fmt.Errorf("baostock: malformed header %q", raw[:headerLength])
	}
	msgType := header[1]
	bodyLen, err := strconv.Atoi(header[2])
	if err != nil {
		return nil, fmt.Errorf("baostock: malformed body length %q: %w", header[2], err)
	}

	body := raw[headerLength:]
	if compressedTypes[msgType] {
		if bodyLen > len(body) {
			return nil, fmt.Errorf("baostock: body length %d exceeds payload %d", bodyLen, len(body))
		}
		zr, err := zlib.NewReader(bytes.NewReader(body[:bodyLen]))
		if err != nil {
			return nil, fmt.Errorf("baostock: open compressed body: %w", err)
		}
		defer func() { _ = zr.Close() }()
		body, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("baostock: inflate body: %w", err)
		}
	} else if bodyLen <= len(body) {
		body = body[:bodyLen]
	}

	return &response{
		msgType: msgType,
		fields:  strings.Split(string(body), fieldSep),
	}, nil
}
