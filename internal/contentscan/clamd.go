package contentscan

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

const clamdChunkSize = 2048

// ClamdScanner talks the clamd INSTREAM protocol over TCP. No client library
// for clamd exists in our dependency set; the wire format is a null-terminated
// command followed by length-prefixed chunks.
type ClamdScanner struct {
	addr string
}

func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{addr: addr}
}

func (c *ClamdScanner) Scan(ctx context.Context, content []byte) (Verdict, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return Verdict{}, fmt.Errorf("dial clamd: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return Verdict{}, err
		}
	}

	if _, err := conn.Write([]byte("zINSTREAM\x00")); err != nil {
		return Verdict{}, fmt.Errorf("write command: %w", err)
	}

	chunkHeader := make([]byte, 4)
	for len(content) > 0 {
		chunk := content
		if len(chunk) > clamdChunkSize {
			chunk = chunk[:clamdChunkSize]
		}
		binary.BigEndian.PutUint32(chunkHeader, uint32(len(chunk)))
		if _, err := conn.Write(chunkHeader); err != nil {
			return Verdict{}, fmt.Errorf("write chunk: %w", err)
		}
		if _, err := conn.Write(chunk); err != nil {
			return Verdict{}, fmt.Errorf("write chunk: %w", err)
		}
		content = content[len(chunk):]
	}
	// Zero-length chunk terminates the stream.
	binary.BigEndian.PutUint32(chunkHeader, 0)
	if _, err := conn.Write(chunkHeader); err != nil {
		return Verdict{}, fmt.Errorf("terminate stream: %w", err)
	}

	reply, err := bufio.NewReader(conn).ReadString('\x00')
	if err != nil {
		return Verdict{}, fmt.Errorf("read reply: %w", err)
	}
	return parseClamdReply(strings.TrimRight(reply, "\x00"))
}

func parseClamdReply(reply string) (Verdict, error) {
	reply = strings.TrimSpace(reply)
	switch {
	case strings.HasSuffix(reply, "OK"):
		return Verdict{}, nil
	case strings.HasSuffix(reply, "FOUND"):
		signature := strings.TrimSuffix(strings.TrimPrefix(reply, "stream:"), "FOUND")
		return Verdict{Threats: []string{strings.TrimSpace(signature)}}, nil
	default:
		return Verdict{}, fmt.Errorf("unexpected clamd reply %q", reply)
	}
}
