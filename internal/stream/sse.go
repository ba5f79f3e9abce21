package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	pderrors "github.com/pilotdeck/pilotdeck/internal/errors"
	"github.com/pilotdeck/pilotdeck/pkg/version"
)

// MaxEventSize bounds a single SSE event (all data lines together).
const MaxEventSize = 1 << 20

// maxLineSize bounds one line: a full-size data value plus its field name.
const maxLineSize = MaxEventSize + 64

// ErrEventTooLarge is returned when an event or a single line exceeds the
// size limits.
var ErrEventTooLarge = errors.New("sse event exceeds maximum size")

// Event is one dispatched Server-Sent Event.
type Event struct {
	Type  string
	ID    string
	Data  []byte
	Retry time.Duration
}

// EventStream yields events from one open connection.
type EventStream interface {
	// Next blocks until the next event. It returns io.EOF when the server
	// closes the stream.
	Next() (Event, error)
	Close() error
}

// Transport opens event streams.
type Transport interface {
	Open(ctx context.Context, url string) (EventStream, error)
}

// StatusError reports a non-200 response to the stream request.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.StatusCode)
}

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReader(r)}
}

// ReadEvent reads the next event that carries data. Events without data
// lines (keep-alives, bare comments) are skipped. Returns io.EOF when the
// stream ends.
func (s *SSEReader) ReadEvent() (Event, error) {
	var ev Event
	var data bytes.Buffer
	hasData := false

	for {
		line, err := s.readLine()
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			if errors.Is(err, io.EOF) && hasData {
				ev.Data = data.Bytes()
				return ev, nil
			}
			return Event{}, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line dispatches the event.
		if len(line) == 0 {
			if hasData {
				ev.Data = data.Bytes()
				return ev, nil
			}
			ev = Event{}
			continue
		}

		// Comment line.
		if line[0] == ':' {
			continue
		}

		field, value := line, []byte(nil)
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			value = bytes.TrimPrefix(value, []byte(" "))
		}

		switch string(field) {
		case "event":
			ev.Type = string(value)
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			if data.Len()+len(value) > MaxEventSize {
				return Event{}, ErrEventTooLarge
			}
			data.Write(value)
			hasData = true
		case "id":
			ev.ID = string(value)
		case "retry":
			if ms, err := strconv.Atoi(string(value)); err == nil && ms >= 0 {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
}

// readLine reads up to and including the next newline, failing once the
// line outgrows maxLineSize instead of buffering it whole.
func (s *SSEReader) readLine() ([]byte, error) {
	var line []byte
	for {
		frag, err := s.reader.ReadSlice('\n')
		if len(line)+len(frag) > maxLineSize {
			return nil, ErrEventTooLarge
		}
		line = append(line, frag...)
		if !errors.Is(err, bufio.ErrBufferFull) {
			return line, err
		}
	}
}

// SSETransport opens text/event-stream connections over HTTP.
type SSETransport struct {
	client *http.Client
	logger zerolog.Logger
}

// NewSSETransport creates a transport. A nil client gets a default one
// without an overall timeout, since the response body stays open for the
// lifetime of the stream.
func NewSSETransport(client *http.Client, logger zerolog.Logger) *SSETransport {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		}
	}
	return &SSETransport{
		client: client,
		logger: logger.With().Str("component", "sse").Logger(),
	}
}

// Open issues the GET request and returns once the response headers have
// been accepted. The stream lives as long as ctx.
func (t *SSETransport) Open(ctx context.Context, url string) (EventStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		pderrors.DrainAndClose(t.logger, resp.Body, "Failed to close rejected stream response")
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/event-stream" {
		pderrors.DrainAndClose(t.logger, resp.Body, "Failed to close non-SSE response")
		return nil, fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	return &sseStream{body: resp.Body, reader: NewSSEReader(resp.Body)}, nil
}

type sseStream struct {
	body   io.ReadCloser
	reader *SSEReader
}

func (s *sseStream) Next() (Event, error) {
	return s.reader.ReadEvent()
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
