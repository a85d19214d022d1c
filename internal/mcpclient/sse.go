package mcpclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bc-dunia/mcpgo/mcp"
)

var (
	ErrStreamClosed = errors.New("mcpclient: stream closed")
	ErrStreamStall  = errors.New("mcpclient: stream stall timeout")
	ErrInvalidJSON  = errors.New("mcpclient: invalid JSON in SSE data")
)

// Event is one decoded Server-Sent Event frame.
type Event struct {
	ID    string
	Event string
	Data  string
	Retry int
}

type lineResult struct {
	line string
	err  error
}

// sseDecoder reads one http.Response.Body as a stream of SSE frames,
// grounded on internal/transport/sse_decoder.go's SSEDecoder. Unlike
// the teacher, it places no format constraint on event ids: the
// streamable HTTP transport's event ids are plain decimal u64 strings
// (internal/streamtransport/sse.go's writeSSEEvent), not the teacher's
// own "evt_<hex>" scheme, so any non-empty id is tracked as the
// resumption point.
type sseDecoder struct {
	reader       *bufio.Reader
	closer       io.Closer
	stallTimeout time.Duration

	lastEventMu sync.RWMutex
	lastEventID string

	mu     sync.Mutex
	closed bool

	lineCh   chan lineResult
	cancelFn context.CancelFunc
	wg       sync.WaitGroup
}

func newSSEDecoder(r io.ReadCloser, stallTimeout time.Duration) *sseDecoder {
	ctx, cancel := context.WithCancel(context.Background())
	d := &sseDecoder{
		reader:       bufio.NewReader(r),
		closer:       r,
		stallTimeout: stallTimeout,
		lineCh:       make(chan lineResult, 1),
		cancelFn:     cancel,
	}
	d.wg.Add(1)
	go d.readerLoop(ctx)
	return d
}

func (d *sseDecoder) readerLoop(ctx context.Context) {
	defer d.wg.Done()
	for {
		line, err := d.reader.ReadString('\n')
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		select {
		case <-ctx.Done():
			return
		case d.lineCh <- lineResult{line: line, err: err}:
			if err != nil {
				return
			}
		}
	}
}

func (d *sseDecoder) readLineWithTimeout() (string, error) {
	timer := time.NewTimer(d.stallTimeout)
	defer timer.Stop()
	select {
	case r, ok := <-d.lineCh:
		if !ok {
			return "", ErrStreamClosed
		}
		return r.line, r.err
	case <-timer.C:
		return "", ErrStreamStall
	}
}

// ReadEvent blocks for the next complete SSE frame.
func (d *sseDecoder) ReadEvent() (*Event, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrStreamClosed
	}
	d.mu.Unlock()

	event := &Event{}
	var dataLines []string

	finish := func() *Event {
		event.Data = strings.Join(dataLines, "\n")
		if event.ID != "" {
			d.lastEventMu.Lock()
			d.lastEventID = event.ID
			d.lastEventMu.Unlock()
		}
		return event
	}

	for {
		line, err := d.readLineWithTimeout()
		if err != nil {
			if err == io.EOF {
				if len(dataLines) > 0 || event.Event != "" || event.ID != "" {
					return finish(), nil
				}
				return nil, io.EOF
			}
			return nil, err
		}

		if line == "" {
			if len(dataLines) > 0 || event.Event != "" || event.ID != "" {
				return finish(), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			event.Event = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			if !strings.Contains(value, "\x00") {
				event.ID = value
			}
		case "retry":
			if retry, err := strconv.Atoi(value); err == nil {
				event.Retry = retry
			}
		}
	}
}

func (d *sseDecoder) LastEventID() string {
	d.lastEventMu.RLock()
	defer d.lastEventMu.RUnlock()
	return d.lastEventID
}

func (d *sseDecoder) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.cancelFn()
	err := d.closer.Close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
	}
	return err
}

// sseResponseHandler drains one POST's SSE-framed reply looking for the
// mcp.Response matching requestID, tolerating interleaved notifications
// (progress, log messages) which it discards — a Connection that wants
// those subscribes to the GET stream instead, per §4.4's split between
// request/reply framing and the durable notification stream.
type sseResponseHandler struct {
	stallTimeout time.Duration
}

func (h *sseResponseHandler) handleStream(ctx context.Context, body io.ReadCloser, requestID mcp.RequestID) (*mcp.Response, error) {
	decoder := newSSEDecoder(body, h.stallTimeout)
	defer decoder.Close()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		event, err := decoder.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return nil, MapProtocolError(fmt.Sprintf("stream ended without a response for request %s", requestID.String()))
			}
			if err == ErrStreamStall {
				return nil, NewStreamStallError(int(h.stallTimeout.Milliseconds()))
			}
			return nil, MapError(err)
		}

		if event.Data == "" {
			continue
		}

		var resp mcp.Response
		if err := json.Unmarshal([]byte(event.Data), &resp); err != nil {
			continue // a notification frame, not a response; keep waiting
		}
		if resp.ID.Value == nil && resp.Result == nil && resp.Error == nil {
			continue
		}
		if !resp.ID.Equal(requestID) {
			continue
		}
		return &resp, nil
	}
}
