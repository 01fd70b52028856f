// Package stdio bridges a protocol client to line-delimited JSON on standard
// input and output, for scripting and interactive use.
//
// Each input line is a command:
//
//	{"id": "optional caller tag", "method": "Page.navigate", "params": {"url": "https://example.com"}}
//
// and produces exactly one output line, in completion order:
//
//	{"seq": 1, "id": "optional caller tag", "method": "Page.navigate", "result": {...}}
//	{"seq": 2, "method": "Bogus.call", "error": {"kind": "remote", "code": -32601, "message": "..."}}
//
// seq is the 1-based input line number. Watched events are written as
//
//	{"event": "Page.loadEventFired", "params": {...}}
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/pkg/errors"

	"github.com/FreePeak/golang-cdp-client/internal/domain"
	"github.com/FreePeak/golang-cdp-client/internal/domain/shared"
	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/logging"
	"github.com/FreePeak/golang-cdp-client/internal/usecases"
)

// Error kinds reported in output lines.
const (
	KindParse        = "parse"
	KindRemote       = "remote"
	KindTimeout      = "timeout"
	KindNotConnected = "not_connected"
	KindInternal     = "internal"
)

// ParseErrorCode is reported for input lines that are not valid commands.
const ParseErrorCode = -32700

// Client is the part of the protocol client the bridge drives.
type Client interface {
	SendCommand(ctx context.Context, method string, params any) (json.RawMessage, error)
	AddEventHandler(name string, fn usecases.EventHandler) usecases.HandlerID
	RemoveEventHandler(name string, id usecases.HandlerID) bool
}

// ContextFunc customizes the context shared by all commands of a session.
type ContextFunc func(ctx context.Context) context.Context

// Bridge reads commands from a reader and writes results and events to a
// writer. Commands run concurrently; output lines are never interleaved.
type Bridge struct {
	client      Client
	logger      *logging.Logger
	watch       []string
	contextFunc ContextFunc

	mu sync.Mutex
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithWatch forwards the named events to the output. usecases.AllEvents
// forwards every event.
func WithWatch(names ...string) Option {
	return func(b *Bridge) {
		b.watch = append(b.watch, names...)
	}
}

// WithContextFunc sets a function applied once to the session context.
func WithContextFunc(fn ContextFunc) Option {
	return func(b *Bridge) {
		b.contextFunc = fn
	}
}

// NewBridge creates a bridge around client.
func NewBridge(client Client, opts ...Option) *Bridge {
	b := &Bridge{
		client: client,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type commandLine struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ErrorObject describes a failed command.
type ErrorObject struct {
	Kind    string `json:"kind"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ResultLine is written for every input line.
type ResultLine struct {
	Seq    int             `json:"seq"`
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorObject    `json:"error,omitempty"`
}

// EventLine is written for every watched event.
type EventLine struct {
	Event  string          `json:"event"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Listen processes lines from in until it is exhausted or ctx is done, then
// waits for commands still in flight. It returns nil on end of input.
func (b *Bridge) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	if b.contextFunc != nil {
		ctx = b.contextFunc(ctx)
	}

	for _, name := range b.watch {
		id := b.client.AddEventHandler(name, func(ctx context.Context, event shared.Event) error {
			return b.write(out, EventLine{Event: event.Method, Params: event.Params})
		})
		defer b.client.RemoveEventHandler(name, id)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	reader := bufio.NewReader(in)
	seq := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := reader.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			seq++
			wg.Add(1)
			go func(seq int, line string) {
				defer wg.Done()
				if werr := b.write(out, b.process(ctx, seq, line)); werr != nil {
					b.logger.Error("failed to write result", logging.Fields{"seq": seq, "error": werr})
				}
			}(seq, line)
		}
		if err != nil {
			if err == io.EOF {
				b.logger.Debug("input stream closed", logging.Fields{"lines": seq})
				return nil
			}
			return errors.Wrap(err, "error reading input")
		}
	}
}

func (b *Bridge) process(ctx context.Context, seq int, line string) ResultLine {
	var cmd commandLine
	if err := json.Unmarshal([]byte(line), &cmd); err != nil {
		return ResultLine{Seq: seq, Error: &ErrorObject{Kind: KindParse, Code: ParseErrorCode, Message: err.Error()}}
	}
	if cmd.Method == "" {
		return ResultLine{Seq: seq, ID: cmd.ID, Error: &ErrorObject{Kind: KindParse, Code: ParseErrorCode, Message: "method is required"}}
	}

	var params any
	if len(cmd.Params) > 0 && string(cmd.Params) != "null" {
		params = cmd.Params
	}

	result, err := b.client.SendCommand(ctx, cmd.Method, params)
	if err != nil {
		b.logger.Debug("command failed", logging.Fields{"seq": seq, "method": cmd.Method, "error": err})
		return ResultLine{Seq: seq, ID: cmd.ID, Method: cmd.Method, Error: toErrorObject(err)}
	}
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	return ResultLine{Seq: seq, ID: cmd.ID, Method: cmd.Method, Result: result}
}

func toErrorObject(err error) *ErrorObject {
	var remote *domain.RemoteError
	switch {
	case errors.As(err, &remote):
		return &ErrorObject{Kind: KindRemote, Code: remote.Code, Message: remote.Message, Data: remote.Data}
	case domain.IsTimeout(err):
		return &ErrorObject{Kind: KindTimeout, Message: err.Error()}
	case domain.IsNotConnected(err):
		return &ErrorObject{Kind: KindNotConnected, Message: err.Error()}
	default:
		return &ErrorObject{Kind: KindInternal, Message: err.Error()}
	}
}

// write marshals v and writes it followed by a newline.
func (b *Bridge) write(out io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error marshaling output: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := fmt.Fprintf(out, "%s\n", data); err != nil {
		return fmt.Errorf("error writing output: %w", err)
	}
	return nil
}

// Serve runs a bridge over os.Stdin and os.Stdout until input ends or the
// process receives SIGINT or SIGTERM.
func Serve(ctx context.Context, client Client, opts ...Option) error {
	b := NewBridge(client, opts...)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b.logger.Info("bridge started", logging.Fields{"watch": strings.Join(b.watch, ",")})
	err := b.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	b.logger.Info("bridge stopped")
	return nil
}
