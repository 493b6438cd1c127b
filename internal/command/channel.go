// Package command implements the synchronous request/reply channel used to
// mutate and query the remote scene. One request is outstanding at a time;
// replies are decoded through a per-channel codec.Registry keyed by the
// verb's declared reply type.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/simbridge/internal/codec"
	intotel "github.com/OCAP2/simbridge/internal/otel"
	"github.com/OCAP2/simbridge/pkg/streaming"
)

const instrumentationName = "github.com/OCAP2/simbridge/internal/command"

// CheckConnection is the side-effect-free verb every backend answers.
const CheckConnection = "CheckClientConnection"

// DefaultTimeout is how long Call waits for a reply.
const DefaultTimeout = 5 * time.Second

var (
	ErrTimeout     = errors.New("command timed out")
	ErrUnknownVerb = errors.New("unknown verb")
	ErrArgument    = errors.New("invalid argument")
)

// ArgKind is the wire kind of one verb argument.
type ArgKind int

const (
	String ArgKind = iota
	Float
	Int
	Bool
	// Value is a core value type sent as its codec text.
	Value
)

func (k ArgKind) String() string {
	switch k {
	case String:
		return "string"
	case Float:
		return "float"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Value:
		return "value"
	default:
		return fmt.Sprintf("ArgKind(%d)", int(k))
	}
}

// Verb declares a remote operation. A nil Reply marks a void verb.
type Verb struct {
	Name  string
	Args  []ArgKind
	Reply reflect.Type
}

// Table is the fixed set of verbs a channel may call.
type Table struct {
	verbs map[string]Verb
}

// NewTable builds a table from verbs. CheckClientConnection is always present.
func NewTable(verbs ...Verb) *Table {
	t := &Table{verbs: make(map[string]Verb, len(verbs)+1)}
	t.verbs[CheckConnection] = Verb{Name: CheckConnection}
	for _, v := range verbs {
		t.verbs[v.Name] = v
	}
	return t
}

// Lookup returns the verb registered under name.
func (t *Table) Lookup(name string) (Verb, bool) {
	v, ok := t.verbs[name]
	return v, ok
}

// Names returns every verb name, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.verbs))
	for n := range t.verbs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Config configures a Channel.
type Config struct {
	Timeout time.Duration
}

// Channel issues verbs over a Transport. Safe for concurrent use, but calls
// are serialized.
type Channel struct {
	mu        sync.Mutex
	transport Transport
	table     *Table
	registry  *codec.Registry
	timeout   time.Duration
	logger    *slog.Logger

	calls    metric.Int64Counter
	timeouts metric.Int64Counter
	latency  metric.Float64Histogram
}

// New wraps t and checks that the backend answers. Every non-void verb in
// table must have a decoder in reg.
func New(t Transport, table *Table, reg *codec.Registry, cfg Config, logger *slog.Logger) (*Channel, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	if table == nil {
		table = NewTable()
	}
	if reg == nil {
		reg = codec.DefaultRegistry()
	}

	for _, name := range table.Names() {
		v, _ := table.Lookup(name)
		if v.Reply != nil && !reg.Has(v.Reply) {
			return nil, fmt.Errorf("verb %s: %w: %s", name, codec.ErrNoDecoder, v.Reply)
		}
	}

	c := &Channel{
		transport: t,
		table:     table,
		registry:  reg,
		timeout:   cfg.Timeout,
		logger:    logger.With("component", "command"),

		calls:    intotel.Counter(instrumentationName, "command.calls", "Commands issued"),
		timeouts: intotel.Counter(instrumentationName, "command.timeouts", "Commands that timed out"),
		latency:  intotel.Histogram(instrumentationName, "command.latency", "Command round-trip time", "ms"),
	}

	if _, err := c.Call(CheckConnection); err != nil {
		return nil, fmt.Errorf("backend unreachable: %w", err)
	}
	c.logger.Info("Command channel connected", "timeout", cfg.Timeout)
	return c, nil
}

// Call sends verb with args and waits for its reply. Void verbs return nil.
func (c *Channel) Call(verb string, args ...any) (any, error) {
	v, ok := c.table.Lookup(verb)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVerb, verb)
	}

	wireArgs, err := encodeArgs(v, args)
	if err != nil {
		return nil, err
	}
	req, err := streaming.NewRequest(verb, wireArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArgument, err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	reply, err := c.roundTrip(verb, data)
	if err != nil {
		return nil, err
	}
	if v.Reply == nil {
		return nil, nil
	}
	return c.registry.Decode(v.Reply, reply)
}

func (c *Channel) roundTrip(verb string, data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("verb", verb))
	c.calls.Add(ctx, 1, attrs)

	// A reply that arrived after an earlier timeout belongs to that request.
	c.transport.Drain()

	start := time.Now()
	if err := c.transport.Send(data); err != nil {
		return nil, fmt.Errorf("send %s: %w", verb, err)
	}
	reply, err := c.transport.Receive(c.timeout)
	c.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			c.timeouts.Add(ctx, 1, attrs)
			c.logger.Warn("Command timed out", "verb", verb, "timeout", c.timeout)
		}
		return nil, fmt.Errorf("%s: %w", verb, err)
	}
	c.logger.Debug("Command reply", "verb", verb, "bytes", len(reply), "elapsed", time.Since(start))
	return reply, nil
}

// Close releases the transport.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport.Close()
}

// CallAs calls verb and asserts the reply to T.
func CallAs[T any](c *Channel, verb string, args ...any) (T, error) {
	var zero T
	v, err := c.Call(verb, args...)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &codec.FormatError{
			Type: codec.TypeOf[T]().String(),
			Err:  fmt.Errorf("verb %s replied with %T", verb, v),
		}
	}
	return typed, nil
}

func encodeArgs(v Verb, args []any) ([]any, error) {
	if len(args) != len(v.Args) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArgument, v.Name, len(v.Args), len(args))
	}

	out := make([]any, len(args))
	for i, kind := range v.Args {
		a, err := encodeArg(kind, args[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %s argument %d: %v", ErrArgument, v.Name, i, err)
		}
		out[i] = a
	}
	return out, nil
}

func encodeArg(kind ArgKind, arg any) (any, error) {
	switch kind {
	case String:
		if s, ok := arg.(string); ok {
			return s, nil
		}
	case Float:
		switch n := arg.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case Int:
		switch n := arg.(type) {
		case int:
			return n, nil
		case int32:
			return int(n), nil
		case int64:
			return n, nil
		}
	case Bool:
		if b, ok := arg.(bool); ok {
			return b, nil
		}
	case Value:
		if arg == nil {
			return nil, errors.New("nil value")
		}
		return codec.EncodeString(arg)
	}
	return nil, fmt.Errorf("want %s, got %T", kind, arg)
}
