package client

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"github.com/boristopalov/gymbridge/pkg/core"
)

//go:embed worker.py
var workerScript string

const defaultPython = "python3"

// Bridge is a core.Runtime backed by a Python worker process. The worker
// owns every object; the bridge only holds integer references.
type Bridge struct {
	id     string
	cmd    *exec.Cmd
	w      io.WriteCloser
	enc    *json.Encoder
	dec    *json.Decoder
	mu     sync.Mutex
	nextID uint64
	err    error
	closed bool
}

type BridgeParams struct {
	Python string
	Env    []string
	Stderr io.Writer
}

type BridgeOption func(*BridgeParams)

func WithPython(path string) BridgeOption {
	return func(p *BridgeParams) {
		p.Python = path
	}
}

// WithEnv adds environment variables (KEY=value) for the worker.
func WithEnv(env ...string) BridgeOption {
	return func(p *BridgeParams) {
		p.Env = append(p.Env, env...)
	}
}

func WithStderr(w io.Writer) BridgeOption {
	return func(p *BridgeParams) {
		p.Stderr = w
	}
}

func defaultBridgeParams() *BridgeParams {
	python := os.Getenv("GYMBRIDGE_PYTHON")
	if python == "" {
		python = defaultPython
	}
	return &BridgeParams{
		Python: python,
		Stderr: os.Stderr,
	}
}

// Start launches a worker and waits for it to answer. The worker is
// killed when ctx is done.
func Start(ctx context.Context, opts ...BridgeOption) (*Bridge, error) {
	params := defaultBridgeParams()
	for _, opt := range opts {
		opt(params)
	}

	cmd := exec.CommandContext(ctx, params.Python, "-u", "-c", workerScript)
	cmd.Env = append(os.Environ(), params.Env...)
	cmd.Stderr = params.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", params.Python, err)
	}

	b := NewConn(stdout, stdin)
	b.cmd = cmd

	version, err := b.Ping()
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("worker did not answer: %w", err)
	}
	log.Printf("Started Python %s worker %s (pid %d)", version, b.id, cmd.Process.Pid)
	return b, nil
}

// NewConn speaks the worker protocol over an existing stream pair.
func NewConn(r io.Reader, w io.WriteCloser) *Bridge {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Bridge{
		id:  "worker-" + uuid.New().String(),
		w:   w,
		enc: enc,
		dec: json.NewDecoder(bufio.NewReader(r)),
	}
}

func (b *Bridge) ID() string {
	return b.id
}

// Ping returns the worker's Python version.
func (b *Bridge) Ping() (string, error) {
	resp, err := b.roundTrip(request{Op: "ping"})
	if err != nil {
		return "", err
	}
	var version string
	if err := json.Unmarshal(resp.Value, &version); err != nil {
		return "", fmt.Errorf("malformed ping response: %w", err)
	}
	return version, nil
}

// Acquire is a no-op: the worker runs one request at a time and
// roundTrip already serializes access to the stream.
func (b *Bridge) Acquire() func() {
	return func() {}
}

func (b *Bridge) Import(module string) (core.Object, error) {
	resp, err := b.roundTrip(request{Op: "import", Name: module})
	if err != nil {
		return nil, err
	}
	return &object{b: b, ref: resp.Ref}, nil
}

func (b *Bridge) roundTrip(req request) (response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return response{}, ErrClosed
	}
	if b.err != nil {
		return response{}, b.err
	}

	b.nextID++
	req.ID = b.nextID
	if err := b.enc.Encode(req); err != nil {
		b.err = fmt.Errorf("%w: write: %v", ErrWorkerGone, err)
		return response{}, b.err
	}

	var resp response
	if err := b.dec.Decode(&resp); err != nil {
		b.err = fmt.Errorf("%w: read: %v", ErrWorkerGone, err)
		return response{}, b.err
	}
	if resp.ID != req.ID {
		b.err = fmt.Errorf("%w: response %d for request %d", ErrProtocol, resp.ID, req.ID)
		return response{}, b.err
	}
	if resp.Error != nil {
		return response{}, resp.Error
	}
	return resp, nil
}

// Close asks the worker to exit and waits for it.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.err == nil {
		b.enc.Encode(request{Op: "shutdown"})
	}
	b.w.Close()
	b.mu.Unlock()

	if b.cmd == nil {
		return nil
	}
	if err := b.cmd.Wait(); err != nil {
		return fmt.Errorf("worker %s exited: %w", b.id, err)
	}
	log.Printf("Stopped worker %s", b.id)
	return nil
}
