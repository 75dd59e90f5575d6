// Package lsp serves bridge diagnostics over the language server protocol.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"

	"astrols/internal/bridge"
	"astrols/internal/config"
	"astrols/internal/diagnostics"
	"astrols/internal/trace"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// BridgeFunc builds the bridge for a workspace root.
type BridgeFunc func(root string, tracer trace.Tracer) (*bridge.Bridge, diagnostics.Options, error)

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	Debounce       time.Duration
	MaxDiagnostics int
	NewBridge      BridgeFunc
	Tracer         trace.Tracer
}

// Server handles JSON-RPC for the astrols language server.
type Server struct {
	mu        sync.Mutex
	openDocs  map[lsp.DocumentURI]*document
	published map[lsp.DocumentURI]struct{}

	workspaceRoot     string
	shutdownRequested bool
	debounce          time.Duration
	debounceTimer     *time.Timer
	diagCancel        context.CancelFunc
	analysisSeq       uint64
	maxDiagnostics    int
	traceLSP          bool

	newBridge BridgeFunc
	bridge    *bridge.Bridge
	filter    diagnostics.Options
	tracer    trace.Tracer

	baseCtx context.Context
	conn    notifier
	exit    chan error
}

type document struct {
	path    string
	text    string
	version int
}

// notifier is the part of *jsonrpc2.Conn the server talks back through.
type notifier interface {
	Notify(ctx context.Context, method string, params any, opts ...jsonrpc2.CallOption) error
}

// NewServer constructs a new LSP server.
func NewServer(opts ServerOptions) *Server {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	maxDiagnostics := opts.MaxDiagnostics
	if maxDiagnostics <= 0 {
		maxDiagnostics = 100
	}
	newBridge := opts.NewBridge
	if newBridge == nil {
		newBridge = configuredBridge
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.Nop
	}
	return &Server{
		openDocs:       make(map[lsp.DocumentURI]*document),
		published:      make(map[lsp.DocumentURI]struct{}),
		debounce:       debounce,
		maxDiagnostics: maxDiagnostics,
		newBridge:      newBridge,
		tracer:         tracer,
		exit:           make(chan error, 1),
	}
}

// configuredBridge loads astrols.toml above root.
func configuredBridge(root string, tracer trace.Tracer) (*bridge.Bridge, diagnostics.Options, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, diagnostics.Options{}, err
	}
	opts := cfg.BridgeOptions(tracer)
	b, err := bridge.New(opts)
	if err != nil {
		return nil, diagnostics.Options{}, err
	}
	return b, opts.Filter, nil
}

// Run serves one connection until the client disconnects or sends "exit".
func (s *Server) Run(ctx context.Context, rwc io.ReadWriteCloser) error {
	s.baseCtx = ctx
	handler := jsonrpc2.HandlerWithError(s.handle)
	conn := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}), handler)
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	var err error
	select {
	case <-conn.DisconnectNotify():
	case err = <-s.exit:
		_ = conn.Close()
	case <-ctx.Done():
		_ = conn.Close()
	}
	s.stop()
	return err
}

func (s *Server) stop() {
	s.mu.Lock()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	if s.diagCancel != nil {
		s.diagCancel()
	}
	b := s.bridge
	s.bridge = nil
	s.mu.Unlock()
	if b != nil {
		if err := b.Close(); err != nil {
			s.logf("bridge close: %v", err)
		}
	}
}

func (s *Server) handle(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case "initialize":
		var params lsp.InitializeParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.handleInitialize(params)
	case "initialized":
		return nil, nil
	case "shutdown":
		s.handleShutdown()
		return nil, nil
	case "exit":
		s.mu.Lock()
		err := ErrExitWithoutShutdown
		if s.shutdownRequested {
			err = ErrExit
		}
		s.mu.Unlock()
		select {
		case s.exit <- err:
		default:
		}
		return nil, nil
	case "workspace/didChangeConfiguration":
		var params lsp.DidChangeConfigurationParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		s.applySettings(params.Settings)
		return nil, nil
	case "textDocument/didOpen":
		var params lsp.DidOpenTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		s.handleDidOpen(params)
		return nil, nil
	case "textDocument/didChange":
		var params lsp.DidChangeTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		s.handleDidChange(params)
		return nil, nil
	case "textDocument/didSave":
		s.scheduleDiagnostics()
		return nil, nil
	case "textDocument/didClose":
		var params lsp.DidCloseTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		s.handleDidClose(ctx, params)
		return nil, nil
	case "workspace/didChangeWatchedFiles":
		s.handleWatchedFiles()
		return nil, nil
	}
	if req.Notif {
		return nil, nil
	}
	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not found: " + req.Method}
}

func unmarshalParams(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return nil
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func (s *Server) handleInitialize(params lsp.InitializeParams) (*lsp.InitializeResult, error) {
	root := uriToPath(params.RootURI)
	if root == "" {
		root = params.RootPath
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	b, filter, err := s.newBridge(root, s.tracer)
	if err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: fmt.Sprintf("initialize: %v", err)}
	}
	s.mu.Lock()
	s.workspaceRoot = root
	old := s.bridge
	s.bridge = b
	s.filter = filter
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	s.applySettings(params.InitializationOptions)

	return &lsp.InitializeResult{
		Capabilities: lsp.ServerCapabilities{
			TextDocumentSync: &lsp.TextDocumentSyncOptionsOrKind{
				Options: &lsp.TextDocumentSyncOptions{
					OpenClose: true,
					Change:    lsp.TDSKIncremental,
				},
			},
		},
	}, nil
}

func (s *Server) handleShutdown() {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	s.clearPublishedDiagnostics()
}

func (s *Server) handleDidOpen(params lsp.DidOpenTextDocumentParams) {
	uri := canonicalURI(params.TextDocument.URI)
	path := uriToPath(uri)
	if path == "" {
		return
	}
	s.mu.Lock()
	s.openDocs[uri] = &document{path: filepath.ToSlash(path), text: params.TextDocument.Text, version: params.TextDocument.Version}
	b := s.bridge
	s.mu.Unlock()
	if b != nil {
		b.RegisterOrUpdateFile(filepath.ToSlash(path), params.TextDocument.Text)
	}
	s.scheduleDiagnostics()
}

func (s *Server) handleDidChange(params lsp.DidChangeTextDocumentParams) {
	uri := canonicalURI(params.TextDocument.URI)
	s.mu.Lock()
	doc, ok := s.openDocs[uri]
	if !ok {
		s.mu.Unlock()
		return
	}
	doc.text = applyChanges(doc.text, params.ContentChanges)
	doc.version = params.TextDocument.Version
	path, text := doc.path, doc.text
	b := s.bridge
	traceLSP := s.traceLSP
	s.mu.Unlock()
	var v int64
	if b != nil {
		v = b.RegisterOrUpdateFile(path, text)
	}
	if traceLSP {
		s.logf("didChange: uri=%s version=%d snapshot=%d", uri, params.TextDocument.Version, v)
	}
	s.scheduleDiagnostics()
}

func (s *Server) handleDidClose(ctx context.Context, params lsp.DidCloseTextDocumentParams) {
	uri := canonicalURI(params.TextDocument.URI)
	s.mu.Lock()
	doc, ok := s.openDocs[uri]
	delete(s.openDocs, uri)
	_, hadDiagnostics := s.published[uri]
	delete(s.published, uri)
	b := s.bridge
	s.mu.Unlock()
	if !ok {
		return
	}
	if b != nil {
		b.RemoveFile(doc.path)
	}
	if hadDiagnostics {
		if err := s.sendPublish(ctx, uri, nil); err != nil {
			s.logf("failed to clear diagnostics: %v", err)
		}
	}
	s.scheduleDiagnostics()
}

// handleWatchedFiles drops cached resolutions; files appearing on disk may
// satisfy imports that failed before.
func (s *Server) handleWatchedFiles() {
	s.mu.Lock()
	b := s.bridge
	s.mu.Unlock()
	if b != nil {
		b.ProjectChanged()
	}
	s.scheduleDiagnostics()
}

func (s *Server) logf(format string, args ...any) {
	trace.Point(s.tracer, trace.ScopeDriver, "lsp", fmt.Sprintf(format, args...))
}
