package lsp

import (
	"context"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/sourcegraph/go-lsp"
	"golang.org/x/sync/errgroup"

	"astrols/internal/diagnostics"
	"astrols/internal/trace"
)

type docState struct {
	uri     lsp.DocumentURI
	path    string
	text    string
	version int
}

func (s *Server) scheduleDiagnostics() {
	s.mu.Lock()
	s.analysisSeq++
	seq := s.analysisSeq
	if s.diagCancel != nil {
		s.diagCancel()
		s.diagCancel = nil
	}
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.debounce, func() {
		s.runDiagnostics(seq)
	})
	s.mu.Unlock()
}

func (s *Server) isLatestSeqLocked(seq uint64) bool {
	return seq != 0 && seq == s.analysisSeq
}

// runDiagnostics computes and publishes diagnostics of every open document.
// Results of a superseded run are dropped.
func (s *Server) runDiagnostics(seq uint64) {
	s.mu.Lock()
	if !s.isLatestSeqLocked(seq) || s.bridge == nil {
		s.mu.Unlock()
		return
	}
	base := s.baseCtx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	s.diagCancel = cancel
	b := s.bridge
	render := s.filter.Render
	limit := s.maxDiagnostics
	docs := make([]docState, 0, len(s.openDocs))
	for uri, doc := range s.openDocs {
		docs = append(docs, docState{uri: uri, path: doc.path, text: doc.text, version: doc.version})
	}
	s.mu.Unlock()
	sort.Slice(docs, func(i, j int) bool { return docs[i].uri < docs[j].uri })

	ctx, span := trace.Start(ctx, s.tracer, trace.ScopeDriver, "lsp:diagnostics")
	span.WithExtra("docs", strconv.Itoa(len(docs)))
	defer span.End("")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, doc := range docs {
		g.Go(func() error {
			records, ok := b.GetDiagnostics(gctx, doc.path)
			if !ok || gctx.Err() != nil {
				return nil
			}
			text := doc.text
			if render == diagnostics.RenderGenerated {
				if virt, ok := b.VirtualText(doc.path); ok {
					text = virt
				}
			}
			mapper := newUTF16Mapper(text)
			list := make([]diagnostic, 0, min(len(records), limit))
			for _, r := range records {
				if len(list) >= limit {
					break
				}
				list = append(list, mapper.diagnostic(r))
			}
			s.publish(gctx, seq, doc, list)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Server) publish(ctx context.Context, seq uint64, doc docState, list []diagnostic) {
	s.mu.Lock()
	if !s.isLatestSeqLocked(seq) {
		s.mu.Unlock()
		return
	}
	if cur, ok := s.openDocs[doc.uri]; !ok || cur.version != doc.version {
		s.mu.Unlock()
		return
	}
	s.published[doc.uri] = struct{}{}
	traceLSP := s.traceLSP
	s.mu.Unlock()
	if traceLSP {
		s.logf("publish: uri=%s version=%d count=%d", doc.uri, doc.version, len(list))
	}
	if err := s.sendPublishVersion(ctx, doc.uri, doc.version, list); err != nil {
		s.logf("failed to publish diagnostics: %v", err)
	}
}

func (s *Server) clearPublishedDiagnostics() {
	s.mu.Lock()
	uris := make([]lsp.DocumentURI, 0, len(s.published))
	for uri := range s.published {
		uris = append(uris, uri)
	}
	s.published = make(map[lsp.DocumentURI]struct{})
	s.mu.Unlock()
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })
	for _, uri := range uris {
		if err := s.sendPublish(context.Background(), uri, nil); err != nil {
			s.logf("failed to clear diagnostics: %v", err)
		}
	}
}

func (s *Server) sendPublish(ctx context.Context, uri lsp.DocumentURI, list []diagnostic) error {
	return s.sendPublishVersion(ctx, uri, 0, list)
}

func (s *Server) sendPublishVersion(ctx context.Context, uri lsp.DocumentURI, version int, list []diagnostic) error {
	if list == nil {
		list = []diagnostic{}
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Notify(ctx, "textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Version:     version,
		Diagnostics: list,
	})
}
