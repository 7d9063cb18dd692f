package damd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/simeonradivoev/electron-dam-sub000/internal/core/embed"
)

type Options struct {
	Listen   string
	Embedder embed.Generator
}

// Server speaks JSON-RPC 2.0, one object per line, over TCP. It is the
// boundary a desktop frontend drives the asset core through.
type Server struct {
	opts Options
	h    *Handlers

	mu        sync.Mutex
	listener  net.Listener
	closeOnce sync.Once
	closed    chan struct{}
}

func NewServer(opts Options) *Server {
	if opts.Listen == "" {
		opts.Listen = "127.0.0.1:7343"
	}
	return &Server{
		opts:   opts,
		h:      NewHandlers(opts.Embedder),
		closed: make(chan struct{}),
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Run() error {
	if s == nil {
		return fmt.Errorf("server is nil")
	}

	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	if s == nil {
		return nil
	}

	s.closeOnce.Do(func() { close(s.closed) })

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	err := s.h.Close()
	if ln == nil {
		return err
	}
	if cerr := ln.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (s *Server) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	defer func() { _ = w.Flush() }()

	for {
		line, err := ReadOneLine(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			return
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = WriteOneLine(w, Response{
				JSONRPC: "2.0",
				ID:      json.RawMessage("null"),
				Error:   &ErrorObject{Code: -32700, Message: "parse error"},
			})
			_ = w.Flush()
			continue
		}

		if len(req.ID) == 0 {
			// notification: no response
			_ = s.dispatch(req)
			continue
		}

		resp := s.dispatch(req)
		_ = WriteOneLine(w, resp)
		_ = w.Flush()
	}
}

// handler decodes its own params and runs. The table keeps dispatch flat;
// every entry follows the same decode-validate-call shape.
type handler func(params json.RawMessage) (any, error)

func (s *Server) dispatch(req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		resp.Error = &ErrorObject{Code: -32600, Message: "invalid jsonrpc version"}
		return resp
	}

	fn, ok := s.methods()[req.Method]
	if !ok {
		resp.Error = &ErrorObject{Code: -32601, Message: "method not found"}
		return resp
	}

	result, err := fn(req.Params)
	if err != nil {
		code := -32000
		var bad *paramError
		if errors.As(err, &bad) {
			code = -32602
		}
		resp.Error = &ErrorObject{Code: code, Message: err.Error()}
		return resp
	}
	resp.Result = result
	return resp
}

func (s *Server) methods() map[string]handler {
	return map[string]handler{
		"ping": func(json.RawMessage) (any, error) { return "pong", nil },
		"project.open": func(raw json.RawMessage) (any, error) {
			var p ProjectOpenParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			return s.h.ProjectOpen(p)
		},
		"project.close": func(raw json.RawMessage) (any, error) {
			p, err := projectParams(raw)
			if err != nil {
				return nil, err
			}
			return s.h.ProjectClose(p)
		},
		"index.build": func(raw json.RawMessage) (any, error) {
			p, err := projectParams(raw)
			if err != nil {
				return nil, err
			}
			return s.h.IndexBuild(p)
		},
		"search": func(raw json.RawMessage) (any, error) {
			var p SearchParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			if strings.TrimSpace(p.ProjectID) == "" {
				return nil, &paramError{"project_id is required"}
			}
			return s.h.Search(p)
		},
		"assets.list": func(raw json.RawMessage) (any, error) {
			var p AssetsListParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			if strings.TrimSpace(p.ProjectID) == "" {
				return nil, &paramError{"project_id is required"}
			}
			return s.h.AssetsList(p)
		},
		"bundle.create": func(raw json.RawMessage) (any, error) {
			var p BundleCreateParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			if strings.TrimSpace(p.ProjectID) == "" || strings.TrimSpace(p.Path) == "" {
				return nil, &paramError{"project_id and path are required"}
			}
			return s.h.BundleCreate(p)
		},
		"bundle.delete": func(raw json.RawMessage) (any, error) {
			p, err := bundlePathParams(raw)
			if err != nil {
				return nil, err
			}
			return s.h.BundleDelete(p)
		},
		"bundle.info": func(raw json.RawMessage) (any, error) {
			p, err := bundlePathParams(raw)
			if err != nil {
				return nil, err
			}
			return s.h.BundleInfo(p)
		},
		"meta.set": func(raw json.RawMessage) (any, error) {
			var p MetaSetParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			if strings.TrimSpace(p.ProjectID) == "" || strings.TrimSpace(p.Path) == "" {
				return nil, &paramError{"project_id and path are required"}
			}
			return s.h.MetaSet(p)
		},
		"virtual.add": func(raw json.RawMessage) (any, error) {
			var p VirtualAddParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			if strings.TrimSpace(p.ProjectID) == "" {
				return nil, &paramError{"project_id is required"}
			}
			return s.h.VirtualAdd(p)
		},
		"virtual.list": func(raw json.RawMessage) (any, error) {
			p, err := projectParams(raw)
			if err != nil {
				return nil, err
			}
			return s.h.VirtualList(p)
		},
		"virtual.remove": func(raw json.RawMessage) (any, error) {
			var p VirtualRemoveParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			if strings.TrimSpace(p.ProjectID) == "" || strings.TrimSpace(p.ID) == "" {
				return nil, &paramError{"project_id and id are required"}
			}
			return s.h.VirtualRemove(p)
		},
		"task.list": func(raw json.RawMessage) (any, error) {
			p, err := projectParams(raw)
			if err != nil {
				return nil, err
			}
			return s.h.TaskList(p)
		},
		"task.cancel": func(raw json.RawMessage) (any, error) {
			var p TaskParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			if strings.TrimSpace(p.ProjectID) == "" || strings.TrimSpace(p.TaskID) == "" {
				return nil, &paramError{"project_id and task_id are required"}
			}
			return s.h.TaskCancel(p)
		},
	}
}

type paramError struct{ msg string }

func (e *paramError) Error() string { return e.msg }

func decode(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &paramError{"invalid params"}
	}
	return nil
}

func projectParams(raw json.RawMessage) (ProjectParams, error) {
	var p ProjectParams
	if err := decode(raw, &p); err != nil {
		return p, err
	}
	if strings.TrimSpace(p.ProjectID) == "" {
		return p, &paramError{"project_id is required"}
	}
	return p, nil
}

func bundlePathParams(raw json.RawMessage) (BundlePathParams, error) {
	var p BundlePathParams
	if err := decode(raw, &p); err != nil {
		return p, err
	}
	if strings.TrimSpace(p.ProjectID) == "" || strings.TrimSpace(p.Path) == "" {
		return p, &paramError{"project_id and path are required"}
	}
	return p, nil
}
