package damd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error (%d): %s", e.Code, e.Message) }

// Client is a minimal synchronous JSON-RPC client for one daemon
// connection. Calls are not safe for concurrent use; open one client per
// goroutine.
type Client struct {
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	nextID int64
}

func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

func (c *Client) call(method string, params any, out any) error {
	if c == nil || c.conn == nil {
		return fmt.Errorf("client is nil")
	}
	id := atomic.AddInt64(&c.nextID, 1)
	req := Request{JSONRPC: "2.0", Method: method, ID: json.RawMessage(fmt.Sprintf("%d", id))}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return err
		}
		req.Params = b
	}

	if err := WriteOneLine(c.w, req); err != nil {
		return err
	}
	if err := c.w.Flush(); err != nil {
		return err
	}

	line, err := ReadOneLine(c.r)
	if err != nil {
		return err
	}
	var resp rawResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, out)
}

func (c *Client) Ping() error {
	var out string
	if err := c.call("ping", nil, &out); err != nil {
		return err
	}
	if out != "pong" {
		return fmt.Errorf("unexpected ping result: %q", out)
	}
	return nil
}

func (c *Client) ProjectOpen(p ProjectOpenParams) (string, error) {
	var out string
	if err := c.call("project.open", p, &out); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) ProjectClose(projectID string) error {
	return c.call("project.close", ProjectParams{ProjectID: projectID}, nil)
}

func (c *Client) IndexBuild(projectID string) (IndexBuildResult, error) {
	var out IndexBuildResult
	err := c.call("index.build", ProjectParams{ProjectID: projectID}, &out)
	return out, err
}

func (c *Client) Search(p SearchParams) ([]SearchResultItem, error) {
	var out []SearchResultItem
	if err := c.call("search", p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AssetsList(p AssetsListParams) ([]model.AssetNode, error) {
	var out []model.AssetNode
	if err := c.call("assets.list", p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BundleCreate(p BundleCreateParams) error {
	return c.call("bundle.create", p, nil)
}

func (c *Client) BundleDelete(p BundlePathParams) error {
	return c.call("bundle.delete", p, nil)
}

func (c *Client) BundleInfo(p BundlePathParams) (model.BundleInfo, error) {
	var out model.BundleInfo
	err := c.call("bundle.info", p, &out)
	return out, err
}

func (c *Client) MetaSet(p MetaSetParams) error {
	return c.call("meta.set", p, nil)
}

func (c *Client) VirtualAdd(p VirtualAddParams) (string, error) {
	var out string
	err := c.call("virtual.add", p, &out)
	return out, err
}

func (c *Client) VirtualList(projectID string) ([]model.BundleInfo, error) {
	var out []model.BundleInfo
	err := c.call("virtual.list", ProjectParams{ProjectID: projectID}, &out)
	return out, err
}

func (c *Client) VirtualRemove(p VirtualRemoveParams) error {
	return c.call("virtual.remove", p, nil)
}

func (c *Client) TaskList(projectID string) ([]TaskSnapshot, error) {
	var out []TaskSnapshot
	err := c.call("task.list", ProjectParams{ProjectID: projectID}, &out)
	return out, err
}

func (c *Client) TaskCancel(p TaskParams) (bool, error) {
	var out bool
	err := c.call("task.cancel", p, &out)
	return out, err
}
