// server.go 包括客户端与服务端交互的接口和函数

package clientlib

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/CamberLoid/sealedbid/internal/restfulpayload"
	"github.com/pkg/errors"
)

const (
	DefaultServerURL string        = "http://127.0.0.1:16001"
	DefaultTimeout   time.Duration = 30 * time.Second
)

var (
	ConfigServerURL string = DefaultServerURL
)

// Transport 是参与方与拍卖服务端之间的消息通道
// serverlib.Endpoint 可直接作为进程内的 Transport。
type Transport interface {
	Welcome() (*restfulpayload.Welcome, error)
	Register(*restfulpayload.RegisterReq) (*restfulpayload.Ack, error)
	State(*restfulpayload.StateReq) (*restfulpayload.StateResp, error)

	AuthCommit(*restfulpayload.AuthCommitReq) (*restfulpayload.AuthChallenge, error)
	AuthRespond(*restfulpayload.AuthResponseReq) (*restfulpayload.AuthResult, error)
	ServerAuthCommit(*restfulpayload.ServerAuthReq) (*restfulpayload.ServerAuthCommit, error)
	ServerAuthRespond(*restfulpayload.ServerAuthChallengeReq) (*restfulpayload.ServerAuthResponse, error)
	Confirm(*restfulpayload.MutualConfirmReq) (*restfulpayload.Ack, error)

	SubmitBid(*restfulpayload.BidReq) (*restfulpayload.BidResult, error)
	Bids() (*restfulpayload.BidsPublished, error)
	Results() (*restfulpayload.ResultsPublished, error)
}

// HTTPTransport 通过 HTTP JSON 访问服务端
type HTTPTransport struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPTransport 检查地址是否合法，不合法时返回错误
func NewHTTPTransport(server string) (*HTTPTransport, error) {
	if _, err := url.ParseRequestURI(server); err != nil {
		return nil, errors.Wrapf(err, "invalid server url %q", server)
	}
	return &HTTPTransport{BaseURL: server, Client: &http.Client{Timeout: DefaultTimeout}}, nil
}

func (t *HTTPTransport) Welcome() (*restfulpayload.Welcome, error) {
	return get[restfulpayload.Welcome](t, restfulpayload.WelcomeEndpoint)
}

func (t *HTTPTransport) Register(req *restfulpayload.RegisterReq) (*restfulpayload.Ack, error) {
	return post[restfulpayload.Ack](t, restfulpayload.RegisterEndpoint, req)
}

func (t *HTTPTransport) State(req *restfulpayload.StateReq) (*restfulpayload.StateResp, error) {
	return post[restfulpayload.StateResp](t, restfulpayload.StateEndpoint, req)
}

// --- 认证部分 ---

func (t *HTTPTransport) AuthCommit(req *restfulpayload.AuthCommitReq) (*restfulpayload.AuthChallenge, error) {
	return post[restfulpayload.AuthChallenge](t, restfulpayload.AuthCommitEndpoint, req)
}

func (t *HTTPTransport) AuthRespond(req *restfulpayload.AuthResponseReq) (*restfulpayload.AuthResult, error) {
	return post[restfulpayload.AuthResult](t, restfulpayload.AuthRespondEndpoint, req)
}

func (t *HTTPTransport) ServerAuthCommit(req *restfulpayload.ServerAuthReq) (*restfulpayload.ServerAuthCommit, error) {
	return post[restfulpayload.ServerAuthCommit](t, restfulpayload.ServerAuthCommitEndpoint, req)
}

func (t *HTTPTransport) ServerAuthRespond(req *restfulpayload.ServerAuthChallengeReq) (*restfulpayload.ServerAuthResponse, error) {
	return post[restfulpayload.ServerAuthResponse](t, restfulpayload.ServerAuthRespondEndpoint, req)
}

func (t *HTTPTransport) Confirm(req *restfulpayload.MutualConfirmReq) (*restfulpayload.Ack, error) {
	return post[restfulpayload.Ack](t, restfulpayload.ConfirmEndpoint, req)
}

// --- 出价部分 ---

func (t *HTTPTransport) SubmitBid(req *restfulpayload.BidReq) (*restfulpayload.BidResult, error) {
	return post[restfulpayload.BidResult](t, restfulpayload.BidEndpoint, req)
}

func (t *HTTPTransport) Bids() (*restfulpayload.BidsPublished, error) {
	return get[restfulpayload.BidsPublished](t, restfulpayload.BidsEndpoint)
}

func (t *HTTPTransport) Results() (*restfulpayload.ResultsPublished, error) {
	return get[restfulpayload.ResultsPublished](t, restfulpayload.ResultsEndpoint)
}

// --- Helper Func 部分 ---

func post[Resp any](t *HTTPTransport, path string, req any) (*Resp, error) {
	server, err := url.JoinPath(t.BaseURL, path)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := t.Client.Post(server, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return nil, errors.Wrapf(err, "POST %s", path)
	}
	defer resp.Body.Close()
	return decodeResponse[Resp](resp)
}

func get[Resp any](t *HTTPTransport, path string) (*Resp, error) {
	server, err := url.JoinPath(t.BaseURL, path)
	if err != nil {
		return nil, err
	}
	resp, err := t.Client.Get(server)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()
	return decodeResponse[Resp](resp)
}

// decodeResponse 解析回复；失败回复还原为对应种类的 Rejection
func decodeResponse[Resp any](resp *http.Response) (*Resp, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, CheckFailure(resp.Status, body)
	}
	out := new(Resp)
	if err = json.Unmarshal(body, out); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	return out, nil
}

// CheckFailure 把失败回复转为错误
func CheckFailure(status string, body []byte) error {
	var f restfulpayload.Failure
	if err := json.Unmarshal(body, &f); err != nil || f.Status != restfulpayload.StatusFailed {
		return errors.Errorf("server returned %s", status)
	}
	if kind, ok := misc.KindByName(f.Kind); ok {
		return misc.Reject(kind, "%s", f.Err)
	}
	return errors.Errorf("server returned %s: %s", status, f.Err)
}
