package serverlib

import (
	"encoding/json"
	"net/http"

	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/CamberLoid/sealedbid/internal/restfulpayload"
	jww "github.com/spf13/jwalterweatherman"
)

// StatusOf 把错误种类映射为 HTTP 状态码
func StatusOf(err error) int {
	switch misc.KindName(err) {
	case "InvalidParameter", "NoInverse":
		return http.StatusBadRequest
	case "ProtocolOrderViolation":
		return http.StatusConflict
	case "HashMismatch", "BadSignature":
		return http.StatusUnprocessableEntity
	case "NotAuthorized":
		return http.StatusForbidden
	case "ProofRejected":
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// ReturnFailure 写出失败回复
func ReturnFailure(w http.ResponseWriter, req *http.Request, err error) {
	resp := restfulpayload.Failure{
		Status: restfulpayload.StatusFailed,
		Err:    misc.ReasonOf(err),
		Kind:   misc.KindName(err),
	}
	respJSON, _ := json.Marshal(resp)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusOf(err))
	w.Write(respJSON)
	jww.DEBUG.Printf("%s %s failed: %v", req.Method, req.URL.Path, err)
}

// WriteJSON 写出成功回复
func WriteJSON(w http.ResponseWriter, req *http.Request, v any) {
	respJSON, err := json.Marshal(v)
	if err != nil {
		ReturnFailure(w, req, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(respJSON)
}

// handle 解码请求体并调用 f
func handle[Req any, Resp any](f func(*Req) (*Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			ReturnFailure(w, req, misc.Reject(misc.ErrInvalidParameter, "method %s not allowed", req.Method))
			return
		}
		request := new(Req)
		if err := restfulpayload.Decode(req.Body, request); err != nil {
			ReturnFailure(w, req, err)
			return
		}
		var resp *Resp
		err := Recover(func() (err error) {
			resp, err = f(request)
			return err
		})
		if err != nil {
			ReturnFailure(w, req, err)
			return
		}
		WriteJSON(w, req, resp)
	}
}

// get 处理无请求体的查询
func get[Resp any](f func() (*Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		resp, err := f()
		if err != nil {
			ReturnFailure(w, req, err)
			return
		}
		WriteJSON(w, req, resp)
	}
}

// Routes 把参与方使用的接口注册到 mux
func (e *Endpoint) Routes(mux *http.ServeMux) {
	mux.HandleFunc(restfulpayload.WelcomeEndpoint, get(e.Welcome))
	mux.HandleFunc(restfulpayload.RegisterEndpoint, handle(e.Register))
	mux.HandleFunc(restfulpayload.StateEndpoint, handle(e.State))

	// 认证部分
	mux.HandleFunc(restfulpayload.AuthCommitEndpoint, handle(e.AuthCommit))
	mux.HandleFunc(restfulpayload.AuthRespondEndpoint, handle(e.AuthRespond))
	mux.HandleFunc(restfulpayload.ServerAuthCommitEndpoint, handle(e.ServerAuthCommit))
	mux.HandleFunc(restfulpayload.ServerAuthRespondEndpoint, handle(e.ServerAuthRespond))
	mux.HandleFunc(restfulpayload.ConfirmEndpoint, handle(e.Confirm))

	// 出价部分
	mux.HandleFunc(restfulpayload.BidEndpoint, handle(e.SubmitBid))
	mux.HandleFunc(restfulpayload.BidsEndpoint, get(e.Bids))
	mux.HandleFunc(restfulpayload.ResultsEndpoint, get(e.Results))
}

// AdminRoutes 注册管理接口；token 非空时要求请求头 X-Admin-Token
func (e *Endpoint) AdminRoutes(mux *http.ServeMux, token string) {
	guard := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			if token != "" && req.Header.Get("X-Admin-Token") != token {
				ReturnFailure(w, req, misc.Reject(misc.ErrNotAuthorized, "admin token required"))
				return
			}
			h(w, req)
		}
	}
	mux.HandleFunc(restfulpayload.AdminWindowsEndpoint, guard(handle(e.SetWindows)))
	mux.HandleFunc(restfulpayload.AdminAllowedEndpoint, guard(handle(e.SetAllowedIDs)))
	mux.HandleFunc(restfulpayload.AdminDecideEndpoint, guard(get(e.Decide)))
	mux.HandleFunc(restfulpayload.AdminShutdownEndpoint, guard(get(e.Shutdown)))
}

// Shutdown 关闭会话
func (e *Endpoint) Shutdown() (*restfulpayload.Ack, error) {
	e.Session.Shutdown()
	return &restfulpayload.Ack{Status: restfulpayload.StatusOK, Message: "session closed"}, nil
}
