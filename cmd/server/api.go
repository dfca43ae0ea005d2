package main

import (
	"encoding/json"
	"net/http"

	"github.com/CamberLoid/sealedbid/internal/restfulpayload"
	"github.com/CamberLoid/sealedbid/internal/serverlib"
	jww "github.com/spf13/jwalterweatherman"
)

func HandleNotFound(w http.ResponseWriter, req *http.Request) {
	respJSON, _ := json.Marshal(restfulpayload.Failure{
		Status: restfulpayload.StatusFailed,
		Err:    "function not found: " + req.RequestURI,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write(respJSON)
	jww.WARN.Printf("Not found: %s", req.RequestURI)
}

// Handle /version request
func HandlerVersion(w http.ResponseWriter, req *http.Request) {
	serverlib.WriteJSON(w, req, &restfulpayload.Version{
		Status:  restfulpayload.StatusOK,
		Version: ConfigVersion,
	})
}

// NewMux 注册全部接口；未注册的路径交给 HandleNotFound
func NewMux(e *serverlib.Endpoint, adminToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(restfulpayload.VersionEndpoint, HandlerVersion)
	e.Routes(mux)
	e.AdminRoutes(mux, adminToken)

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		jww.TRACE.Printf("%s %s", req.Method, req.URL.Path)
		if _, pattern := mux.Handler(req); pattern == "" {
			HandleNotFound(w, req)
			return
		}
		mux.ServeHTTP(w, req)
	})
}
