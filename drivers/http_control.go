package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
)

const httpTimeoutsMs = 3000

// HttpControl serves a small token protected HTTP API over a ShiftIO.
type HttpControl struct {
	Token    string
	HttpAddr string

	io     *ShiftIO
	server *http.Server
	logger *log.Logger
	ready  atomic.Bool

	serverErr chan error
}

func NewHttpControl(io *ShiftIO, addr, token string) *HttpControl {
	return &HttpControl{
		Token:    token,
		HttpAddr: addr,
		io:       io,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "HttpControl: ",
			Level:  log.GetLevel(),
		}),
	}
}

func (hc *HttpControl) IsReady() bool {
	return hc.ready.Load()
}

func (hc *HttpControl) Handler() http.Handler {
	handler := httprouter.New()
	handler.GET("/state/token/:token", hc.authorized(hc.handleState))
	handler.GET("/output/:pin/token/:token", hc.authorized(hc.handleGetOutput))
	handler.GET("/output/:pin/set/:state/token/:token", hc.authorized(hc.handleSetOutput))
	handler.GET("/clear/token/:token", hc.authorized(hc.handleClear))
	handler.GET("/enable/:state/token/:token", hc.authorized(hc.handleEnable))
	return handler
}

// Start serves in the background; errors end up in Err.
func (hc *HttpControl) Start() error {
	if len(hc.Token) == 0 {
		return errors.New("http control needs a token")
	}

	httpTimeout := httpTimeoutsMs * time.Millisecond
	hc.server = &http.Server{
		Addr:              hc.HttpAddr,
		Handler:           hc.Handler(),
		ReadTimeout:       httpTimeout,
		ReadHeaderTimeout: httpTimeout,
		WriteTimeout:      httpTimeout,
		IdleTimeout:       2 * httpTimeout,
	}
	hc.serverErr = make(chan error, 1)

	hc.ready.Store(true)
	go func() {
		hc.logger.Info("listening", "addr", hc.HttpAddr)
		err := hc.server.ListenAndServe()
		hc.ready.Store(false)
		hc.serverErr <- err
	}()
	return nil
}

func (hc *HttpControl) Err() <-chan error {
	return hc.serverErr
}

func (hc *HttpControl) Close(ctx context.Context) error {
	if hc.server == nil {
		return nil
	}
	return hc.server.Shutdown(ctx)
}

func (hc *HttpControl) authorized(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if len(hc.Token) == 0 || p.ByName("token") != hc.Token {
			http.Error(w, "token mismatch", http.StatusUnauthorized)
			return
		}
		next(w, r, p)
	}
}

func (hc *HttpControl) output(w http.ResponseWriter, p httprouter.Params) (DigitalOutput, bool) {
	pinNo, err := strconv.ParseUint(p.ByName("pin"), 10, 16)
	if err != nil {
		http.Error(w, "invalid pin number", http.StatusBadRequest)
		return nil, false
	}
	output, err := hc.io.GetOutput(uint16(pinNo))
	if err != nil {
		http.Error(w, "pin not found", http.StatusNotFound)
		return nil, false
	}
	return output, true
}

func (hc *HttpControl) writeState(w http.ResponseWriter) {
	state, err := hc.io.Snapshot()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(state)
}

func (hc *HttpControl) handleState(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	hc.writeState(w)
}

func (hc *HttpControl) handleGetOutput(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	output, ok := hc.output(w, p)
	if !ok {
		return
	}
	state, err := output.GetState()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	fmt.Fprintf(w, "%s", formatSwitchPayload(state))
}

func (hc *HttpControl) handleSetOutput(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	output, ok := hc.output(w, p)
	if !ok {
		return
	}
	state, err := parseSwitchPayload([]byte(p.ByName("state")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err = output.Set(state); err != nil {
		hc.logger.Error("failed to set output", "pin", p.ByName("pin"), "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "%s", formatSwitchPayload(state))
}

func (hc *HttpControl) handleClear(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if err := hc.io.Clear(); err != nil {
		hc.logger.Error("failed to clear chain", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hc.writeState(w)
}

func (hc *HttpControl) handleEnable(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	state, err := parseSwitchPayload([]byte(p.ByName("state")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err = hc.io.SetOutputEnabled(state); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hc.writeState(w)
}
