package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/mosaicnetworks/tsae/src/node"
	"github.com/mosaicnetworks/tsae/src/tsae"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// maxPayloadSize bounds the body of POST /operations.
const maxPayloadSize = 1 << 20

// Service exposes the state of a node over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	router      *mux.Router
	server      *http.Server
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		router:      mux.NewRouter(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the service's own router,
// so that several nodes can run in the same process.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering TSAE API handlers")
	s.router.HandleFunc("/stats", s.makeHandler(s.GetStats)).Methods(http.MethodGet)
	s.router.HandleFunc("/summary", s.makeHandler(s.GetSummary)).Methods(http.MethodGet)
	s.router.HandleFunc("/ack", s.makeHandler(s.GetAck)).Methods(http.MethodGet)
	s.router.HandleFunc("/log", s.makeHandler(s.GetLog)).Methods(http.MethodGet)
	s.router.HandleFunc("/peers", s.makeHandler(s.GetPeers)).Methods(http.MethodGet)
	s.router.HandleFunc("/operations", s.makeHandler(s.PostOperation)).Methods(http.MethodPost)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the router serving the API.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving TSAE API")

	s.Lock()
	s.server = &http.Server{
		Addr:    s.bindAddress,
		Handler: s.router,
	}
	server := s.server
	s.Unlock()

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Shutdown stops the server started by Serve.
func (s *Service) Shutdown(ctx context.Context) error {
	s.Lock()
	server := s.server
	s.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	returnJSON(w, s.node.GetStats())
}

// GetSummary ...
func (s *Service) GetSummary(w http.ResponseWriter, r *http.Request) {
	returnJSON(w, s.node.GetSummary().ToWire())
}

// GetAck ...
func (s *Service) GetAck(w http.ResponseWriter, r *http.Request) {
	returnJSON(w, s.node.GetAck().ToWire())
}

// GetLog returns the operations held in the log, by origin.
func (s *Service) GetLog(w http.ResponseWriter, r *http.Request) {
	log := s.node.GetLog()

	res := make(map[string][]tsae.Operation)
	for _, p := range log.Participants() {
		res[p] = log.Operations(p)
	}

	returnJSON(w, res)
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	returnJSON(w, s.node.GetPeers())
}

// PostOperation issues a local operation whose payload is the request body.
// The type is given by the "type" query parameter and defaults to "add".
func (s *Service) PostOperation(w http.ResponseWriter, r *http.Request) {
	typeParam := r.URL.Query().Get("type")
	if typeParam == "" {
		typeParam = tsae.AddOperation.String()
	}

	opType, err := tsae.ParseOperationType(typeParam)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ts, err := s.node.SubmitOperation(opType, payload)
	if err != nil {
		s.logger.WithError(err).Error("Submitting operation")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	returnJSON(w, ts)
}

func returnJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)

	encoder.Encode(v)
}
