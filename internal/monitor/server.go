// Package monitor exposes a running simulation's progress over HTTP: a
// gorilla/mux router for the JSON endpoints, shirou/gopsutil for process
// resource stats, and net/http/pprof wired in for free by importing it.
package monitor

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // profiling endpoint, operator-only tooling
	"os"
	"sync"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"

	"github.com/sarchlab/cohsim/internal/coherence"
)

// Server serves a point-in-time view of the simulation: the current cycle
// and every core's outstanding-miss state.
type Server struct {
	addr string

	mu    sync.Mutex
	cycle int
	snaps []coherence.Snapshot
	ready bool
}

// NewServer builds a Server that will listen on addr (e.g. ":8080") once
// Start is called.
func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

// Observe is a sim.CycleObserver: call it from Simulator.Run via
// Builder.WithCycleObserver to keep the server's view current.
func (s *Server) Observe(cycle int, snaps []coherence.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycle = cycle
	s.snaps = snaps
	s.ready = true
}

// Start brings up the HTTP listener in the background and returns once it
// is accepting connections.
func (s *Server) Start() error {
	r := mux.NewRouter()
	r.HandleFunc("/api/now", s.handleNow)
	r.HandleFunc("/api/cores", s.handleCores)
	r.HandleFunc("/api/resource", s.handleResource)
	http.Handle("/", r)

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Monitoring simulation at http://%s\n", listener.Addr())

	go func() {
		if err := http.Serve(listener, nil); err != nil {
			fmt.Fprintf(os.Stderr, "monitor: server stopped: %v\n", err)
		}
	}()

	return nil
}

type nowResponse struct {
	Cycle int  `json:"cycle"`
	Ready bool `json:"ready"`
}

func (s *Server) handleNow(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	rsp := nowResponse{Cycle: s.cycle, Ready: s.ready}
	s.mu.Unlock()

	writeJSON(w, rsp)
}

func (s *Server) handleCores(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	snaps := make([]coherence.Snapshot, len(s.snaps))
	copy(snaps, s.snaps)
	s.mu.Unlock()

	writeJSON(w, snaps)
}

type resourceResponse struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
}

func (s *Server) handleResource(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceResponse{CPUPercent: cpuPercent, MemoryRSS: memInfo.RSS})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
