package engine

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/dougsko/scumcal/pkg/calibration"
	"github.com/dougsko/scumcal/pkg/config"
	"github.com/dougsko/scumcal/pkg/diag"
	"github.com/dougsko/scumcal/pkg/feedback"
	"github.com/dougsko/scumcal/pkg/hardware"
	"github.com/dougsko/scumcal/pkg/logging"
	"github.com/dougsko/scumcal/pkg/protocol"
	"github.com/dougsko/scumcal/pkg/storage"
)

// Version is reported in the daemon status
const Version = "0.1.0-dev"

// CoreEngine runs calibration sessions against the simulated mote and
// serves the Unix socket API
type CoreEngine struct {
	config     *config.Config
	socketPath string
	listener   net.Listener
	running    bool
	mutex      sync.RWMutex
	startTime  time.Time
	stopCh     chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once

	// calMutex serializes every call into the calibration components
	calMutex   sync.Mutex
	board      *hardware.Board
	calibrator *calibration.Calibrator
	controller *feedback.Controller
	sink       diag.Sink

	// Diagnostics
	journal *storage.Journal
	recent  *eventRing
	hub     *eventHub

	// Session state
	feedbackEnabled bool
	sessions        int
	slots           uint64
	cursor          int
	txPhase         bool
	lastError       error
}

// NewCoreEngine creates a new core engine. The journal is opened when a
// database path is configured.
func NewCoreEngine(cfg *config.Config, socketPath string) (*CoreEngine, error) {
	calOpts, err := CalibrationOptions(cfg)
	if err != nil {
		return nil, err
	}
	fbOpts, err := FeedbackOptions(cfg)
	if err != nil {
		return nil, err
	}

	board, err := hardware.NewBoard(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize hardware: %w", err)
	}

	e := &CoreEngine{
		config:          cfg,
		socketPath:      socketPath,
		startTime:       time.Now(),
		stopCh:          make(chan struct{}),
		board:           board,
		recent:          newEventRing(DefaultEventBuffer),
		hub:             newEventHub(),
		feedbackEnabled: cfg.Feedback.Enabled,
	}

	sinks := []diag.Sink{diag.NewLogSink(logging.GetGlobalLogger()), e.recent, e.hub}
	if cfg.Storage.DatabasePath != "" {
		journal, err := storage.NewJournal(cfg.Storage.DatabasePath, cfg.Storage.MaxEvents)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		e.journal = journal
		sinks = append(sinks, journal)
	}
	e.sink = diag.Fanout(sinks...)

	e.calibrator, err = calibration.New(calOpts, board.Radio, board.Timer, e.sink)
	if err != nil {
		e.closeJournal()
		return nil, fmt.Errorf("failed to create calibrator: %w", err)
	}
	e.controller, err = feedback.NewController(fbOpts, e.calibrator.Registry(), e.sink)
	if err != nil {
		e.closeJournal()
		return nil, fmt.Errorf("failed to create feedback controller: %w", err)
	}

	return e, nil
}

// Start starts the calibration loop and Unix socket server
func (e *CoreEngine) Start() error {
	// Remove existing socket file
	os.Remove(e.socketPath)

	// Create Unix domain socket
	listener, err := net.Listen("unix", e.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create Unix socket: %w", err)
	}

	// Set socket permissions (readable/writable by owner and group)
	if err := os.Chmod(e.socketPath, 0660); err != nil {
		logging.Warnf("ENGINE", "Failed to set socket permissions: %v", err)
	}

	e.mutex.Lock()
	e.listener = listener
	e.running = true
	e.mutex.Unlock()

	logging.Infof("ENGINE", "Core engine listening on %s", e.socketPath)

	e.wg.Add(1)
	go e.calibrationLoop()

	// Accept connections
	go e.acceptConnections()

	return nil
}

// Stop stops the core engine
func (e *CoreEngine) Stop() error {
	e.mutex.Lock()
	wasRunning := e.running
	e.running = false
	e.mutex.Unlock()

	if wasRunning {
		close(e.stopCh)
		e.listener.Close()
		e.wg.Wait()

		// Clean up socket file
		os.Remove(e.socketPath)
	}

	e.closeOnce.Do(e.closeJournal)
	return nil
}

func (e *CoreEngine) closeJournal() {
	if e.journal == nil {
		return
	}
	if err := e.journal.Close(); err != nil {
		logging.Warnf("ENGINE", "Failed to close journal: %v", err)
	}
}

// calibrationLoop runs one slot per configured interval until stopped
func (e *CoreEngine) calibrationLoop() {
	defer e.wg.Done()

	interval := time.Duration(e.config.Simulation.SlotIntervalMs) * time.Millisecond
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-e.stopCh:
				return
			case <-tick:
			}
		} else {
			select {
			case <-e.stopCh:
				return
			default:
			}
		}

		if err := e.Step(); err != nil && !errors.Is(err, ErrHalted) {
			logging.Errorf("ENGINE", "Calibration step failed: %v", err)
		}
	}
}

// acceptConnections accepts and handles socket connections
func (e *CoreEngine) acceptConnections() {
	for e.isRunning() {
		conn, err := e.listener.Accept()
		if err != nil {
			if e.isRunning() {
				logging.Warnf("ENGINE", "Socket accept error: %v", err)
			}
			continue
		}

		go e.handleConnection(conn)
	}
}

// handleConnection handles a single socket connection
func (e *CoreEngine) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		// Parse command
		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			response := protocol.NewErrorResponse(fmt.Sprintf("parse error: %v", err))
			conn.Write([]byte(response.String() + "\n"))
			continue
		}

		// Handle command
		response := e.handleCommand(cmd)
		conn.Write([]byte(response.String() + "\n"))

		// Close connection after QUIT command
		if cmd.Type == protocol.CmdQuit {
			break
		}
	}
}

// isRunning checks if the engine is running
func (e *CoreEngine) isRunning() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.running
}

// Subscribe streams live diagnostic events. The returned function ends the
// subscription.
func (e *CoreEngine) Subscribe(buffer int) (<-chan diag.Event, func()) {
	return e.hub.Subscribe(buffer)
}

// Board returns the simulated mote
func (e *CoreEngine) Board() *hardware.Board {
	return e.board
}
