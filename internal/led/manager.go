package led

import (
	"sync"

	"github.com/maohuynh-embedded/camnode/internal/telemetry"
)

// Manager drives the status LED from pipeline telemetry: heartbeat while
// idle, solid while a host session is streaming, blink after a device
// error until the next session starts.
type Manager struct {
	controller Controller
	bus        *telemetry.Bus

	mu        sync.Mutex
	streaming bool
	errored   bool

	unsubState func()
	unsubErr   func()
}

// NewManager creates an LED manager bound to the telemetry bus.
func NewManager(controller Controller, bus *telemetry.Bus) *Manager {
	return &Manager{controller: controller, bus: bus}
}

// Start subscribes to the bus and shows the idle pattern.
func (m *Manager) Start() {
	m.unsubState = m.bus.Subscribe(func(e telemetry.StreamStateEvent) {
		m.mu.Lock()
		m.streaming = e.Active
		if e.Active {
			m.errored = false
		}
		m.mu.Unlock()
		m.apply()
	})
	m.unsubErr = m.bus.Subscribe(func(e telemetry.DeviceErrorEvent) {
		m.mu.Lock()
		m.errored = true
		m.mu.Unlock()
		m.apply()
	})
	m.apply()
	log.Info("LED manager started")
}

// Stop unsubscribes and turns the status LED off.
func (m *Manager) Stop() {
	if m.unsubState != nil {
		m.unsubState()
	}
	if m.unsubErr != nil {
		m.unsubErr()
	}
	if err := m.controller.Set("status", false, ""); err != nil {
		log.Debug("Failed to turn off status LED", "error", err)
	}
	log.Info("LED manager stopped")
}

// Controller returns the underlying controller for direct access.
func (m *Manager) Controller() Controller {
	return m.controller
}

func (m *Manager) apply() {
	m.mu.Lock()
	streaming, errored := m.streaming, m.errored
	m.mu.Unlock()

	var pattern string
	switch {
	case streaming:
		pattern = "solid"
	case errored:
		pattern = "blink"
	default:
		pattern = "heartbeat"
	}

	if err := m.controller.Set("status", true, pattern); err != nil {
		log.Warn("Failed to set status LED", "pattern", pattern, "error", err)
	}
}
