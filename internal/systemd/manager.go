// Package systemd controls companion units over D-Bus. The USB gadget
// composition lives in its own oneshot unit (configfs setup has to run
// before the daemon binds the function endpoints), so starting and
// recovering it goes through systemd rather than exec.
package systemd

import (
	"context"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Manager handles systemd unit lifecycle operations via D-Bus.
type Manager struct {
	conn *dbus.Conn
}

// NewManager opens a system-level D-Bus connection. Gadget units run as
// system services; there is no user session on the device.
func NewManager(ctx context.Context) (*Manager, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return &Manager{conn: conn}, nil
}

// ServiceStatus retrieves the ActiveState property of a unit.
func (m *Manager) ServiceStatus(ctx context.Context, unit string) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", err
	}
	return prop.Value.String(), nil
}

// RestartService restarts a unit using the replace mode.
func (m *Manager) RestartService(ctx context.Context, unit string) error {
	_, err := m.conn.RestartUnitContext(ctx, unit, "replace", nil)
	return err
}

// StopService stops a unit using the replace mode.
func (m *Manager) StopService(ctx context.Context, unit string) error {
	_, err := m.conn.StopUnitContext(ctx, unit, "replace", nil)
	return err
}

// StartService starts a unit using the replace mode.
func (m *Manager) StartService(ctx context.Context, unit string) error {
	_, err := m.conn.StartUnitContext(ctx, unit, "replace", nil)
	return err
}

// Close closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
