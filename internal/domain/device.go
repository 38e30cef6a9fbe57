package domain

import (
	"fmt"
	"strings"
	"time"
)

type DeviceType string

const (
	DeviceCNCMachine        DeviceType = "cnc_machine"
	DeviceRobotArm          DeviceType = "robot_arm"
	DeviceConveyor          DeviceType = "conveyor"
	DeviceTemperatureSensor DeviceType = "temperature_sensor"
	DeviceHumiditySensor    DeviceType = "humidity_sensor"
	DevicePowerMeter        DeviceType = "power_meter"
	DeviceAirCompressor     DeviceType = "air_compressor"
)

func (t DeviceType) Valid() bool {
	switch t {
	case DeviceCNCMachine, DeviceRobotArm, DeviceConveyor, DeviceTemperatureSensor,
		DeviceHumiditySensor, DevicePowerMeter, DeviceAirCompressor:
		return true
	}
	return false
}

type DeviceStatus string

const (
	DeviceOnline      DeviceStatus = "online"
	DeviceOffline     DeviceStatus = "offline"
	DeviceError       DeviceStatus = "error"
	DeviceMaintenance DeviceStatus = "maintenance"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceOnline, DeviceOffline, DeviceError, DeviceMaintenance:
		return true
	}
	return false
}

type Device struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      DeviceType     `json:"type"`
	Zone      string         `json:"zone"`
	Status    DeviceStatus   `json:"status"`
	IPAddress string         `json:"ip_address,omitempty"`
	Firmware  string         `json:"firmware,omitempty"`
	LastSeen  time.Time      `json:"last_seen"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (d Device) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: device name is required", ErrInvalidInput)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unsupported device type %q", ErrInvalidInput, d.Type)
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: unsupported device status %q", ErrInvalidInput, d.Status)
	}
	if strings.TrimSpace(d.Zone) == "" {
		return fmt.Errorf("%w: zone is required", ErrInvalidInput)
	}
	return nil
}

type DeviceFilter struct {
	Status DeviceStatus
	Type   DeviceType
	Zone   string
	Search string
}

func (f DeviceFilter) Match(d Device) bool {
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.Type != "" && d.Type != f.Type {
		return false
	}
	if f.Zone != "" && d.Zone != f.Zone {
		return false
	}
	if f.Search != "" {
		s := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(d.Name), s) && !strings.Contains(strings.ToLower(d.ID), s) {
			return false
		}
	}
	return true
}

type DeviceUpdate struct {
	Name      *string
	Zone      *string
	Status    *DeviceStatus
	IPAddress *string
	Firmware  *string
	Metadata  map[string]any
}

type CommandStatus string

const (
	CommandPending      CommandStatus = "pending"
	CommandSent         CommandStatus = "sent"
	CommandAcknowledged CommandStatus = "acknowledged"
	CommandFailed       CommandStatus = "failed"
)

type DeviceCommand struct {
	ID          string         `json:"id"`
	DeviceID    string         `json:"device_id"`
	Command     string         `json:"command"`
	Params      map[string]any `json:"params"`
	Status      CommandStatus  `json:"status"`
	SentBy      string         `json:"sent_by"`
	CreatedAt   time.Time      `json:"created_at"`
	RespondedAt *time.Time     `json:"responded_at,omitempty"`
}

// ApplyCommand returns the device after the status side effect of command.
// Only start and stop change status; every command refreshes LastSeen.
func (d Device) ApplyCommand(command string, at time.Time) Device {
	switch command {
	case "start":
		d.Status = DeviceOnline
	case "stop":
		d.Status = DeviceOffline
	}
	d.LastSeen = at
	d.UpdatedAt = at
	return d
}

func (d Device) Apply(u DeviceUpdate) Device {
	if u.Name != nil {
		d.Name = strings.TrimSpace(*u.Name)
	}
	if u.Zone != nil {
		d.Zone = strings.TrimSpace(*u.Zone)
	}
	if u.Status != nil {
		d.Status = *u.Status
	}
	if u.IPAddress != nil {
		d.IPAddress = *u.IPAddress
	}
	if u.Firmware != nil {
		d.Firmware = *u.Firmware
	}
	if u.Metadata != nil {
		d.Metadata = u.Metadata
	}
	return d
}

// StatusCounts tallies devices per status; every status key is present.
func StatusCounts(devices []Device) map[DeviceStatus]int {
	out := map[DeviceStatus]int{DeviceOnline: 0, DeviceOffline: 0, DeviceError: 0, DeviceMaintenance: 0}
	for _, d := range devices {
		out[d.Status]++
	}
	return out
}
