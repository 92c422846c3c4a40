package domain

import (
	"errors"
	"time"
)

type DeviceStatus string

const (
	DeviceActive         DeviceStatus = "active"
	DeviceIdle           DeviceStatus = "idle"
	DeviceOffline        DeviceStatus = "offline"
	DeviceMaintenance    DeviceStatus = "maintenance"
	DeviceDecommissioned DeviceStatus = "decommissioned"
)

var ErrDeviceNotFound = errors.New("device not found")

// Device is one registered dryer. Status and preset assignment are managed by
// the registry CRUD flows; ActiveAlertsCount is the denormalized counter the
// alert lifecycle keeps up to date.
type Device struct {
	ID                string
	DryerID           string
	SerialNumber      string
	Status            DeviceStatus
	DeploymentDate    *time.Time
	CurrentPresetID   *string
	LastCommunication *time.Time
	ActiveAlertsCount int
}
