package model

import (
	"time"

	"github.com/google/uuid"
)

// ShipmentJobKind is the courier operation a job performs.
type ShipmentJobKind string

const (
	ShipmentJobRegister ShipmentJobKind = "register"
	ShipmentJobCancel   ShipmentJobKind = "cancel"
)

// ShipmentJobStatus is the processing state of an outbox job.
type ShipmentJobStatus string

const (
	ShipmentJobPending ShipmentJobStatus = "pending"
	ShipmentJobDone    ShipmentJobStatus = "done"
	ShipmentJobFailed  ShipmentJobStatus = "failed"
)

// ShipmentJob is an outbox entry written alongside an order change and processed by the dispatcher.
type ShipmentJob struct {
	ID            uuid.UUID         `json:"id"`
	OrderID       uuid.UUID         `json:"orderId"`
	Kind          ShipmentJobKind   `json:"kind"`
	Reason        *string           `json:"reason,omitempty"`
	Attempts      int               `json:"attempts"`
	NextAttemptAt time.Time         `json:"nextAttemptAt"`
	LastError     *string           `json:"lastError,omitempty"`
	Status        ShipmentJobStatus `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
}
