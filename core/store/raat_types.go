package store

import "time"

// Lifecycle status of an incident. Open is the only editable state; the
// three terminal states differ only in legal meaning, not in edit rules.
const (
	IncidentOpen         = "open"
	IncidentClosed       = "closed"
	IncidentWithSequelae = "with_sequelae"
	IncidentConsolidated = "consolidated"
)

// Compliance-notification (DIAT) status, tracked independently of lifecycle.
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationOverdue = "overdue"
)

// Event kinds recognized by Chilean workplace-safety reporting.
const (
	KindWorkplaceAccident   = "workplace_accident"
	KindCommuteAccident     = "commute_accident"
	KindOccupationalIllness = "occupational_illness"
)

func IncidentStatuses() []string {
	return []string{IncidentOpen, IncidentClosed, IncidentWithSequelae, IncidentConsolidated}
}

func NotificationStatuses() []string {
	return []string{NotificationPending, NotificationSent, NotificationOverdue}
}

func IncidentKinds() []string {
	return []string{KindWorkplaceAccident, KindCommuteAccident, KindOccupationalIllness}
}

// SubjectSnapshot is the point-in-time copy of the affected worker frozen
// into the incident at creation. It is write-once: no update path touches
// these columns after the insert.
type SubjectSnapshot struct {
	WorkerID       int64  `json:"worker_id"`
	WorkerRUT      string `json:"worker_rut"`
	WorkerName     string `json:"worker_name"`
	WorkerPosition string `json:"worker_position"`
	SeniorityDays  int64  `json:"seniority_days"`
	CostCenterCode string `json:"cost_center_code"`
	ContractType   string `json:"contract_type"`
	Insurer        string `json:"insurer"`
}

type Incident struct {
	ID             int64 `json:"id"`
	TenantID       int64 `json:"tenant_id"`
	AccidentNumber int64 `json:"accident_number"`

	EventDate time.Time `json:"event_date"`
	EventTime string    `json:"event_time"`
	// EventAt combines date and time at creation; deadline math uses it.
	EventAt  time.Time `json:"event_at"`
	Location string    `json:"location"`
	Kind     string    `json:"kind"`

	Subject SubjectSnapshot `json:"subject"`

	WorkPerformed           string `json:"work_performed"`
	Description             string `json:"description"`
	Hazards                 string `json:"hazards,omitempty"`
	BodyPart                string `json:"body_part,omitempty"`
	InjuryType              string `json:"injury_type,omitempty"`
	Witnesses               string `json:"witnesses,omitempty"`
	PossibleSequelae        string `json:"possible_sequelae,omitempty"`
	CorrectiveActions       string `json:"corrective_actions,omitempty"`
	MedicalTransfer         bool   `json:"medical_transfer"`
	MedicalTransferLocation string `json:"medical_transfer_location,omitempty"`

	Status             string     `json:"status"`
	NotificationStatus string     `json:"notification_status"`
	NotificationRef    string     `json:"notification_ref,omitempty"`
	NotificationSentAt *time.Time `json:"notification_sent_at,omitempty"`
	MedicalLeaveID     *int64     `json:"medical_leave_id,omitempty"`

	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	ClosedBy  string     `json:"closed_by,omitempty"`
}

func (i *Incident) Terminal() bool {
	return i.Status != IncidentOpen
}

type Attachment struct {
	ID               int64      `json:"id"`
	IncidentID       int64      `json:"incident_id"`
	IncidentTenantID int64      `json:"-"`
	FileRef          string     `json:"file_ref"`
	Filename         string     `json:"filename"`
	ContentType      string     `json:"content_type"`
	SizeBytes        int64      `json:"size_bytes"`
	Description      string     `json:"description,omitempty"`
	UploadedBy       string     `json:"uploaded_by"`
	UploadedAt       time.Time  `json:"uploaded_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// IncidentFilter narrows ListIncidents. All fields are optional and combine
// with AND semantics. NotifyCutoff is supplied by the service so status
// filtering and reads see the effective (lazily escalated) notification
// status rather than the persisted one.
type IncidentFilter struct {
	TenantID           int64
	From               *time.Time
	To                 *time.Time
	Kind               string
	Status             string
	NotificationStatus string
	WorkerID           int64
	CostCenterCode     string
	NotifyCutoff       time.Time
	Limit              int
	Offset             int
}

type Worker struct {
	ID             int64     `json:"id"`
	TenantID       int64     `json:"tenant_id"`
	RUT            string    `json:"rut"`
	FullName       string    `json:"full_name"`
	Position       string    `json:"position"`
	HireDate       time.Time `json:"hire_date"`
	CostCenterID   *int64    `json:"cost_center_id,omitempty"`
	CostCenterCode string    `json:"cost_center_code,omitempty"`
	ContractType   string    `json:"contract_type"`
	Insurer        string    `json:"insurer"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
