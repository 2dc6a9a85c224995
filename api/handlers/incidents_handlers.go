package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"condor-raat/core/raat"
	"condor-raat/core/utils"
)

const attachmentMaxBytes = 25 * 1024 * 1024

type IncidentsHandler struct {
	svc    *raat.Service
	logger *utils.Logger
}

func NewIncidentsHandler(svc *raat.Service, logger *utils.Logger) *IncidentsHandler {
	return &IncidentsHandler{svc: svc, logger: logger}
}

type createIncidentRequest struct {
	EventDate string `json:"event_date"`
	EventTime string `json:"event_time"`
	Location  string `json:"location"`
	Kind      string `json:"kind"`
	WorkerID  int64  `json:"worker_id"`

	WorkPerformed           string `json:"work_performed"`
	Description             string `json:"description"`
	Hazards                 string `json:"hazards"`
	BodyPart                string `json:"body_part"`
	InjuryType              string `json:"injury_type"`
	Witnesses               string `json:"witnesses"`
	PossibleSequelae        string `json:"possible_sequelae"`
	CorrectiveActions       string `json:"corrective_actions"`
	MedicalTransfer         bool   `json:"medical_transfer"`
	MedicalTransferLocation string `json:"medical_transfer_location"`
	MedicalLeaveID          *int64 `json:"medical_leave_id"`
}

func (h *IncidentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	var req createIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "common.invalid_json", "invalid request body")
		return
	}
	eventDate, err := time.Parse("2006-01-02", req.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "raat.validation", "invalid event_date: must be YYYY-MM-DD")
		return
	}
	inc, err := h.svc.Create(r.Context(), session.TenantID, raat.CreateInput{
		EventDate:               eventDate,
		EventTime:               req.EventTime,
		Location:                req.Location,
		Kind:                    req.Kind,
		WorkerID:                req.WorkerID,
		WorkPerformed:           req.WorkPerformed,
		Description:             req.Description,
		Hazards:                 req.Hazards,
		BodyPart:                req.BodyPart,
		InjuryType:              req.InjuryType,
		Witnesses:               req.Witnesses,
		PossibleSequelae:        req.PossibleSequelae,
		CorrectiveActions:       req.CorrectiveActions,
		MedicalTransfer:         req.MedicalTransfer,
		MedicalTransferLocation: req.MedicalTransferLocation,
		MedicalLeaveID:          req.MedicalLeaveID,
	}, session.Username)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": inc})
}

func (h *IncidentsHandler) List(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	q := r.URL.Query()
	items, err := h.svc.List(r.Context(), session.TenantID, raat.ListFilter{
		From:               parseDate(q.Get("from")),
		To:                 parseDate(q.Get("to")),
		Kind:               q.Get("kind"),
		Status:             q.Get("status"),
		NotificationStatus: q.Get("notification_status"),
		WorkerID:           parseInt64(q.Get("worker_id")),
		CostCenterCode:     q.Get("cost_center"),
		Limit:              parseIntDefault(q.Get("limit"), 100),
		Offset:             parseIntDefault(q.Get("offset"), 0),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *IncidentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "common.invalid_id", "invalid incident id")
		return
	}
	inc, err := h.svc.Get(r.Context(), session.TenantID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": inc})
}

type updateIncidentRequest struct {
	EventDate *string `json:"event_date"`
	EventTime *string `json:"event_time"`
	Location  *string `json:"location"`
	Kind      *string `json:"kind"`

	WorkPerformed           *string `json:"work_performed"`
	Description             *string `json:"description"`
	Hazards                 *string `json:"hazards"`
	BodyPart                *string `json:"body_part"`
	InjuryType              *string `json:"injury_type"`
	Witnesses               *string `json:"witnesses"`
	PossibleSequelae        *string `json:"possible_sequelae"`
	CorrectiveActions       *string `json:"corrective_actions"`
	MedicalTransfer         *bool   `json:"medical_transfer"`
	MedicalTransferLocation *string `json:"medical_transfer_location"`
	MedicalLeaveID          *int64  `json:"medical_leave_id"`
}

func (h *IncidentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "common.invalid_id", "invalid incident id")
		return
	}
	var req updateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "common.invalid_json", "invalid request body")
		return
	}
	patch := raat.UpdatePatch{
		EventTime:               req.EventTime,
		Location:                req.Location,
		Kind:                    req.Kind,
		WorkPerformed:           req.WorkPerformed,
		Description:             req.Description,
		Hazards:                 req.Hazards,
		BodyPart:                req.BodyPart,
		InjuryType:              req.InjuryType,
		Witnesses:               req.Witnesses,
		PossibleSequelae:        req.PossibleSequelae,
		CorrectiveActions:       req.CorrectiveActions,
		MedicalTransfer:         req.MedicalTransfer,
		MedicalTransferLocation: req.MedicalTransferLocation,
		MedicalLeaveID:          req.MedicalLeaveID,
	}
	if req.EventDate != nil {
		d, err := time.Parse("2006-01-02", *req.EventDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "raat.validation", "invalid event_date: must be YYYY-MM-DD")
			return
		}
		patch.EventDate = &d
	}
	inc, err := h.svc.Update(r.Context(), session.TenantID, id, patch, session.Username)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": inc})
}

func (h *IncidentsHandler) Close(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "common.invalid_id", "invalid incident id")
		return
	}
	payload := struct {
		Status string `json:"status"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "common.invalid_json", "invalid request body")
		return
	}
	inc, err := h.svc.Transition(r.Context(), session.TenantID, id, payload.Status, session.Username)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": inc})
}

func (h *IncidentsHandler) MarkNotificationSent(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "common.invalid_id", "invalid incident id")
		return
	}
	payload := struct {
		Reference string `json:"reference"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "common.invalid_json", "invalid request body")
		return
	}
	inc, err := h.svc.MarkNotificationSent(r.Context(), session.TenantID, id, payload.Reference, session.Username)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": inc})
}

func (h *IncidentsHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "common.invalid_id", "invalid incident id")
		return
	}
	items, err := h.svc.ListAttachments(r.Context(), session.TenantID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *IncidentsHandler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "common.invalid_id", "invalid incident id")
		return
	}
	if err := r.ParseMultipartForm(attachmentMaxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "raat.validation", "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "raat.validation", "missing file field")
		return
	}
	defer file.Close()
	att, err := h.svc.AddAttachment(r.Context(), session.TenantID, id, raat.AttachmentUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Description: r.FormValue("description"),
		Body:        io.LimitReader(file, attachmentMaxBytes),
	}, session.Username)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": att})
}

func (h *IncidentsHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	attID, ok := pathInt64(r, "att_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "common.invalid_id", "invalid attachment id")
		return
	}
	att, rc, err := h.svc.OpenAttachment(r.Context(), session.TenantID, attID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer rc.Close()
	ct := att.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(att.Filename))
	if att.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(att.SizeBytes, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warnf("attachment %d download interrupted: %v", attID, err)
	}
}

func (h *IncidentsHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	attID, ok := pathInt64(r, "att_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "common.invalid_id", "invalid attachment id")
		return
	}
	if err := h.svc.RemoveAttachment(r.Context(), session.TenantID, attID, session.Username); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *IncidentsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	q := r.URL.Query()
	stats, err := h.svc.Statistics(r.Context(), session.TenantID, parseDate(q.Get("from")), parseDate(q.Get("to")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
