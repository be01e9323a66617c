package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Nickdtt/ia-crm/internal/domain"
	"github.com/Nickdtt/ia-crm/internal/jobs"
	"github.com/Nickdtt/ia-crm/internal/scheduling"
)

const dateLayout = "2006-01-02"

type appointmentView struct {
	ID                 string     `json:"id"`
	LeadID             *string    `json:"lead_id,omitempty"`
	ScheduledAt        time.Time  `json:"scheduled_at"`
	DurationMinutes    int        `json:"duration_minutes"`
	MeetingType        string     `json:"meeting_type"`
	Notes              string     `json:"notes,omitempty"`
	Status             string     `json:"status"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
}

func toAppointmentView(appt *domain.Appointment) appointmentView {
	view := appointmentView{
		ID:                 appt.ID.String(),
		ScheduledAt:        appt.ScheduledAt,
		DurationMinutes:    appt.DurationMinutes,
		MeetingType:        appt.MeetingType,
		Notes:              appt.Notes,
		Status:             string(appt.Status),
		CancellationReason: appt.CancellationReason,
		CancelledAt:        appt.CancelledAt,
	}
	if appt.LeadID != nil {
		id := appt.LeadID.String()
		view.LeadID = &id
	}
	return view
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	var status *domain.AppointmentStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := domain.AppointmentStatus(raw)
		switch st {
		case domain.StatusPending, domain.StatusConfirmed, domain.StatusCancelled, domain.StatusCompleted:
			status = &st
		default:
			respondJSON(w, http.StatusBadRequest, errorBody{Error: "unknown status " + raw})
			return
		}
	}

	appts, err := s.booking.ListAll(r.Context(), status)
	if err != nil {
		s.respondError(w, err)
		return
	}

	views := make([]appointmentView, 0, len(appts))
	for i := range appts {
		views = append(views, toAppointmentView(&appts[i]))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": views,
		"total":        len(views),
	})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid appointment id"})
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "Cancelado pela equipe"
	}

	appt, err := s.booking.Cancel(r.Context(), id, reason)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toAppointmentView(appt))
}

type blockRequest struct {
	Date  string `json:"date"`
	Shift string `json:"shift,omitempty"`
}

func (s *Server) handleCreateBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	date, ok := s.parseDate(w, req.Date)
	if !ok {
		return
	}

	var err error
	switch req.Shift {
	case "":
		err = s.booking.BlockFullDay(r.Context(), date)
	case string(scheduling.ShiftMorning), string(scheduling.ShiftAfternoon):
		err = s.booking.BlockShift(r.Context(), date, scheduling.Shift(req.Shift))
	default:
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "shift must be 'morning' or 'afternoon'"})
		return
	}

	if err != nil {
		s.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"status": "blocked",
		"date":   req.Date,
		"shift":  req.Shift,
	})
}

func (s *Server) handleDeleteBlocks(w http.ResponseWriter, r *http.Request) {
	date, ok := s.parseDate(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	removed, err := s.booking.Unblock(r.Context(), date)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "unblocked",
		"removed": removed,
	})
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	date, ok := s.parseDate(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	slots, err := s.availability.AvailableSlots(r.Context(), date)
	if err != nil {
		s.respondError(w, err)
		return
	}

	formatted := make([]string, 0, len(slots))
	for _, slot := range slots {
		formatted = append(formatted, slot.Format("15:04"))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":  date.Format(dateLayout),
		"slots": formatted,
	})
}

// handleSweep enqueues the elapsed-appointment sweep on demand.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if s.jobsManager == nil {
		respondJSON(w, http.StatusServiceUnavailable, errorBody{Error: "background jobs are not configured"})
		return
	}

	task, err := jobs.NewCompleteElapsedTask("manual")
	if err != nil {
		s.respondError(w, err)
		return
	}

	info, err := s.jobsManager.Enqueue(r.Context(), task)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":  "enqueued",
		"task_id": info.ID,
	})
}

func (s *Server) parseDate(w http.ResponseWriter, raw string) (time.Time, bool) {
	if raw == "" {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "date is required (YYYY-MM-DD)"})
		return time.Time{}, false
	}

	date, err := time.ParseInLocation(dateLayout, raw, s.availability.Location())
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid date, expected YYYY-MM-DD"})
		return time.Time{}, false
	}

	return date, true
}
