package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/gym-scheduler/internal/analytics"
	"github.com/example/gym-scheduler/internal/booking"
)

type analyticsService interface {
	GetAnalytics(ctx context.Context, principal booking.Principal, scope analytics.Scope, period booking.AnalyticsPeriod) (analytics.Report, error)
}

type AnalyticsHandler struct {
	service   analyticsService
	responder responder
}

func NewAnalyticsHandler(service analyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{service: service, responder: newResponder(logger)}
}

// Report computes the rollup for the requested period. The period is bounded
// by the `from` and `to` query parameters; `trainer_id` narrows the scope.
func (h *AnalyticsHandler) Report(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	query := r.URL.Query()
	scope := analytics.Scope{TrainerID: strings.TrimSpace(query.Get("trainer_id"))}
	period := booking.AnalyticsPeriod{
		From: parseTimeParam(query.Get("from")),
		To:   parseTimeParam(query.Get("to")),
	}

	report, err := h.service.GetAnalytics(r.Context(), principal, scope, period)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReportDTO(report))
}

type reportDTO struct {
	From           string           `json:"from"`
	To             string           `json:"to"`
	SessionCount   int              `json:"session_count"`
	CancelledCount int              `json:"cancelled_count"`
	AttendanceRate float64          `json:"attendance_rate"`
	Utilization    []utilizationDTO `json:"utilization"`
	HourHistogram  [24]int          `json:"hour_histogram"`
}

type utilizationDTO struct {
	TrainerID     string  `json:"trainer_id"`
	BookedMinutes float64 `json:"booked_minutes"`
	Utilization   float64 `json:"utilization"`
}

func toReportDTO(report analytics.Report) reportDTO {
	dto := reportDTO{
		From:           report.Period.From.UTC().Format(time.RFC3339Nano),
		To:             report.Period.To.UTC().Format(time.RFC3339Nano),
		SessionCount:   report.SessionCount,
		CancelledCount: report.CancelledCount,
		AttendanceRate: report.AttendanceRate,
		HourHistogram:  report.HourHistogram,
	}
	for _, utilization := range report.Utilization {
		dto.Utilization = append(dto.Utilization, utilizationDTO{
			TrainerID:     utilization.TrainerID,
			BookedMinutes: utilization.Booked.Minutes(),
			Utilization:   utilization.Utilization,
		})
	}
	return dto
}
