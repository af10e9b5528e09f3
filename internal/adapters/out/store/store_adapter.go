package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/config"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/ports/out"
)

// StoreAdapter - REST-адаптер удаленного стора записей и настроек
type StoreAdapter struct {
	client   *http.Client
	baseURL  string
	username string
	password string
	logger   out.LoggerPort
}

func NewStoreAdapter(cfg *config.Config, logger out.LoggerPort) *StoreAdapter {
	return &StoreAdapter{
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  cfg.Store.URL,
		username: cfg.Store.Username,
		password: cfg.Store.Password,
		logger:   logger,
	}
}

func (a *StoreAdapter) ListAppointments(ctx context.Context, filter out.AppointmentFilter) ([]domain.Appointment, error) {
	url := fmt.Sprintf("%s/clinics/%s/appointments?date=%s", a.baseURL, filter.ClinicID, filter.Date)

	var appointments []domain.Appointment
	if err := a.doJSON(ctx, http.MethodGet, url, nil, &appointments); err != nil {
		a.logger.Error("store.appointments.list_failed", out.LogFields{
			"clinicId": filter.ClinicID,
			"date":     filter.Date.String(),
			"error":    err.Error(),
		})
		return nil, err
	}

	a.logger.Debug("store.appointments.list_success", out.LogFields{
		"clinicId": filter.ClinicID,
		"date":     filter.Date.String(),
		"count":    len(appointments),
	})

	return appointments, nil
}

func (a *StoreAdapter) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (*domain.Appointment, error) {
	url := fmt.Sprintf("%s/appointments/%s", a.baseURL, appointmentID)

	var appointment domain.Appointment
	if err := a.doJSON(ctx, http.MethodGet, url, nil, &appointment); err != nil {
		a.logger.Error("store.appointment.fetch_failed", out.LogFields{
			"appointmentId": appointmentID,
			"error":         err.Error(),
		})
		return nil, err
	}

	return &appointment, nil
}

func (a *StoreAdapter) CreateAppointment(ctx context.Context, appointment domain.Appointment) (*domain.Appointment, error) {
	url := fmt.Sprintf("%s/clinics/%s/appointments", a.baseURL, appointment.ClinicID)

	var created domain.Appointment
	if err := a.doJSON(ctx, http.MethodPost, url, appointment, &created); err != nil {
		a.logger.Error("store.appointment.create_failed", out.LogFields{
			"clinicId": appointment.ClinicID,
			"error":    err.Error(),
		})
		return nil, err
	}

	a.logger.Info("store.appointment.create_success", out.LogFields{
		"appointmentId": created.ID,
		"clinicId":      created.ClinicID,
	})

	return &created, nil
}

func (a *StoreAdapter) UpdateAppointment(ctx context.Context, appointment domain.Appointment) (*domain.Appointment, error) {
	url := fmt.Sprintf("%s/appointments/%s", a.baseURL, appointment.ID)

	var updated domain.Appointment
	if err := a.doJSON(ctx, http.MethodPut, url, appointment, &updated); err != nil {
		a.logger.Error("store.appointment.update_failed", out.LogFields{
			"appointmentId": appointment.ID,
			"error":         err.Error(),
		})
		return nil, err
	}

	return &updated, nil
}

func (a *StoreAdapter) DeleteAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	url := fmt.Sprintf("%s/appointments/%s", a.baseURL, appointmentID)

	if err := a.doJSON(ctx, http.MethodDelete, url, nil, nil); err != nil {
		a.logger.Error("store.appointment.delete_failed", out.LogFields{
			"appointmentId": appointmentID,
			"error":         err.Error(),
		})
		return err
	}

	return nil
}

func (a *StoreAdapter) GetSchedulingConfig(ctx context.Context, clinicID uuid.UUID) (*domain.SchedulingConfig, error) {
	url := fmt.Sprintf("%s/clinics/%s/settings", a.baseURL, clinicID)

	var config domain.SchedulingConfig
	if err := a.doJSON(ctx, http.MethodGet, url, nil, &config); err != nil {
		a.logger.Error("store.settings.fetch_failed", out.LogFields{
			"clinicId": clinicID,
			"error":    err.Error(),
		})
		return nil, err
	}

	return &config, nil
}

func (a *StoreAdapter) SaveSchedulingConfig(ctx context.Context, config domain.SchedulingConfig) (*domain.SchedulingConfig, error) {
	url := fmt.Sprintf("%s/clinics/%s/settings", a.baseURL, config.ClinicID)

	var saved domain.SchedulingConfig
	if err := a.doJSON(ctx, http.MethodPut, url, config, &saved); err != nil {
		a.logger.Error("store.settings.save_failed", out.LogFields{
			"clinicId": config.ClinicID,
			"error":    err.Error(),
		})
		return nil, err
	}

	return &saved, nil
}

// doJSON выполняет запрос и декодирует ответ.
// Сетевые ошибки и 5xx оборачиваются в TransientStoreError, 404 - ErrNotFound
func (a *StoreAdapter) doJSON(ctx context.Context, method, url string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}

	req.SetBasicAuth(a.username, a.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return &domain.TransientStoreError{Op: method + " " + url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return &domain.TransientStoreError{
			Op:  method + " " + url,
			Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if result == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return err
	}

	return nil
}
