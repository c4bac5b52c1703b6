package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"zapclinic/internal/entities"
)

// SchedulingServiceClient is the HTTP client for the external Scheduling
// Service owning the appointment calendar.
type SchedulingServiceClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSchedulingServiceClient(baseURL, apiKey string, timeout time.Duration) *SchedulingServiceClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SchedulingServiceClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *SchedulingServiceClient) CreateAppointment(ctx context.Context, appt entities.Appointment) (*entities.Appointment, error) {
	body, err := json.Marshal(appt)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scheduling API %d: %s", resp.StatusCode, string(respBody))
	}

	var created entities.Appointment
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &created, nil
}

func (s *SchedulingServiceClient) ListAppointments(ctx context.Context, date string) ([]entities.Appointment, error) {
	endpoint := s.baseURL + "/appointments"
	if date != "" {
		endpoint += "?date=" + url.QueryEscape(date)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scheduling API %d: %s", resp.StatusCode, string(respBody))
	}

	var appts []entities.Appointment
	if err := json.NewDecoder(resp.Body).Decode(&appts); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return appts, nil
}

func (s *SchedulingServiceClient) DeleteAppointment(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, "DELETE", s.baseURL+"/appointments/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("scheduling API %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (s *SchedulingServiceClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
}
