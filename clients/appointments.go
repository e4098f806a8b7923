package clients

import (
	"context"
	"fmt"
	"net/url"

	session "github.com/frontdesk-ai/frontdesk-core/core"
)

// AppointmentsClient reads and writes the appointment book over the backend
// API. It satisfies the session's AppointmentBook.
type AppointmentsClient struct {
	baseURL    string
	httpClient httpDoer
}

func NewAppointmentsClient(baseURL string, opts ...ClientOption) *AppointmentsClient {
	c := &AppointmentsClient{
		baseURL:    baseURL,
		httpClient: defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(&c.baseURL, &c.httpClient)
	}
	return c
}

// BookedTimes returns the already-booked datetime strings, exactly as the
// backend stores them.
func (c *AppointmentsClient) BookedTimes(ctx context.Context, date string) ([]string, error) {
	var params url.Values
	if date != "" {
		params = url.Values{"date": {date}}
	}

	var body bookedResponse
	if err := getJSON(ctx, c.httpClient, c.baseURL, "/appointments/booked", params, &body); err != nil {
		return nil, fmt.Errorf("failed to fetch booked times: %w", err)
	}
	return body.BookedTimes, nil
}

// Schedule books an appointment. A refusal by the backend comes back as a
// ScheduleRefusal carrying the backend's reason.
func (c *AppointmentsClient) Schedule(ctx context.Context, request session.ScheduleRequest) error {
	payload := scheduleRequest{
		PatientName: request.PatientName,
		DateTime:    request.DateTime,
		Service:     request.Service,
		PhoneNumber: request.PhoneNumber,
		Notes:       request.Notes,
	}

	var body scheduleResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL, "/appointments/schedule", payload, &body); err != nil {
		return fmt.Errorf("failed to schedule appointment: %w", err)
	}
	if !body.Success {
		return session.ScheduleRefusal{Reason: body.Reason}
	}
	return nil
}

type scheduleRequest struct {
	PatientName string `json:"patientName"`
	DateTime    string `json:"dateTime"`
	Service     string `json:"service,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type bookedResponse struct {
	BookedTimes []string `json:"bookedTimes"`
}

type scheduleResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}
