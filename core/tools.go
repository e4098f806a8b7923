package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

// NewTool builds a dispatch-table entry whose argument schema is reflected
// from T. Arguments must unmarshal into T; anything else is answered with a
// failure result.
func NewTool[T any](name, description string, handler func(ctx context.Context, params T) (string, error)) Tool {
	reflector := jsonschema.Reflector{DoNotReference: true}
	var zero T
	schema := reflector.Reflect(zero)
	schema.Version = ""

	return Tool{
		Name:        name,
		Description: description,
		Parameters:  schema,
		execute: func(ctx context.Context, arguments string) (string, error) {
			var params T
			if err := json.Unmarshal([]byte(arguments), &params); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			return handler(ctx, params)
		},
	}
}

// KnowledgeBase retrieves ranked content strings for a query.
type KnowledgeBase interface {
	Retrieve(ctx context.Context, query string) ([]string, error)
}

// ScheduleRequest carries the appointment fields exactly as the model
// provided them.
type ScheduleRequest struct {
	PatientName string
	DateTime    string
	Service     string
	PhoneNumber string
	Notes       string
}

// ScheduleRefusal is a provider-side scheduling failure whose reason must be
// relayed unmodified to the model so it can explain it to the user.
type ScheduleRefusal struct {
	Reason string
}

func (e ScheduleRefusal) Error() string { return e.Reason }

// AppointmentBook exposes the appointment collaborator.
type AppointmentBook interface {
	BookedTimes(ctx context.Context, date string) ([]string, error)
	Schedule(ctx context.Context, request ScheduleRequest) error
}

type queryCompanyInfoParams struct {
	Query string `json:"query" jsonschema:"description=The search query about company information"`
}

type checkAvailabilityParams struct {
	Date string `json:"date" jsonschema:"description=The date to check, formatted YYYY-MM-DD"`
}

type scheduleAppointmentParams struct {
	PatientName string `json:"patient_name" jsonschema:"description=Full name of the patient"`
	DateTime    string `json:"datetime" jsonschema:"description=Requested appointment time, formatted YYYY-MM-DD HH:mm"`
	Service     string `json:"service" jsonschema:"description=Requested service or reason for the visit"`
	PhoneNumber string `json:"phone_number,omitempty" jsonschema:"description=Contact phone number"`
	Notes       string `json:"notes,omitempty" jsonschema:"description=Additional notes"`
}

// receptionistTools is the built-in tool catalog: knowledge lookup,
// availability check and appointment scheduling.
func receptionistTools(knowledge KnowledgeBase, appointments AppointmentBook, attachContext func(string)) []Tool {
	tools := []Tool{}

	if knowledge != nil {
		tools = append(tools, NewTool("query_company_info",
			"Search through company knowledge base for relevant information",
			func(ctx context.Context, params queryCompanyInfoParams) (string, error) {
				results, err := knowledge.Retrieve(ctx, params.Query)
				if err != nil {
					return "", fmt.Errorf("failed to retrieve context: %w", err)
				}

				// Only the single highest-ranked result is used.
				result := struct {
					Found       bool   `json:"found"`
					Information string `json:"information"`
				}{Found: false, Information: "No relevant information found."}
				if len(results) > 0 {
					result.Found = true
					result.Information = results[0]
					if attachContext != nil {
						attachContext("Source:\n" + results[0])
					}
				}
				return marshalOutput(result)
			}))
	}

	if appointments != nil {
		tools = append(tools, NewTool("check_availability",
			"Check which appointment slots are already booked for a given date",
			func(ctx context.Context, params checkAvailabilityParams) (string, error) {
				booked, err := appointments.BookedTimes(ctx, params.Date)
				if err != nil {
					return "", fmt.Errorf("failed to fetch booked times: %w", err)
				}
				if booked == nil {
					booked = []string{}
				}

				// The full booked-slot list goes back verbatim; date
				// filtering is the model's responsibility.
				return marshalOutput(struct {
					Success     bool     `json:"success"`
					BookedTimes []string `json:"booked_times"`
				}{Success: true, BookedTimes: booked})
			}))

		tools = append(tools, NewTool("schedule_appointment",
			"Schedule an appointment for a patient at the requested time",
			func(ctx context.Context, params scheduleAppointmentParams) (string, error) {
				err := appointments.Schedule(ctx, ScheduleRequest{
					PatientName: params.PatientName,
					DateTime:    params.DateTime,
					Service:     params.Service,
					PhoneNumber: params.PhoneNumber,
					Notes:       params.Notes,
				})

				var refusal ScheduleRefusal
				switch {
				case errors.As(err, &refusal):
					return marshalOutput(struct {
						Success bool   `json:"success"`
						Message string `json:"message"`
					}{Success: false, Message: refusal.Reason})
				case err != nil:
					return "", fmt.Errorf("failed to schedule appointment: %w", err)
				}

				return marshalOutput(struct {
					Success bool   `json:"success"`
					Message string `json:"message"`
				}{Success: true, Message: "Appointment scheduled for " + params.DateTime + "."})
			}))
	}

	return tools
}

func marshalOutput(output any) (string, error) {
	payload, err := json.Marshal(output)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool output: %w", err)
	}
	return string(payload), nil
}
