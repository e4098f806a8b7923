package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps the Postgres pool behind the backend's two concerns: the
// pgvector knowledge base and the appointment book.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Appointment is one stored booking. DateTime stays the caller's verbatim
// string; the store never parses or reformats it.
type Appointment struct {
	PatientName string
	DateTime    string
	Service     string
	PhoneNumber string
	Notes       string
}

// ErrSlotTaken reports a scheduling conflict on an already-booked time.
var ErrSlotTaken = errors.New("the requested time is already booked")

// AddDocument stores a knowledge snippet with its embedding.
func (s *Store) AddDocument(ctx context.Context, content string, embedding []float32) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (content, embedding) VALUES ($1, $2::vector)`,
		content, vectorLiteral(embedding))
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// SearchDocuments returns the contents of the documents nearest to the query
// embedding, best match first.
func (s *Store) SearchDocuments(ctx context.Context, embedding []float32, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT content FROM documents ORDER BY embedding <=> $1::vector LIMIT $2`,
		vectorLiteral(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		contents = append(contents, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return contents, nil
}

// BookedTimes lists the stored appointment datetime strings. A non-empty
// date narrows the list to entries whose datetime starts with it.
func (s *Store) BookedTimes(ctx context.Context, date string) ([]string, error) {
	query := `SELECT date_time FROM appointments ORDER BY created_at`
	args := []any{}
	if date != "" {
		query = `SELECT date_time FROM appointments WHERE date_time LIKE $1 ORDER BY created_at`
		args = append(args, date+"%")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list booked times: %w", err)
	}
	defer rows.Close()

	times := []string{}
	for rows.Next() {
		var dateTime string
		if err := rows.Scan(&dateTime); err != nil {
			return nil, fmt.Errorf("failed to scan booked time: %w", err)
		}
		times = append(times, dateTime)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read booked times: %w", err)
	}
	return times, nil
}

// ScheduleAppointment stores a booking; a datetime collision returns
// ErrSlotTaken.
func (s *Store) ScheduleAppointment(ctx context.Context, appointment Appointment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO appointments (patient_name, date_time, service, phone_number, notes)
		 VALUES ($1, $2, $3, $4, $5)`,
		appointment.PatientName, appointment.DateTime, appointment.Service,
		appointment.PhoneNumber, appointment.Notes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	return nil
}

// LoadAppointment fetches one booking by its datetime string.
func (s *Store) LoadAppointment(ctx context.Context, dateTime string) (Appointment, error) {
	var appointment Appointment
	err := s.pool.QueryRow(ctx,
		`SELECT patient_name, date_time, service, phone_number, notes
		 FROM appointments WHERE date_time = $1`, dateTime).
		Scan(&appointment.PatientName, &appointment.DateTime, &appointment.Service,
			&appointment.PhoneNumber, &appointment.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, fmt.Errorf("no appointment at %s", dateTime)
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("failed to load appointment: %w", err)
	}
	return appointment, nil
}

// vectorLiteral renders an embedding in pgvector's text input format.
func vectorLiteral(embedding []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
