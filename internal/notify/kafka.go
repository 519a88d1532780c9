package notify

import (
	"context"
	"encoding/json"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"boxoffice/internal/config"
	"boxoffice/internal/models"
)

// Producer streams booking lifecycle events to Kafka. Publishing is best
// effort; callers log failures and move on.
type Producer struct {
	writer *kafka.Writer
	topics config.TopicConfig
}

func NewProducer(brokers []string, topics config.TopicConfig) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{writer: writer, topics: topics}
}

type bookingEvent struct {
	BookingID  string    `json:"booking_id"`
	BookingRef string    `json:"booking_ref"`
	Email      string    `json:"email"`
	NumTickets int       `json:"num_tickets"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ticketEvent struct {
	TicketID   string    `json:"ticket_id"`
	ShowingID  string    `json:"showing_id"`
	BookingID  string    `json:"booking_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (p *Producer) PublishBookingConfirmed(booking models.Booking) error {
	value, err := json.Marshal(bookingEvent{
		BookingID:  booking.ID,
		BookingRef: booking.BookingRef,
		Email:      booking.Email,
		NumTickets: len(booking.Tickets),
		OccurredAt: time.Now(),
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(context.Background(), kafka.Message{
		Topic: p.topics.BookingConfirmed,
		Key:   []byte(booking.ID),
		Value: value,
	})
}

func (p *Producer) PublishTicketCancelled(ticket models.Ticket) error {
	event := ticketEvent{
		TicketID:   ticket.ID,
		ShowingID:  ticket.ShowingID,
		OccurredAt: time.Now(),
	}
	if ticket.BookingID != nil {
		event.BookingID = *ticket.BookingID
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(context.Background(), kafka.Message{
		Topic: p.topics.TicketCancelled,
		Key:   []byte(ticket.ID),
		Value: value,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// NoopProducer stands in when Kafka is disabled.
type NoopProducer struct{}

func (NoopProducer) PublishBookingConfirmed(models.Booking) error { return nil }
func (NoopProducer) PublishTicketCancelled(models.Ticket) error   { return nil }
