package services

import (
	"github.com/sirupsen/logrus"

	"github.com/nkolo-transit/booking-backend/internal/models"
)

// TicketIssuer receives the record emitted when a booking is confirmed. The
// ticket itself (PDF, email) is rendered by an external collaborator; this
// boundary only hands over the data it needs.
type TicketIssuer interface {
	Issue(record *models.TicketRecord)
}

// LogTicketIssuer is the default issuer, it logs the emission so a
// downstream consumer can be attached without touching the coordinator
type LogTicketIssuer struct {
	logger *logrus.Logger
}

// NewLogTicketIssuer creates a ticket issuer that logs emissions
func NewLogTicketIssuer(logger *logrus.Logger) *LogTicketIssuer {
	return &LogTicketIssuer{logger: logger}
}

// Issue logs the confirmed booking record
func (t *LogTicketIssuer) Issue(record *models.TicketRecord) {
	t.logger.WithFields(logrus.Fields{
		"booking_reference": record.BookingReference,
		"seats":             []string(record.SeatNumbers),
		"route":             record.RouteOrigin + " - " + record.RouteDestination,
		"operator":          record.OperatorName,
		"total_amount":      record.TotalAmount,
		"customer_email":    record.CustomerEmail,
	}).Info("Ticket record emitted for issuance")
}
