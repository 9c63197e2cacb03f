package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"corsi-booking/internal/config"
	booking "corsi-booking/internal/domain/booking"
	interfaces "corsi-booking/internal/interfaces/infrastructure"
)

var _ interfaces.NotificationGateway = (*SMTPNotifier)(nil)

// SMTPNotifier delivers booking messages over plain SMTP. Delivery is
// best-effort: callers log failures and move on, they never fail the
// booking because of mail.
type SMTPNotifier struct {
	host       string
	port       int
	username   string
	password   string
	from       string
	fromName   string
	adminEmail string
}

func NewSMTPNotifier(smtpCfg *config.SMTPConfig, adminEmail string) *SMTPNotifier {
	return &SMTPNotifier{
		host:       smtpCfg.Host,
		port:       smtpCfg.Port,
		username:   smtpCfg.Username,
		password:   smtpCfg.Password,
		from:       smtpCfg.From,
		fromName:   smtpCfg.FromName,
		adminEmail: adminEmail,
	}
}

func (n *SMTPNotifier) NotifyAdmin(_ context.Context, reservation *booking.Reservation, course *booking.Course, occurrence *booking.Occurrence) error {
	subject := "New course booking: " + course.Title

	var body strings.Builder
	body.WriteString("<h1>New booking received</h1>")
	body.WriteString("<p>A new booking was made for the following course:</p><ul>")
	fmt.Fprintf(&body, "<li><strong>Course:</strong> %s</li>", course.Title)
	fmt.Fprintf(&body, "<li><strong>Date:</strong> %s</li>", occurrence.Date.Format("Monday 02 January 2006"))
	fmt.Fprintf(&body, "<li><strong>Duration:</strong> %s</li>", valueOr(occurrence.Duration, "n/a"))
	body.WriteString("</ul><h2>Attendee details</h2><ul>")
	writeAttendeeDetails(&body, reservation)
	body.WriteString("</ul>")

	headers := map[string]string{
		"Reply-To": fmt.Sprintf("%s <%s>", reservation.AttendeeName(), reservation.Email),
	}

	return n.send(n.adminEmail, subject, body.String(), headers)
}

func (n *SMTPNotifier) NotifyAttendee(_ context.Context, reservation *booking.Reservation, course *booking.Course, occurrence *booking.Occurrence) error {
	subject := "Booking confirmation: " + course.Title

	var body strings.Builder
	body.WriteString("<h1>Thank you for your booking!</h1>")
	fmt.Fprintf(&body, "<p>Hello %s,</p>", reservation.FirstName)
	body.WriteString("<p>We received and confirmed your booking for the following course:</p>")
	body.WriteString("<h2>Course details</h2><ul>")
	fmt.Fprintf(&body, "<li><strong>Course:</strong> %s</li>", course.Title)
	fmt.Fprintf(&body, "<li><strong>Date:</strong> %s</li>", occurrence.Date.Format("Monday 02 January 2006"))
	fmt.Fprintf(&body, "<li><strong>Duration:</strong> %s</li>", valueOr(occurrence.Duration, "n/a"))
	body.WriteString("</ul><h2>Your details</h2><ul>")
	writeAttendeeDetails(&body, reservation)
	body.WriteString("</ul><p>For any question, contact our secretariat. See you there!</p>")

	return n.send(reservation.Email, subject, body.String(), nil)
}

func writeAttendeeDetails(body *strings.Builder, reservation *booking.Reservation) {
	if reservation.Business() {
		fmt.Fprintf(body, "<li><strong>Organization:</strong> %s</li>", reservation.OrganizationName)
		fmt.Fprintf(body, "<li><strong>Tax ID:</strong> %s</li>", reservation.TaxID)
		fmt.Fprintf(body, "<li><strong>Contact person:</strong> %s</li>", reservation.AttendeeName())
	} else {
		fmt.Fprintf(body, "<li><strong>First name:</strong> %s</li>", reservation.FirstName)
		fmt.Fprintf(body, "<li><strong>Last name:</strong> %s</li>", reservation.LastName)
	}
	fmt.Fprintf(body, "<li><strong>Email:</strong> %s</li>", reservation.Email)
	fmt.Fprintf(body, "<li><strong>Phone:</strong> %s</li>", valueOr(reservation.Phone, "not provided"))
}

func (n *SMTPNotifier) send(to, subject, htmlBody string, extraHeaders map[string]string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", n.fromName, n.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	for key, value := range extraHeaders {
		fmt.Fprintf(&msg, "%s: %s\r\n", key, value)
	}
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	var auth smtp.Auth
	if n.username != "" {
		auth = smtp.PlainAuth("", n.username, n.password, n.host)
	}

	if err := smtp.SendMail(addr, auth, n.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	return nil
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
