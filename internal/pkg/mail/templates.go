package mail

import (
	"fmt"

	"github.com/andrewwildgoose/nappio-backend/internal/pkg/env"
)

func serviceName() string {
	return env.GetEnv("SERVICE_NAME", "Nappio")
}

// ConfirmationEmailBody renders the double-opt-in email sent on signup.
func ConfirmationEmailBody(firstName, confirmationLink string) string {
	service := serviceName()
	return fmt.Sprintf(`<p>Hi %s,</p>
<p>Thank you for signing up! Please confirm your email by clicking the link below:</p>
<p><a href="%s">Confirm Email</a></p>
<p>If you didn't sign up, you can ignore this email.</p>
<p>Best,<br>The %s Team</p>`, firstName, confirmationLink, service)
}

// SubscriptionConfirmedBody renders the email sent after a subscription is
// reconciled from the billing provider.
func SubscriptionConfirmedBody(firstName, planName, priceDisplay string) string {
	service := serviceName()
	return fmt.Sprintf(`<p>Hi %s,</p>
<p>Your subscription is confirmed. Welcome aboard!</p>
<ul>
<li>Plan: %s</li>
<li>Price: %s</li>
</ul>
<p>Best,<br>The %s Team</p>`, firstName, planName, priceDisplay, service)
}

// SendConfirmationEmail sends the signup verification email.
func SendConfirmationEmail(to, firstName, confirmationLink string) error {
	subject := fmt.Sprintf("Confirm your email for %s", serviceName())
	return SendMail(to, subject, ConfirmationEmailBody(firstName, confirmationLink))
}

// Notifier sends transactional mail over SMTP. It exists so callers can
// depend on an interface and swap in a double under test.
type Notifier struct{}

// SendSubscriptionConfirmed sends the post-checkout confirmation email.
func (Notifier) SendSubscriptionConfirmed(to, firstName, planName, priceDisplay string) error {
	subject := fmt.Sprintf("Your %s subscription is confirmed", serviceName())
	return SendMail(to, subject, SubscriptionConfirmedBody(firstName, planName, priceDisplay))
}
