package billing

import "github.com/gofiber/fiber/v2"

// Outcome is the declared disposition of one webhook event. Handlers return
// it explicitly so the webhook endpoint can derive the HTTP status
// deterministically instead of guessing from error types.
type Outcome int

const (
	// OutcomeProcessed means the event was handled and local state is in sync.
	OutcomeProcessed Outcome = iota
	// OutcomeIgnored means the event type is not one we handle; acknowledged
	// so the provider does not redeliver it forever.
	OutcomeIgnored
	// OutcomeFatal means the event can never be processed (integrity or
	// validation failure); redelivery will not help.
	OutcomeFatal
	// OutcomeRetryable means a transient failure (provider or database);
	// a non-2xx response asks the provider to redeliver.
	OutcomeRetryable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeFatal:
		return "fatal"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

// Result carries a handler's outcome and the error behind a failure.
type Result struct {
	Outcome Outcome
	Err     error
}

func Processed() Result          { return Result{Outcome: OutcomeProcessed} }
func Ignored() Result            { return Result{Outcome: OutcomeIgnored} }
func Fatal(err error) Result     { return Result{Outcome: OutcomeFatal, Err: err} }
func Retryable(err error) Result { return Result{Outcome: OutcomeRetryable, Err: err} }

// HTTPStatus maps an outcome to the acknowledgement status the provider sees.
// Anything non-2xx triggers provider redelivery.
func (r Result) HTTPStatus() int {
	switch r.Outcome {
	case OutcomeProcessed, OutcomeIgnored:
		return fiber.StatusOK
	case OutcomeFatal:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
