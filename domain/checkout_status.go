package domain

type CheckoutStep string

const (
	CheckoutStepCart      CheckoutStep = "cart"
	CheckoutStepPayment   CheckoutStep = "payment"
	CheckoutStepConfirmed CheckoutStep = "confirmed"
)

func (s CheckoutStep) IsTerminal() bool {
	return s == CheckoutStepConfirmed
}

// String representation (for logging)
func (s CheckoutStep) String() string {
	return string(s)
}

var allowedTransitions = map[CheckoutStep][]CheckoutStep{
	CheckoutStepCart:    {CheckoutStepPayment},
	CheckoutStepPayment: {CheckoutStepCart, CheckoutStepConfirmed},
}

// CanTransitionTo reports whether the checkout machine may move from one step to another.
// Nothing leaves CheckoutStepConfirmed.
func CanTransitionTo(from, to CheckoutStep) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
