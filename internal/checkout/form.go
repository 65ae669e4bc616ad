package checkout

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tvdermeer/3dprint-website/internal/apierr"
)

// ShippingDetails is the contact and address part of the checkout form.
type ShippingDetails struct {
	Email      string `form:"email" validate:"required,email"`
	Name       string `form:"name" validate:"required"`
	Address    string `form:"address" validate:"required"`
	City       string `form:"city" validate:"required"`
	PostalCode string `form:"zipCode" validate:"required"`
}

// PaymentDetails is the card part of the checkout form. It is handed to the PaymentConfirmer and
// never persisted or logged.
type PaymentDetails struct {
	CardNumber string `form:"cardNumber" validate:"required,min=12,max=23"`
	Expiry     string `form:"expiryDate" validate:"required"`
	CVV        string `form:"cvv" validate:"required,numeric,min=3,max=4"`
}

var fieldLabels = map[string]string{
	"email":      "Email",
	"name":       "Name",
	"address":    "Address",
	"city":       "City",
	"zipCode":    "Postal code",
	"cardNumber": "Card number",
	"expiryDate": "Expiry date",
	"cvv":        "CVV",
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report errors under the form's field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validateForm checks the shipping fields, and the payment fields when withPayment is set.
// All failing fields are reported together.
func validateForm(shipping ShippingDetails, payment PaymentDetails, withPayment bool) error {
	fields := map[string]string{}
	collect(fields, formValidator.Struct(shipping))
	if withPayment {
		collect(fields, formValidator.Struct(payment))
	}
	if len(fields) == 0 {
		return nil
	}
	return &apierr.ValidationError{Fields: fields}
}

func collect(fields map[string]string, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return
	}
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Please enter a valid email address"
	default:
		return label + " is invalid"
	}
}
