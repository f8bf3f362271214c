package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "CN"

var digitsOnly = regexp.MustCompile(`^[\d\s()+-]+$`)

// ValidateContactInfo accepts either an email-shaped string or a phone number
// valid for the configured country.
func ValidateContactInfo(contact string) error {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return fmt.Errorf("contact info is required")
	}
	if strings.Contains(contact, "@") {
		if !IsValidEmail(contact) {
			return fmt.Errorf("contact email is not valid")
		}
		return nil
	}
	if digitsOnly.MatchString(contact) {
		return ValidatePhoneNumber(contact, CountryCode)
	}
	// free-form contact note (e.g. dorm + room number)
	return nil
}

func IsValidEmail(email string) bool {
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err // Phone number is invalid
	}

	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}

	return nil
}

func GenerateUniqueFilename() string {
	return uuid.NewString()
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"request": err.Error()}
	}

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}
