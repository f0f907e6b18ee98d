package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidLength indicates phone number length is not 9 digits
	ErrInvalidLength = errors.New("phone number must be exactly 9 digits")

	// ErrInvalidPrefix indicates phone number doesn't start with a valid Cameroonian mobile prefix
	ErrInvalidPrefix = errors.New("phone number must start with 6")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits")

	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")
)

// phoneRegex matches digits only
var phoneRegex = regexp.MustCompile(`^\d+$`)

// PhoneValidator handles phone number validation
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate validates a Cameroonian mobile number.
// Accepts formats: 671234567, +237 671234567, 237671234567, 671 234 567
// Returns the normalized 9-digit local number and error if invalid
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if phone == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)

	if !phoneRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	if len(sanitized) != 9 {
		return "", ErrInvalidLength
	}

	if sanitized[0] != '6' {
		return "", ErrInvalidPrefix
	}

	return sanitized, nil
}

// Sanitize removes separators and strips the 237 country code if present
func (v *PhoneValidator) Sanitize(phone string) string {
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")
	phone = strings.ReplaceAll(phone, "(", "")
	phone = strings.ReplaceAll(phone, ")", "")
	phone = strings.ReplaceAll(phone, "+", "")
	phone = strings.ReplaceAll(phone, ".", "")

	if strings.HasPrefix(phone, "237") && len(phone) == 12 {
		phone = phone[3:]
	}

	return phone
}

// Format formats a phone number in the standard display format: 6XX XXX XXX
func (v *PhoneValidator) Format(phone string) (string, error) {
	sanitized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s %s %s",
		sanitized[0:3],
		sanitized[3:6],
		sanitized[6:9],
	), nil
}

// GetOperator returns the mobile operator name based on prefix.
// MTN carries 67X and the 650-654 / 680-684 ranges, Orange carries
// 69X and the 655-659 / 685-689 ranges.
func (v *PhoneValidator) GetOperator(phone string) (string, error) {
	sanitized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}

	switch sanitized[1] {
	case '7':
		return "MTN", nil
	case '9':
		return "ORANGE", nil
	case '5', '8':
		third := sanitized[2]
		if third >= '0' && third <= '4' {
			return "MTN", nil
		}
		return "ORANGE", nil
	}

	return "", fmt.Errorf("unknown operator for prefix %s", sanitized[:3])
}
