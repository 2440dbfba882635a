// ABOUTME: Per-state input validation for conversation transitions
// ABOUTME: Expected user mistakes are results, never errors that end the session

package flow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chatfront/waba-gateway/internal/session"
)

// Expect describes what kind of input the current state is waiting for
type Expect string

// Expectation kinds
const (
	ExpectAny          Expect = "any"
	ExpectSelection    Expect = "selection"
	ExpectQuantity     Expect = "quantity"
	ExpectContact      Expect = "contact"
	ExpectOption       Expect = "option"
	ExpectInstructions Expect = "instructions"
	ExpectConfirmation Expect = "confirmation"
)

// maxInstructionsLen bounds free-text instruction length
const maxInstructionsLen = 200

// InstructionsNone is the sentinel customers send to skip instructions
const InstructionsNone = "none"

// phonePattern accepts international numbers after separator stripping
var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// ValidationError reports a recoverable input problem. The state does not
// advance; the customer is re-prompted with the reason.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// validateQuantity parses a strictly positive integer
func validateQuantity(value string) (int, *ValidationError) {
	qty, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, &ValidationError{Field: "quantity", Reason: "please reply with a number"}
	}
	if qty <= 0 {
		return 0, &ValidationError{Field: "quantity", Reason: "quantity must be at least 1"}
	}
	return qty, nil
}

// validateSelection resolves the input against the presented choices.
// Accepts a 1-based index or the choice value itself (case-insensitive).
func validateSelection(field, value string, choices []string) (string, *ValidationError) {
	input := strings.TrimSpace(value)
	if input == "" {
		return "", &ValidationError{Field: field, Reason: "please pick one of the listed options"}
	}

	if idx, err := strconv.Atoi(input); err == nil {
		if idx < 1 || idx > len(choices) {
			return "", &ValidationError{Field: field, Reason: fmt.Sprintf("please pick a number between 1 and %d", len(choices))}
		}
		return choices[idx-1], nil
	}

	for _, c := range choices {
		if strings.EqualFold(c, input) {
			return c, nil
		}
	}
	return "", &ValidationError{Field: field, Reason: "that's not one of the listed options"}
}

// validateItemSelection resolves the input against the presented items.
// Accepts a 1-based index, the ref (interactive replies carry refs), or
// the display name the customer saw (case-insensitive).
func validateItemSelection(field, value string, presented []session.PresentedItem) (session.PresentedItem, *ValidationError) {
	input := strings.TrimSpace(value)
	if input == "" {
		return session.PresentedItem{}, &ValidationError{Field: field, Reason: "please pick one of the listed options"}
	}

	if idx, err := strconv.Atoi(input); err == nil {
		if idx < 1 || idx > len(presented) {
			return session.PresentedItem{}, &ValidationError{Field: field, Reason: fmt.Sprintf("please pick a number between 1 and %d", len(presented))}
		}
		return presented[idx-1], nil
	}

	for _, item := range presented {
		if strings.EqualFold(item.Ref, input) || strings.EqualFold(item.Name, input) {
			return item, nil
		}
	}
	return session.PresentedItem{}, &ValidationError{Field: field, Reason: "that's not one of the listed options"}
}

// validateContact checks a delivery contact phone number
func validateContact(value string) (string, *ValidationError) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(value))
	if !phonePattern.MatchString(cleaned) {
		return "", &ValidationError{Field: "contact", Reason: "please send a valid phone number, like +15551234567"}
	}
	return cleaned, nil
}

// validateInstructions bounds free text; the "none" sentinel skips the step
func validateInstructions(value string) (string, *ValidationError) {
	text := strings.TrimSpace(value)
	if text == "" {
		return "", &ValidationError{Field: "instructions", Reason: fmt.Sprintf("add a note, or reply %q to skip", InstructionsNone)}
	}
	if strings.EqualFold(text, InstructionsNone) {
		return "", nil
	}
	if len(text) > maxInstructionsLen {
		return "", &ValidationError{Field: "instructions", Reason: fmt.Sprintf("please keep it under %d characters", maxInstructionsLen)}
	}
	return text, nil
}

// validateConfirmation normalizes a yes/no answer
func validateConfirmation(value string) (bool, *ValidationError) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "confirm", "ok", "okay":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return false, &ValidationError{Field: "confirmation", Reason: "please reply yes or no"}
}

// isCancel reports whether the input is an explicit abandonment request,
// accepted from any non-terminal state
func isCancel(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "cancel", "stop", "quit":
		return true
	}
	return false
}
