package services

import "fmt"

// Intent selects which credential operation a form submission performs.
type Intent string

const (
	IntentRegister     Intent = "register"
	IntentAuthenticate Intent = "authenticate"
)

// Messages shown to the user. They are plain text; the rendering layer
// escapes them.
const (
	MsgFillAllFields      = "Please fill in all fields."
	MsgUsernameTaken      = "Username already exists."
	MsgAccountCreated     = "Account created! You can now log in."
	MsgInvalidCredentials = "Invalid username or password."
	MsgPasswordTooLong    = "Password is too long."
	MsgUnknownAction      = "Unknown action."
	MsgStoreFailure       = "Something went wrong. Please try again later."

	msgPasswordTooShort = "Password must be at least %d characters."
)

// FormRequest is one form submission. Absent fields are empty strings.
type FormRequest struct {
	Intent   Intent
	Username string
	Password string
	FullName string
}

// Result is a successful outcome. Registration sets Message; authentication
// sets Token, DisplayName and Redirect.
type Result struct {
	Message     string
	Token       string
	DisplayName string
	Redirect    string
}

// Failure is a rejected submission. Kind is one of common.ErrorValidation,
// common.ErrorConflict, common.ErrorUnauthorized or common.ErrorStore and
// Message is safe to show to the user.
type Failure struct {
	Kind    error
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%v: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Kind
}

func fail(kind error, msg string) *Failure {
	return &Failure{Kind: kind, Message: msg}
}
