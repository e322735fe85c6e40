package domain

// MsgRequiredFields is reported for any local form validation failure.
const MsgRequiredFields = "Please fill in all required fields"

// ValidationError is a local, pre-network rejection of form input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
