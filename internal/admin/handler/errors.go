package handler

const (
	errInternalServer     = "Internal server error"
	errTaskNotFound       = "Task not found"
	errInvalidTransition  = "Task is not in a state that allows this action"
	errTokenInvalid       = "Token is invalid or expired"
)
