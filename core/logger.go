package core

// Logger is implemented by services/logger.
// Variadic args may carry any extra context; implementations may give special
// treatment to known types (eg. the logged-in user).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
