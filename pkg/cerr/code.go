package cerr

import "net/http"

type Code int

const (
	Canceled Code = iota + 1
	Unknown
	InvalidArgument
	DeadlineExceeded
	NotFound
	Internal
	Unavailable
)

func (c Code) String() string {
	switch c {
	case Canceled:
		return "CANCELED"
	case Unknown:
		return "UNKNOWN"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case DeadlineExceeded:
		return "DEADLINE_EXCEEDED"
	case NotFound:
		return "NOT_FOUND"
	case Internal:
		return "INTERNAL"
	case Unavailable:
		return "UNAVAILABLE"
	}
	return "UNKNOWN"
}

func (c Code) HTTPStatus() int {
	switch c {
	case Canceled:
		return 499
	case InvalidArgument:
		return http.StatusBadRequest
	case DeadlineExceeded:
		return http.StatusGatewayTimeout
	case NotFound:
		return http.StatusNotFound
	case Unavailable:
		return http.StatusServiceUnavailable
	case Unknown, Internal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// serverFault reports whether the code represents a server-side failure,
// which is when a stack trace is worth capturing.
func (c Code) serverFault() bool {
	switch c {
	case Unknown, Internal, Unavailable:
		return true
	}
	return false
}
