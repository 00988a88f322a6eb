package importer

import (
	"errors"
	"fmt"

	"github.com/clinica/import-service/internal/backend"
)

// ErrBusy is returned when an upload starts while another one runs
var ErrBusy = errors.New("importação já em andamento")

// FileFormatError aborts an upload before any row is submitted: wrong
// extension, unreadable content or no data rows.
type FileFormatError struct {
	Filename string
	Reason   string
}

func (e *FileFormatError) Error() string {
	if e.Filename == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Filename, e.Reason)
}

// SizeLimitError aborts an upload with more rows than allowed
type SizeLimitError struct {
	Rows int
	Max  int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("arquivo com %d linhas excede o limite de %d linhas por importação", e.Rows, e.Max)
}

// IsAbort reports whether err aborted the whole upload, as opposed to a
// cancelled context or an internal failure
func IsAbort(err error) bool {
	var ffe *FileFormatError
	var sle *SizeLimitError
	return errors.As(err, &ffe) || errors.As(err, &sle) || errors.Is(err, ErrBusy)
}

// messageOf extracts the user-facing message of a submission error
func messageOf(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message == "" {
			return backend.UnknownErrorMessage
		}
		return apiErr.Message
	}
	if err == nil || err.Error() == "" {
		return backend.UnknownErrorMessage
	}
	return err.Error()
}

// describeForLog includes the request line of backend errors
func describeForLog(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Describe()
	}
	return err.Error()
}
