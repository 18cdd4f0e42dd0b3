package extract

import "fmt"

// DecryptionError is returned when the document is encrypted and the supplied
// password is wrong or missing.
type DecryptionError struct {
	Cause error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decrypt statement: %v", e.Cause)
}

func (e *DecryptionError) Unwrap() error {
	return e.Cause
}

// ParseError is returned when the document cannot be read or no transaction
// table header is found on any page.
type ParseError struct {
	Page    int
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if e.Page > 0 {
		msg = fmt.Sprintf("page %d: %s", e.Page, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("parse statement: %s: %v", msg, e.Cause)
	}
	return "parse statement: " + msg
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// EmptyDocumentError is returned when a transaction table was found but no
// rows could be recovered from it.
type EmptyDocumentError struct {
	Pages int
}

func (e *EmptyDocumentError) Error() string {
	return fmt.Sprintf("statement has no transactions (%d pages scanned)", e.Pages)
}
