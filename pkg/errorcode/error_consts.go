package errorcode

import "fmt"

const (
	// CodeNotFound means the requested record does not exist. Errors carrying this code are not failures of the remote call itself.
	CodeNotFound = "~NOTFOUND~"
	// CodeInvalidDescriptor means the claim link descriptor failed validation and was never sent anywhere.
	CodeInvalidDescriptor = "~INVALIDDESCRIPTOR~"
	// CodeExpired means the transfer's expiration has passed and the flow cannot proceed.
	CodeExpired = "~EXPIRED~"
	// CodeDecode means a claim URL could not be decoded.
	CodeDecode = "~DECODE~"
	// CodeInvalidTransition means a lifecycle step was attempted from a state that does not allow it.
	CodeInvalidTransition = "~INVALIDTRANSITION~"
	// CodeNotImplemented is used by collaborators for operations they do not support.
	CodeNotImplemented = "~NOTIMPLEMENTED~"
)

// ErrorNotFound is the error instance for `CodeNotFound`
var ErrorNotFound = fmt.Errorf(CodeNotFound)

// ErrorInvalidDescriptor is the error instance for `CodeInvalidDescriptor`
var ErrorInvalidDescriptor = fmt.Errorf(CodeInvalidDescriptor)

// ErrorExpired is the error instance for `CodeExpired`
var ErrorExpired = fmt.Errorf(CodeExpired)

// ErrorDecode is the error instance for `CodeDecode`
var ErrorDecode = fmt.Errorf(CodeDecode)

// ErrorInvalidTransition is the error instance for `CodeInvalidTransition`
var ErrorInvalidTransition = fmt.Errorf(CodeInvalidTransition)

// ErrorNotImplemented is the error instance for `CodeNotImplemented`
var ErrorNotImplemented = fmt.Errorf(CodeNotImplemented)
