// Package session drives one vendor feed session through its
// download/read state machine, translating the vendor's numeric result
// codes into a small semantic vocabulary.
package session

import "fmt"

// Vendor result codes the manager handles explicitly.
const (
	CodeOK           = 0
	CodeFileBoundary = -1
	CodeNotReady     = -3 // regional: file not yet downloaded
	CodeAuthUnset    = -100
	CodeBadSpec      = -116
	CodeSetupPending = -203
	CodeAuthError    = -301
	CodeFileBroken1  = -402
	CodeFileBroken2  = -403
	CodeRateLimit    = -421
	CodeDownloadFail = -502
	CodeServerError  = -503
)

// VendorError carries the vendor result code, the call that produced
// it and an operator remedy where one is documented.
type VendorError struct {
	Code   int
	Op     string
	Remedy string
}

func (e *VendorError) Error() string {
	if e.Remedy == "" {
		return fmt.Sprintf("vendor %s returned %d", e.Op, e.Code)
	}
	return fmt.Sprintf("vendor %s returned %d: %s", e.Op, e.Code, e.Remedy)
}

// Recoverable reports whether the code is handled by closing the
// session and re-opening it with the skip-files set preserved.
func Recoverable(code int) bool {
	switch code {
	case CodeSetupPending, CodeDownloadFail, CodeServerError:
		return true
	}
	return false
}

func fatalError(op string, code int) *VendorError {
	e := &VendorError{Code: code, Op: op}
	switch code {
	case CodeAuthUnset:
		e.Remedy = "service key not configured; run the vendor setup"
	case CodeAuthError:
		e.Remedy = "authentication rejected; check the service key (regional feeds require the literal key \"UNKNOWN\")"
	case CodeBadSpec:
		e.Remedy = "data spec not supported by this vendor contract"
	}
	return e
}

// Session is the vendor component's call surface. Each call returns a
// numeric result code; zero is success unless stated otherwise. The
// object is single-owner and not safe for concurrent calls.
type Session interface {
	// Initialize sets the service key. 0 = ok.
	Initialize(serviceKey string) int

	// Open starts an accumulated-data session. It may block for
	// minutes. Returns the announced read and download counts.
	Open(spec, fromTime string, option int) (code, readCount, downloadCount int, lastFileTS string)

	// RealTimeOpen starts a real-time session; the vendor returns only
	// data newer than the previous call, so there is no from_time.
	RealTimeOpen(spec, key string) (code, readCount int)

	// Status reports download progress: >0 files remaining, 0 done,
	// negative is one of the error codes above.
	Status() int

	// ReadRecord fills buf with the next record. code > 0 is the
	// record length; 0 is end of stream; CodeFileBoundary marks a file
	// switch; other negatives are the error codes above.
	ReadRecord(buf []byte) (code int, fileName string)

	// Skip jumps past the remainder of the current file.
	Skip()

	// FileDelete asks the vendor to drop a damaged file so the next
	// read proceeds past it.
	FileDelete(fileName string) int

	Close() int
}
