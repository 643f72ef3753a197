package yakushima

// Status is the result code returned by every public operation. It mirrors
// the teacher's BLTErr convention of a plain enum return rather than Go's
// error interface, because most "failure" outcomes here (not found, unique
// restriction, max sessions) are expected control flow, not exceptional.
type Status int

const (
	// OK indicates a successful mutation or lookup.
	OK Status = iota
	// OKDestroyAll indicates Destroy completed for every storage.
	OKDestroyAll
	// OKNotFound is part of the status taxonomy but no code path returns it;
	// get and remove report a missing key as WarnNotExist.
	OKNotFound
	// OKRootIsNull indicates the layer/storage has no root yet.
	OKRootIsNull
	// OKScanContinue indicates the scan stopped on collecting max_size
	// tuples; further tuples may or may not remain in the range.
	OKScanContinue
	// OKScanEnd indicates the scan reached its right endpoint.
	OKScanEnd

	// okRetryFetchLV and okRetryFromRoot are internal retry signals; they
	// never escape the package (see spec §7 category 1).
	okRetryFetchLV
	okRetryFromRoot

	// WarnNotExist indicates get/remove found no matching key.
	WarnNotExist
	// WarnExist is part of the complete status taxonomy (spec §6) but is
	// never returned by this package: a put under unique_restriction that
	// collides with an existing terminal value reports WarnUniqueRestriction
	// instead, matching interface_put.h in original_source.
	WarnExist
	// WarnUniqueRestriction indicates put under unique_restriction found an
	// existing terminal value and left it untouched.
	WarnUniqueRestriction
	// WarnMaxSessions indicates the session table is full.
	WarnMaxSessions
	// WarnStorageNotExist indicates the named storage has no tree instance.
	WarnStorageNotExist
	// WarnInvalidToken indicates the Token passed to an operation is not a
	// currently-held session.
	WarnInvalidToken
	// WarnConcurrentOperations indicates a DDL race was detected best-effort
	// (spec §9, delete_storage / delete_storage).
	WarnConcurrentOperations
	// warnRetryFromRootOfAll is an internal signal meaning "the tree/layer
	// root the caller cached was collapsed; reload it through its rootSource
	// (the Tree or the owning border's cell) and restart". Never returned
	// publicly.
	warnRetryFromRootOfAll

	// ErrBadUsage indicates malformed input (spec §7 category 3).
	ErrBadUsage
	// ErrFatal indicates detected structural corruption (spec §7 category 4).
	ErrFatal
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case OKDestroyAll:
		return "OK_DESTROY_ALL"
	case OKNotFound:
		return "OK_NOT_FOUND"
	case OKRootIsNull:
		return "OK_ROOT_IS_NULL"
	case OKScanContinue:
		return "OK_SCAN_CONTINUE"
	case OKScanEnd:
		return "OK_SCAN_END"
	case okRetryFetchLV:
		return "OK_RETRY_FETCH_LV"
	case okRetryFromRoot:
		return "OK_RETRY_FROM_ROOT"
	case WarnNotExist:
		return "WARN_NOT_EXIST"
	case WarnExist:
		return "WARN_EXIST"
	case WarnUniqueRestriction:
		return "WARN_UNIQUE_RESTRICTION"
	case WarnMaxSessions:
		return "WARN_MAX_SESSIONS"
	case WarnStorageNotExist:
		return "WARN_STORAGE_NOT_EXIST"
	case WarnInvalidToken:
		return "WARN_INVALID_TOKEN"
	case WarnConcurrentOperations:
		return "WARN_CONCURRENT_OPERATIONS"
	case warnRetryFromRootOfAll:
		return "WARN_RETRY_FROM_ROOT_OF_ALL"
	case ErrBadUsage:
		return "ERR_BAD_USAGE"
	case ErrFatal:
		return "ERR_FATAL"
	default:
		return "STATUS_UNKNOWN"
	}
}

// isRetry reports whether s is one of the internal retry signals that must
// never be returned from a public operation (spec §7 category 1).
func (s Status) isRetry() bool {
	return s == okRetryFetchLV || s == okRetryFromRoot || s == warnRetryFromRootOfAll
}
