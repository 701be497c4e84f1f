package offline

import "errors"

var (
	// ErrNotHandled is returned by OnFetch for requests the manager does not intercept.
	// The host passes such requests to the network untouched.
	ErrNotHandled = errors.New("request not handled by cache manager")

	// ErrInstallFailed wraps the manifest entry that could not be precached.
	ErrInstallFailed = errors.New("install failed")

	// ErrNoActiveVersion is returned when no manager version controls traffic.
	ErrNoActiveVersion = errors.New("no active cache manager version")
)
