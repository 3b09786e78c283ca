package port

import "context"

type FailureNotifier interface {
	// NotifyFailure tells the owner of a sampling job that it was abandoned.
	NotifyFailure(ctx context.Context, userEmail, jobID, videoKey, errorMsg string) error
}
