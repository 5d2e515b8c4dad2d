package dynamo

import "fmt"

// DynamoDBError wraps a failed DynamoDB API call with its HTTP status and
// the remote error code/message, matching the shape every AWS SDK v2
// operation error already carries (this type exists to give it a single,
// stable discriminator across the package rather than repeating
// errors.As(&types.SomeException{}) at every call site).
type DynamoDBError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *DynamoDBError) Error() string {
	return fmt.Sprintf("dynamo: %s failed (status=%d code=%s): %s", e.Operation, e.StatusCode, e.Code, e.Message)
}

func (e *DynamoDBError) Unwrap() error { return e.Err }

// DynamoDBKeyResolutionError is raised by buildPrimaryKey when a pattern
// placeholder has no corresponding value in the item data.
type DynamoDBKeyResolutionError struct {
	Pattern string
	Field   string
}

func (e *DynamoDBKeyResolutionError) Error() string {
	return fmt.Sprintf("Missing value for pattern key: {%s}", e.Field)
}

// WaitForActiveTimeoutError is raised when a wait-for-active poll loop
// exhausts its attempt cap without observing an ACTIVE status.
type WaitForActiveTimeoutError struct {
	TableName string
	IndexName string
	Attempts  int
}

func (e *WaitForActiveTimeoutError) Error() string {
	if e.IndexName != "" {
		return fmt.Sprintf("dynamo: index %q on table %q did not become active after %d polls", e.IndexName, e.TableName, e.Attempts)
	}
	return fmt.Sprintf("dynamo: table %q did not become active after %d polls", e.TableName, e.Attempts)
}

// CancelledError is raised when a wait-for-active loop observes
// cancellation on the caller's context between poll attempts.
type CancelledError struct {
	TableName string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("dynamo: wait for table %q cancelled", e.TableName)
}
