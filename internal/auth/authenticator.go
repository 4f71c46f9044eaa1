package auth

import "context"

// Authenticator verifies administrator credentials.
// This abstraction allows swapping the single configured admin for another
// credential source without changing the service layer code.
type Authenticator interface {
	// Authenticate returns nil if credential is valid for email.
	Authenticate(ctx context.Context, email, credential string) error
}
