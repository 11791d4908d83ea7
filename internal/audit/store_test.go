package audit

import (
	"context"
	"testing"
	"time"
)

func TestNilStoreIsDisabled(t *testing.T) {
	var store *Store

	// Recording through a nil store must be a no-op, not a panic
	store.RecordDecision(context.Background(), "login-1", "/dashboard", "to_login", "expired")
	store.RecordRelay(context.Background(), "login-1", 504, "timeout", 2*time.Second)
}
