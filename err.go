package blocktolinks

import (
	"fmt"
	"strings"
)

// DiscoveryError reports a source type that cannot be converted. Nothing
// was changed when it is returned.
type DiscoveryError struct {
	SourceTypeID string
	Err          error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("cannot convert %s: %v", e.SourceTypeID, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// RecordOp names the record operation that failed.
type RecordOp string

const (
	OpCreate RecordOp = "create"
	OpUpdate RecordOp = "update"
)

// RecordError is a record the conversion skipped.
type RecordError struct {
	Op RecordOp
	// RecordID is the record holding the blocks.
	RecordID string
	// InstanceIDs lists the blocks left without a record, for OpCreate.
	InstanceIDs []string
	// FieldKey is the field being converted, for OpUpdate.
	FieldKey string
	Err      error
}

func (e *RecordError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to %s for record %s", e.Op, e.RecordID)
	if e.FieldKey != "" {
		fmt.Fprintf(&b, " (field %s)", e.FieldKey)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
