// Package nested executes relation operations embedded in mutation payloads:
// set, disconnect, connect, create, and update verbs applied to related rows
// inside one transaction, with depth, bulk, cycle, and permission guards.
package nested

import (
	"errors"
	"fmt"
	"strings"
)

// Stable error codes surfaced in GraphQL error extensions.
const (
	CodeDepthExceeded     = "NESTED_DEPTH_EXCEEDED"
	CodeBulkSizeExceeded  = "BULK_SIZE_EXCEEDED"
	CodeCircularReference = "CIRCULAR_REFERENCE"
	CodeTenantAccess      = "TENANT_ACCESS_DENIED"
	CodeInvalidID         = "INVALID_ID_FORMAT"
	CodeRelatedNotFound   = "RELATED_NOT_FOUND"
	CodeOperationDisabled = "NESTED_OP_DISABLED"
)

// Error is implemented by every error in the nested-operation taxonomy. The
// Extensions method makes the errors surface through the GraphQL boundary
// with their stable code attached.
type Error interface {
	error
	Code() string
	Extensions() map[string]interface{}
}

// DepthError reports a payload nested deeper than the configured limit.
type DepthError struct {
	MaxDepth     int
	CurrentDepth int
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("nested operation depth %d exceeds the maximum of %d", e.CurrentDepth, e.MaxDepth)
}

func (e *DepthError) Code() string { return CodeDepthExceeded }

func (e *DepthError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":          CodeDepthExceeded,
		"max_depth":     e.MaxDepth,
		"current_depth": e.CurrentDepth,
	}
}

// BulkSizeError reports a relation list larger than the configured limit.
type BulkSizeError struct {
	MaxSize    int
	ActualSize int
	Field      string
}

func (e *BulkSizeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("bulk size %d for %s exceeds the maximum of %d", e.ActualSize, e.Field, e.MaxSize)
	}
	return fmt.Sprintf("bulk size %d exceeds the maximum of %d", e.ActualSize, e.MaxSize)
}

func (e *BulkSizeError) Code() string { return CodeBulkSizeExceeded }

func (e *BulkSizeError) Extensions() map[string]interface{} {
	ext := map[string]interface{}{
		"code":        CodeBulkSizeExceeded,
		"max_size":    e.MaxSize,
		"actual_size": e.ActualSize,
	}
	if e.Field != "" {
		ext["field"] = e.Field
	}
	return ext
}

// CircularReferenceError reports a create descending into a type already on
// the current root-to-leaf path.
type CircularReferenceError struct {
	TypeName string
	Path     []string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular reference to %s along path %s", e.TypeName, strings.Join(e.Path, " -> "))
}

func (e *CircularReferenceError) Code() string { return CodeCircularReference }

func (e *CircularReferenceError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":      CodeCircularReference,
		"type_name": e.TypeName,
		"path":      append([]string(nil), e.Path...),
	}
}

// TenantAccessError reports an operation touching a row outside the caller's
// tenant scope.
type TenantAccessError struct {
	TypeName  string
	Operation string
}

func (e *TenantAccessError) Error() string {
	return fmt.Sprintf("tenant access denied for %s on %s", e.Operation, e.TypeName)
}

func (e *TenantAccessError) Code() string { return CodeTenantAccess }

func (e *TenantAccessError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":      CodeTenantAccess,
		"type_name": e.TypeName,
		"operation": e.Operation,
	}
}

// InvalidIDError reports an identifier that cannot be coerced to the related
// key type.
type InvalidIDError struct {
	Field string
	Value interface{}
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid id %v for %s", e.Value, e.Field)
}

func (e *InvalidIDError) Code() string { return CodeInvalidID }

func (e *InvalidIDError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":  CodeInvalidID,
		"field": e.Field,
		"value": fmt.Sprint(e.Value),
	}
}

// RelatedNotFoundError reports a connect/update target that does not exist.
type RelatedNotFoundError struct {
	TypeName string
	Field    string
	IDValue  interface{}
}

func (e *RelatedNotFoundError) Error() string {
	return fmt.Sprintf("related %s not found for %s (id %v)", e.TypeName, e.Field, e.IDValue)
}

func (e *RelatedNotFoundError) Code() string { return CodeRelatedNotFound }

func (e *RelatedNotFoundError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":      CodeRelatedNotFound,
		"type_name": e.TypeName,
		"field":     e.Field,
		"id_value":  fmt.Sprint(e.IDValue),
	}
}

// OperationDisabledError reports a verb used on a relation where it is
// disabled by configuration or unsupported by the relation kind.
type OperationDisabledError struct {
	TypeName string
	Field    string
}

func (e *OperationDisabledError) Error() string {
	return fmt.Sprintf("nested operation disabled for %s.%s", e.TypeName, e.Field)
}

func (e *OperationDisabledError) Code() string { return CodeOperationDisabled }

func (e *OperationDisabledError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":      CodeOperationDisabled,
		"type_name": e.TypeName,
		"field":     e.Field,
	}
}

// CheckDepth validates a nesting depth against a maximum. The zero and
// negative maximum disable the check.
func CheckDepth(current, max int) error {
	if max <= 0 || current <= max {
		return nil
	}
	return &DepthError{MaxDepth: max, CurrentDepth: current}
}

// CheckBulk validates a relation list size against a maximum. The zero and
// negative maximum disable the check.
func CheckBulk(actual, max int) error {
	if max <= 0 || actual <= max {
		return nil
	}
	return &BulkSizeError{MaxSize: max, ActualSize: actual}
}

// ErrorCode extracts the taxonomy code from an error, or empty when the error
// is not part of the taxonomy.
func ErrorCode(err error) string {
	var typed Error
	if errors.As(err, &typed) {
		return typed.Code()
	}
	return ""
}
