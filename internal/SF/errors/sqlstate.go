package errors

import "errors"

// SQLSTATE codes (SQL standard ISO/IEC 9075)
const (
	SQLState_OK                   = "00000"
	SQLState_WrongParameterCount  = "07001"
	SQLState_CardinalityViolation = "21000"
	SQLState_UniqueViolation      = "23505"
	SQLState_InvalidCursorState   = "24000"
	SQLState_SyntaxOrAccess       = "42000"
	SQLState_UndefinedObject      = "42704"
	SQLState_DataException        = "22000"
	SQLState_General              = "HY000"
)

// SQLStateOf returns the SQLSTATE code for the error, or "00000" if nil.
func SQLStateOf(err error) string {
	if err == nil {
		return SQLState_OK
	}
	var e *Error
	if !errors.As(err, &e) {
		return SQLState_General
	}
	switch e.Kind {
	case KindRowKeyQueryInvalid, KindValueQueryInvalid, KindColumnDefQueryInvalid, KindArgumentCount:
		return SQLState_SyntaxOrAccess
	case KindParameterArityMismatch:
		return SQLState_WrongParameterCount
	case KindColumnDefArityMismatch:
		return SQLState_CardinalityViolation
	case KindDuplicateColumnKey, KindDuplicateColumnName:
		return SQLState_UniqueViolation
	case KindMisuse:
		return SQLState_InvalidCursorState
	case KindNotFound:
		return SQLState_UndefinedObject
	case KindCellResolution:
		return SQLState_DataException
	default:
		return SQLState_General
	}
}
