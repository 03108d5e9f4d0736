package types

import "errors"

// 错误类别，调用方通过 errors.Is 判断
var (
	ErrFileAccess       = errors.New("file access error")
	ErrEncoding         = errors.New("encoding error")
	ErrCredential       = errors.New("credential error")
	ErrRemoteInvocation = errors.New("model invocation failed")
	ErrSchemaParse      = errors.New("schema parse error")
)

// ErrorKind 返回错误所属类别的名称，未知类别返回空字符串
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFileAccess):
		return "FileAccessError"
	case errors.Is(err, ErrEncoding):
		return "EncodingError"
	case errors.Is(err, ErrCredential):
		return "CredentialError"
	case errors.Is(err, ErrRemoteInvocation):
		return "RemoteInvocationError"
	case errors.Is(err, ErrSchemaParse):
		return "SchemaParseError"
	}
	return ""
}
