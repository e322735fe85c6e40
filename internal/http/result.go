package httpapi

// Result 统一响应包
// - code: 2000 成功，-1 失败
// - type: 'success' | 'error'
// - message: 面向用户的提示（成功提示或错误信息）
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

// OkMessage is Ok with a user-facing message, e.g. "Room created successfully".
func OkMessage[T any](message string, result T) Result[T] {
	r := Ok(result)
	r.Message = message
	return r
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}
