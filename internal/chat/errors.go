package chat

import "errors"

// 错误分类，handler 据此决定是否回显给发起连接以及是否终止连接。
var (
	ErrValidation = errors.New("validation error")
	ErrPolicy     = errors.New("policy error")
	ErrUpstream   = errors.New("upstream error")
	ErrAuth       = errors.New("auth error")

	ErrMessageNotFound = errors.New("message not found")
)

// Error 携带面向用户的提示语 Msg 和分类 Kind，Err 为可选的底层原因。
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.Error() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.Error() + ": " + e.Msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// Terminal 表示连接是否应在回显错误后被断开。
func (e *Error) Terminal() bool { return e == ErrBanned }

func validationErr(msg string) *Error { return &Error{Kind: ErrValidation, Msg: msg} }
func policyErr(msg string) *Error     { return &Error{Kind: ErrPolicy, Msg: msg} }

func upstreamErr(op string, err error) *Error {
	return &Error{Kind: ErrUpstream, Msg: op, Err: err}
}

var (
	ErrBanned        = policyErr("You have been banned from this chat.")
	ErrMuted         = policyErr("You are currently muted")
	ErrRateLimited   = policyErr("Slow down! You are sending messages too fast.")
	ErrNotJoined     = validationErr("You must join first")
	ErrAlreadyJoined = validationErr("You have already joined")
	ErrEmptyUsername = validationErr("Username is required")
	ErrEmptyMessage  = validationErr("Message cannot be empty")
	ErrEmptyReportID = validationErr("Message id is required")
	ErrInvalidEvent  = validationErr("Invalid event")
	ErrAdminRequired = &Error{Kind: ErrAuth, Msg: "Admin authentication required"}
	ErrBadPassword   = &Error{Kind: ErrAuth, Msg: "Invalid password"}
	ErrInternal      = &Error{Kind: ErrUpstream, Msg: "Something went wrong"}
)
