package services

import "errors"

var (
	ErrInvalidTarget      = errors.New("cannot send a chat request to yourself")
	ErrUserNotFound       = errors.New("user not found")
	ErrRequestNotFound    = errors.New("chat request not found")
	ErrChatNotFound       = errors.New("chat not found")
	ErrAlreadyFriends     = errors.New("chat already exists with this user")
	ErrDuplicateRequest   = errors.New("chat request already sent to this user")
	ErrAlreadyResolved    = errors.New("chat request already resolved")
	ErrInvalidDecision    = errors.New("status must be accepted or rejected")
	ErrForbidden          = errors.New("you are not a member of this chat")
	ErrInvalidMessage     = errors.New("message content is required")
	ErrInvalidCredentials = errors.New("invalid username/email or password")
	ErrUsernameTaken      = errors.New("username already taken, please choose a different username")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrTokenRevoked       = errors.New("token has been revoked")
)
