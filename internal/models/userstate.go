package models

// ConversationState represents the state of a conversation with a user
type ConversationState int

const (
	// Default is the initial state
	Default ConversationState = iota
	// AwaitSelectRequest is the state when the admin is picking a pending request
	AwaitSelectRequest
	// AwaitRequestAction is the state when the admin chose approve or reject
	AwaitRequestAction
	// AwaitSelectInbound is the state when the admin is picking the target inbound
	AwaitSelectInbound
	// AwaitSelectMember is the state when the admin is picking a member
	AwaitSelectMember
	// AwaitMemberAction is the state when the admin is picking an action for a member
	AwaitMemberAction
	// AwaitConfirmMemberDeletion is the state when the admin is confirming deletion
	AwaitConfirmMemberDeletion
)

// UserState represents the state of a user's conversation
type UserState struct {
	State   ConversationState
	Payload *string
}
