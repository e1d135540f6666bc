package app

const (
	EventPotCreated       = "pot.created"
	EventPotUpdated       = "pot.updated"
	EventPotStatusChanged = "pot.status_changed"
	EventPotDeleted       = "pot.deleted"
	EventMemberJoined     = "member.joined"
	EventMemberLeft       = "member.left"
	EventMemberRole       = "member.role_changed"
	EventMemberRemoved    = "member.removed"
)
