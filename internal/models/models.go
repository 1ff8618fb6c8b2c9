package models

// All lists every table owned by the service, in migration order.
func All() []any {
	return []any{
		&User{},
		&Job{},
		&Application{},
		&DirectJob{},
		&Conversation{},
		&Message{},
		&Notification{},
		&Report{},
		&Review{},
		&WalletTransaction{},
		&OutboxEvent{},
	}
}
