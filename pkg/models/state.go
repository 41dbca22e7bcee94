package models

// TargetState is a connection supervisor state
type TargetState string

const (
	StateDisconnected TargetState = "disconnected"
	StateConnecting   TargetState = "connecting"
	StateReconciling  TargetState = "reconciling"
	StateWatching     TargetState = "watching"
	// StateStopped is terminal: the supervisor exited
	StateStopped TargetState = "stopped"
)
