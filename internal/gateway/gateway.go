package gateway

// GoalSink is what a gateway feeds user input into. The orchestration loop
// satisfies it.
type GoalSink interface {
	// Submit queues a natural-language goal.
	Submit(goal string) error
	// Cancel requests a cooperative abort of the running task.
	Cancel()
}

// Messenger defines the interface for goal gateways (Telegram, console).
type Messenger interface {
	// Start begins the input listening loop
	Start() error
	// Notify pushes a task progress or result line to the user
	Notify(text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}
