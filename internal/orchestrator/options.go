package orchestrator

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*Orchestrator)

// WithLogger sets the debug logger that receives run and task lines.
func WithLogger(l *DebugLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithConsole sets the console reporter; nil silences console output.
func WithConsole(c *Console) Option {
	return func(o *Orchestrator) { o.console = c }
}

// WithEmitter sets the event emitter shared with subscribers.
func WithEmitter(e *EventEmitter) Option {
	return func(o *Orchestrator) { o.emitter = e }
}

// WithCommand labels runs with the CLI command that started them.
func WithCommand(cmd string) Option {
	return func(o *Orchestrator) { o.command = cmd }
}
