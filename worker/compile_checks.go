package worker

var (
	_ Processor  = (*Pipeline)(nil)
	_ Dispatcher = (*GoDispatcher)(nil)
)
