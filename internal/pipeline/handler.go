package pipeline

import "context"

// Handler processes one item for one phase.
//
// A nil return with the item still pending forwards it to the next phase.
// A nil return after the handler called MarkSkipped drops the item without
// error. A non-nil return is classified via faults.CategoryOf and retried
// according to the category's budget.
type Handler interface {
	Process(ctx context.Context, item *Item) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, item *Item) error

func (f HandlerFunc) Process(ctx context.Context, item *Item) error {
	return f(ctx, item)
}
