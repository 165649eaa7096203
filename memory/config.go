package memory

// Config holds Store configuration.
type Config struct {
	// WrapShortfall changes how SelectByCategoryContent handles a quota
	// shortfall on the last category. By default the shortfall is dropped;
	// when set, it is offered back to the earlier categories in order.
	// Default: false.
	WrapShortfall bool

	// ReindexOnRecover re-registers every recovered specific note with the
	// retriever, so a crash between writing a document and registering it
	// cannot leave the index behind the store.
	// Default: true. Turn off for large stores backed by a persistent index.
	ReindexOnRecover bool
}

// DefaultConfig returns the defaults used when no Config is given.
var DefaultConfig = &Config{
	WrapShortfall:    false,
	ReindexOnRecover: true,
}
