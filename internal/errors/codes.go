package errors

// Stable engine error codes (spec §7/§8). Each is a sentinel *EnhancedError
// built once at init; callers compare with errors.Is(err, errors.ErrNotFound)
// and may attach call-specific Context via WrapSentinel.

var (
	ErrInvalidParams      = New(NewStd("invalid parameters")).Category(CategoryInput).Build()
	ErrInvalidInput       = New(NewStd("invalid input")).Category(CategoryInput).Build()
	ErrInvalidSize        = New(NewStd("invalid size")).Category(CategoryInput).Build()
	ErrInvalidAlignment   = New(NewStd("invalid alignment")).Category(CategoryInput).Build()
	ErrInvalidConfig      = New(NewStd("invalid configuration")).Category(CategoryInput).Build()

	ErrNotFound           = New(NewStd("not found")).Category(CategoryState).Build()
	ErrNotInitialized     = New(NewStd("not initialized")).Category(CategoryState).Build()
	ErrNoMasterCall       = New(NewStd("no master call loaded")).Category(CategoryState).Build()
	ErrInsufficientData   = New(NewStd("insufficient data")).Category(CategoryState).Build()

	ErrBufferFull         = New(NewStd("buffer full")).Category(CategoryCapacity).Build()
	ErrBufferEmpty        = New(NewStd("buffer empty")).Category(CategoryCapacity).Build()
	ErrPoolExhausted      = New(NewStd("pool exhausted")).Category(CategoryCapacity).Build()
	ErrAllocationFailed   = New(NewStd("allocation failed")).Category(CategoryCapacity).Build()

	ErrProcessingFailed   = New(NewStd("processing failed")).Category(CategoryProcessing).Build()
	ErrFFTFailed          = New(NewStd("fft failed")).Category(CategoryProcessing).Build()
	ErrInitFailed         = New(NewStd("initialization failed")).Category(CategoryProcessing).Build()

	ErrResourceUnavailable = New(NewStd("resource unavailable")).Category(CategoryResource).Build()
)

// WrapSentinel wraps a sentinel EnhancedError (keeping its message) with a
// component and extra key/value context, preserving Category so
// errors.Is(result, sentinel) still matches via the Category comparison in
// EnhancedError.Is, and so errors.Is(result, target) continues to unwrap
// through to the sentinel via Unwrap.
func WrapSentinel(sentinel *EnhancedError, component string, kv ...any) *EnhancedError {
	eb := New(sentinel).Component(component).Category(sentinel.Category)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		eb.Context(key, kv[i+1])
	}
	return eb.Build()
}
