package domain

// LoadType is the intent of a paging load request
type LoadType int

const (
	LoadRefresh LoadType = iota
	LoadPrepend
	LoadAppend
)

func (t LoadType) String() string {
	switch t {
	case LoadRefresh:
		return "refresh"
	case LoadPrepend:
		return "prepend"
	case LoadAppend:
		return "append"
	default:
		return "unknown"
	}
}

// LoadOutcome is the result of a paging load: Success(EndOfData) or Failure(Err).
type LoadOutcome struct {
	EndOfData bool
	Err       error
}

// LoadSuccess builds a successful outcome
func LoadSuccess(endOfData bool) LoadOutcome {
	return LoadOutcome{EndOfData: endOfData}
}

// LoadFailure builds a failed outcome
func LoadFailure(err error) LoadOutcome {
	return LoadOutcome{Err: err}
}

// Failed reports whether the load failed
func (o LoadOutcome) Failed() bool {
	return o.Err != nil
}

// PagingState is the consumer's view at the time of a load request
type PagingState struct {
	LoadedCount int
	Anchor      int // Last accessed index, -1 if none
}

// LoadStatus distinguishes the LoadState variants
type LoadStatus int

const (
	LoadIdle LoadStatus = iota
	LoadInFlight
	LoadFailed
)

// LoadState describes one direction of a paged view: Idle, Loading or Failed(Err).
type LoadState struct {
	Status LoadStatus
	Err    error
}

func Idle() LoadState            { return LoadState{Status: LoadIdle} }
func Loading() LoadState         { return LoadState{Status: LoadInFlight} }
func Failed(err error) LoadState { return LoadState{Status: LoadFailed, Err: err} }

// IsLoading reports whether a load is in flight
func (s LoadState) IsLoading() bool { return s.Status == LoadInFlight }

// Status distinguishes the State variants
type Status int

const (
	StatusLoading Status = iota
	StatusSuccess
	StatusError
)

// State is the result of a one-shot UI operation: Loading, Success(Data) or Error(Message).
type State[T any] struct {
	Status  Status
	Data    T
	Message string
}

// StateLoading returns the Loading variant
func StateLoading[T any]() State[T] {
	return State[T]{Status: StatusLoading}
}

// StateSuccess returns the Success variant carrying data
func StateSuccess[T any](data T) State[T] {
	return State[T]{Status: StatusSuccess, Data: data}
}

// StateError returns the Error variant with a message
func StateError[T any](message string) State[T] {
	return State[T]{Status: StatusError, Message: message}
}
