package node

//go:generate go tool stringer -type=DispatcherEnum -trimprefix=Dispatcher -output=kind_string.go

// DispatcherEnum names the shape of a source/target type pair.
type DispatcherEnum int

const (
	DispatcherUnknown DispatcherEnum = iota
	DispatcherPrimitive
	DispatcherInterface
	DispatcherSlice
	DispatcherMap
	DispatcherStruct
	DispatcherPointer
	DispatcherStructToMap
	DispatcherMapToStruct

	// DispatcherTotal is a constant that represents the total number of kinds defined
	DispatcherTotal = int(iota)
)
