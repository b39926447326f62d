package session

// Frame ids pack (instance id, stack index) into one integer the DAP
// client can hand back: the lower 13 bits hold the stack index, the
// rest the instance id. Values stay under 2^53 so they survive
// JSON-number round trips.
const frameBits = 13

func PackFrameID(instanceID uint64, stackIndex int) int64 {
	return int64(instanceID<<frameBits | uint64(stackIndex)&(1<<frameBits-1))
}

func UnpackFrameID(id int64) (instanceID uint64, stackIndex int) {
	return uint64(id) >> frameBits, int(uint64(id) & (1<<frameBits - 1))
}

// The server namespaces raw instance and breakpoint ids per compilation
// unit; the composite form keeps them unique across the session.
const namespaceShift = 32

func PackComposite(namespaceID uint32, rawID uint64) uint64 {
	return uint64(namespaceID)<<namespaceShift | rawID&0xFFFFFFFF
}

func UnpackComposite(id uint64) (namespaceID uint32, rawID uint64) {
	return uint32(id >> namespaceShift), id & 0xFFFFFFFF
}
