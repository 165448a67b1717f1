package tree

// Average-size constants used by the no-disk cost-estimation path
// (apply=false mode). Values are carried over from the sizing
// assumptions baked into the fee schedule this engine's costs are modeled
// on: a fixed per-key overhead plus a handful of named average payload
// sizes, so a cost estimate never requires reading the actual stored
// bytes.
const (
	AverageKeySize                  = 50
	AverageBalanceSize              = 6
	AverageNumberOfUpdates          = 10
	ContestedDocumentReferenceSize  = 40
	OptimizedDocumentReferenceSize  = 34
	AverageFlagsSize                = 38
	AverageElementHeaderSize        = AverageKeySize + 3 // kind tag + varint length prefixes
)

// CostEstimate reports the storage and processing cost an operation would
// incur, without touching the underlying KV engine.
type CostEstimate struct {
	KeyBytes     uint64
	ValueBytes   uint64
	HashNodeCalls uint64
	SeekCount     uint64
}

// Add accumulates another estimate into c.
func (c *CostEstimate) Add(o CostEstimate) {
	c.KeyBytes += o.KeyBytes
	c.ValueBytes += o.ValueBytes
	c.HashNodeCalls += o.HashNodeCalls
	c.SeekCount += o.SeekCount
}

// EstimateInsert approximates the cost of inserting an element of the
// given kind and payload size at a path of the given depth, using average
// sizes rather than the real tree shape (apply=false mode never loads the
// real nodes).
func EstimateInsert(kind Kind, payloadSize int, pathDepth int) CostEstimate {
	valueSize := uint64(payloadSize)
	switch kind {
	case KindSumItem:
		valueSize = 8
	case KindReference:
		valueSize = OptimizedDocumentReferenceSize
	case KindTree, KindSumTree, KindBigSumTree, KindCountTree, KindCountSumTree:
		valueSize = 32 // child digest only
	}
	return CostEstimate{
		KeyBytes:      uint64(AverageKeySize),
		ValueBytes:    valueSize + AverageFlagsSize,
		HashNodeCalls: uint64(pathDepth + 1),
		SeekCount:     1,
	}
}

// EstimateQuery approximates the cost of a query touching approximately
// resultCount leaf entries across pathDepth levels.
func EstimateQuery(resultCount, pathDepth int) CostEstimate {
	return CostEstimate{
		KeyBytes:      uint64(resultCount * AverageKeySize),
		ValueBytes:    uint64(resultCount * AverageBalanceSize),
		HashNodeCalls: uint64(resultCount * pathDepth),
		SeekCount:     uint64(resultCount),
	}
}
