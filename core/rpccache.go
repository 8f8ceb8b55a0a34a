package core

// RPCResult is one cached RPC response, grounded on
// original_source/include/rpc.h's _rpcResult (void* buf, int bufLen).
type RPCResult struct {
	ResultType byte
	Payload    []byte
}

// RPCCache is the opt-in per-provider result cache: grounded on
// original_source/include/rpc.h's _rpcCache, reinstated here as a live
// feature, one cache per cacheable provider. Keyed by the raw, unparsed
// RPC parameter bytes: identical parameters are assumed to produce an
// identical result for a cacheable method.
type RPCCache struct {
	results *KeyedArray[RPCResult]
}

// NewRPCCache returns an empty cache.
func NewRPCCache() *RPCCache {
	return &RPCCache{results: NewKeyedArray[RPCResult]()}
}

// Find returns the cached result for params, if any.
func (c *RPCCache) Find(params []byte) (RPCResult, bool) {
	slot := c.results.FindKey(params)
	if slot < 0 {
		return RPCResult{}, false
	}
	return c.results.At(slot), true
}

// Save stores result under params, overwriting any prior entry.
func (c *RPCCache) Save(params []byte, result RPCResult) {
	c.results.InsertKV(params, result)
}

// Clear drops all cached results.
func (c *RPCCache) Clear() {
	c.results = NewKeyedArray[RPCResult]()
}
