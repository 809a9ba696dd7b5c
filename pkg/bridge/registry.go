// Copyright 2024-2026 Aiku AI

package bridge

import "sync"

// The adapter set is open: new platforms register their converter and sender
// factories at init time, keyed by adapter name. The empty name holds the
// default fallback used for adapters with no dedicated implementation,
// mirroring how database/sql drivers self-register.

var (
	registryLock sync.RWMutex
	converters   = make(map[string]ConverterFactory)
	senders      = make(map[string]SenderFactory)
)

// RegisterConverter registers a converter factory for the named adapter.
// Pass "" to replace the default fallback converter.
func RegisterConverter(adapter string, factory ConverterFactory) {
	registryLock.Lock()
	defer registryLock.Unlock()
	converters[adapter] = factory
}

// RegisterSender registers a sender factory for the named adapter.
// Pass "" to replace the default fallback sender.
func RegisterSender(adapter string, factory SenderFactory) {
	registryLock.Lock()
	defer registryLock.Unlock()
	senders[adapter] = factory
}

// GetConverter builds a converter for messages flowing from src to dst,
// using src's adapter implementation or the default fallback.
func GetConverter(deps Deps, src, dst Bot) Converter {
	registryLock.RLock()
	factory, ok := converters[src.Adapter()]
	if !ok {
		factory = converters[""]
	}
	registryLock.RUnlock()
	return factory(deps, src, dst)
}

// GetSender builds the sender for the named destination adapter, or the
// default fallback when the adapter has no dedicated sender.
func GetSender(deps Deps, adapter string) Sender {
	registryLock.RLock()
	factory, ok := senders[adapter]
	if !ok {
		factory = senders[""]
	}
	registryLock.RUnlock()
	return factory(deps)
}
