package token

import "sync"

var (
	registryMu      sync.RWMutex
	nextTokenID     = maxBuiltin
	dynamicTokens   = make(map[TokenType]string)
	dynamicKeywords = make(map[string]TokenType)
)

// Register registers a dialect keyword such as QUALIFY or ILIKE and returns
// its token type. Registering the same name twice returns the same type, so
// several dialects can share a keyword.
func Register(name string) TokenType {
	registryMu.Lock()
	defer registryMu.Unlock()

	if t, ok := dynamicKeywords[name]; ok {
		return t
	}
	nextTokenID++
	t := nextTokenID
	dynamicTokens[t] = name
	dynamicKeywords[name] = t
	return t
}

func getDynamicName(t TokenType) (string, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	name, ok := dynamicTokens[t]
	return name, ok
}

// IsDynamic returns true if the token type was registered at runtime.
func IsDynamic(t TokenType) bool {
	return t > maxBuiltin
}
