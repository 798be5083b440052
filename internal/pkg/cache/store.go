package cache

import "time"

// Store adapts the package-level cache helpers to an injectable value so
// dependents can take an interface and tests can use an in-memory double.
type Store struct{}

func (Store) Get(key string) (string, error) {
	return Get(key)
}

func (Store) Set(key string, value interface{}, expiration time.Duration) error {
	return Set(key, value, expiration)
}
