package cachefacade

import "log"

// withRecovery runs fn and converts any error or panic into a logged event
// plus the caller-specified default, so a cache-layer fault never interrupts
// the business path calling into the Facade. This is the one place in the
// subsystem that uses recover() — nothing below the Facade panics on
// purpose, but a bug in a loader or persister supplied by calling code
// should not be allowed to propagate past this boundary either.
func withRecovery[T any](logger *log.Logger, op string, def T, fn func() (T, error)) (result T) {
	result = def
	defer func() {
		if r := recover(); r != nil {
			logger.Printf("cachefacade: recovered panic in %s: %v", op, r)
			result = def
		}
	}()

	v, err := fn()
	if err != nil {
		logger.Printf("cachefacade: error in %s: %v", op, err)
		return def
	}
	return v
}

// withRecoveryVoid is withRecovery for operations with no meaningful return
// value.
func withRecoveryVoid(logger *log.Logger, op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Printf("cachefacade: recovered panic in %s: %v", op, r)
		}
	}()

	if err := fn(); err != nil {
		logger.Printf("cachefacade: error in %s: %v", op, err)
	}
}
