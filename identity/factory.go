package identity

// NewResolver composes a Resolver from the given configuration, filling
// in any unset fields with defaults.
func NewResolver(config Config) (*Resolver, error) {
	config = config.withDefaults()

	cache, err := newIdentityCache(config.CacheSize, config.CacheTTL)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		config: config,
		cache:  cache,
		throt:  &throttle{},
	}, nil
}
