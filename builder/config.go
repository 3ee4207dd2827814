package builder

// BuilderOption customizes a builderConfig before construction begins.
type BuilderOption func(cfg *builderConfig)

// builderConfig holds constructor-wide settings resolved from BuilderOption
// values. Empty for now: ereignisgraph's node/edge builders need no RNG, ID
// scheme, or weight policy, and nothing else in this module builds graphs
// through this package yet.
type builderConfig struct{}

// newBuilderConfig resolves a builderConfig from the given options, applying
// them in order so later options override earlier ones.
func newBuilderConfig(opts ...BuilderOption) *builderConfig {
	cfg := &builderConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
