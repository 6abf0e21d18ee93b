package anthropic

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint. The adjuster instructions are identical for every stage of
// every claim, so the 5 minute TTL keeps them warm across a batch.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if ttl == "" {
		ttl = "5m"
	}
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: ttl,
			},
		},
	}
}
