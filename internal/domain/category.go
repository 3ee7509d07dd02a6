package domain

// Category is a coarse topic label for a market.
type Category string

const (
	CategoryPolitics  Category = "politics"
	CategoryCrypto    Category = "crypto"
	CategorySports    Category = "sports"
	CategoryEconomics Category = "economics"
	CategoryScience   Category = "science"
	CategoryOther     Category = "other"
)
