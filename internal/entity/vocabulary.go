package entity

// vocabulary is the closed keyword set recognised as named entities.
// Entries are lowercase single tokens as produced by normalize.Text.
var vocabulary = map[string]struct{}{
	// candidates and office holders
	"trump": {}, "biden": {}, "harris": {}, "vance": {}, "walz": {},
	"desantis": {}, "haley": {}, "newsom": {}, "obama": {}, "kennedy": {},
	"rfk": {}, "musk": {}, "putin": {}, "zelensky": {}, "netanyahu": {},
	"macron": {}, "starmer": {}, "trudeau": {}, "milei": {}, "modi": {},
	"powell": {}, "xi": {},
	// crypto assets
	"bitcoin": {}, "btc": {}, "ethereum": {}, "eth": {}, "solana": {},
	"sol": {}, "xrp": {}, "dogecoin": {}, "doge": {},
	// teams
	"lakers": {}, "warriors": {}, "celtics": {}, "knicks": {}, "nuggets": {},
	"chiefs": {}, "eagles": {}, "49ers": {}, "ravens": {}, "cowboys": {},
	"yankees": {}, "dodgers": {}, "arsenal": {}, "liverpool": {}, "madrid": {},
	// countries and states
	"usa": {}, "china": {}, "russia": {}, "ukraine": {}, "israel": {},
	"iran": {}, "taiwan": {}, "mexico": {}, "canada": {}, "uk": {},
	"pennsylvania": {}, "georgia": {}, "arizona": {}, "michigan": {},
	"wisconsin": {}, "nevada": {}, "carolina": {},
}

// InVocabulary reports whether token is a known entity keyword.
func InVocabulary(token string) bool {
	_, ok := vocabulary[token]
	return ok
}
