package models

// ListResponse is the body of GET /pokemon?offset=&limit=
type ListResponse struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []NamedRef `json:"results"`
}

// NamedRef is a lightweight reference to a detail record
type NamedRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DetailResponse is the subset of GET /pokemon/{id} we normalize
type DetailResponse struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Sprites struct {
		Other struct {
			OfficialArtwork struct {
				FrontDefault *string `json:"front_default"`
			} `json:"official-artwork"`
		} `json:"other"`
	} `json:"sprites"`
	Types []struct {
		Type struct {
			Name string `json:"name"`
		} `json:"type"`
	} `json:"types"`
	Stats []struct {
		BaseStat int `json:"base_stat"`
		Stat     struct {
			Name string `json:"name"`
		} `json:"stat"`
	} `json:"stats"`
}

// Stat names as reported by the detail endpoint
const (
	StatHP      = "hp"
	StatAttack  = "attack"
	StatDefense = "defense"
)
