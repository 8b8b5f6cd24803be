package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultCollection ResultType = "collection"
	ResultItem       ResultType = "item"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type         ResultType `json:"type"`
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Snippet      string     `json:"snippet"`
	CollectionID string     `json:"collectionId,omitempty"`
	Owner        string     `json:"owner"`
}

// Query describes a search request.
type Query struct {
	Text               string
	FilterType         ResultType // empty = all types
	FilterOwner        string
	FilterCollectionID string
	Limit              int
	Offset             int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// CollectionRecord is the data we index for a collection.
type CollectionRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Owner       string `json:"owner"`
	URN         string `json:"urn"`
	IsPublished bool   `json:"isPublished"`
}

// ItemRecord is the data we index for an item.
type ItemRecord struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	CollectionID string   `json:"collectionId"`
	Owner        string   `json:"owner"`
	Rarity       string   `json:"rarity"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags"`
}
